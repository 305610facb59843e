package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
	emailsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/email"
	logsvc "github.com/JAVIERMONRA/proyecto-cursos-online/services/logger"
	"github.com/JAVIERMONRA/proyecto-cursos-online/storage/database"
	sqlxrepos "github.com/JAVIERMONRA/proyecto-cursos-online/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		panic(err)
	}
	logger := zl.Sugar().Named("admin")
	defer func() { _ = zl.Sync() }()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatalw("creating database", zap.Error(err))
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatalw("opening database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err = db.PingContext(context.Background()); err != nil {
		logger.Fatalw("pinging database", zap.Error(err))
	}

	// start CLI
	cli := commandLine{
		db:     db,
		engine: conf.Database.Engine,
		usrSvc: user.NewService(
			sqlxrepos.NewUserRepository(db),
			emailsvc.NewConsoleService(conf, logsvc.NewRollbarLogger(zl, conf)),
			conf,
		),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Errorw("command failed", zap.Error(err))
		}
		_ = zl.Sync()
		os.Exit(1)
	}
}
