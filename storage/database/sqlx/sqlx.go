package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

// Queries are written with `?` placeholders and rebound for the driver of the executor.

func getContext(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exe, dest, exe.Rebind(query), args...)
}

func selectContext(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exe, dest, exe.Rebind(query), args...)
}

func execContext(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int, error) {
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

// forUpdate appends a row locking clause for the drivers that support one.
func forUpdate(exe core.DBExecutor, query string) string {
	if exe.DriverName() == "postgres" {
		return query + " FOR UPDATE"
	}
	return query
}

// orderBy builds an ORDER BY clause from the allowed orderings, falling back to def.
func orderBy(ordering []core.DBOrdering, columns map[string]string, def string) string {
	allowed := core.AllowedOrderings(ordering, columns)
	if len(allowed) == 0 {
		return " ORDER BY " + def
	}
	list := make([]string, 0, len(allowed))
	for _, ord := range allowed {
		list = append(list, ord.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// likePattern returns a lower-cased LIKE pattern matching s anywhere.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}
