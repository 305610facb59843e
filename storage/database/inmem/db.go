// Package inmemdb keeps users in process memory. It backs unit tests of the core services.
package inmemdb

import (
	"sync"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		table map[int]*user.User
		pk    int
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[int]*user.User)},
	}
}
