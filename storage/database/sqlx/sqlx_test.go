package sqlxrepos

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func TestForUpdate(t *testing.T) {
	q := "SELECT id FROM inscripciones WHERE id = ?"
	tests := []struct {
		driver string
		want   string
	}{
		{driver: "postgres", want: q + " FOR UPDATE"},
		{driver: "sqlite", want: q},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			assert.Equal(t, tt.want, forUpdate(sqlx.NewDb(nil, tt.driver), q))
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%100\%\_ok%`, likePattern("100%_OK"))
}
