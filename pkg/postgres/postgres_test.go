package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationURL(t *testing.T) {
	testCases := map[string]string{
		"postgres://u:p@localhost:5432/db?sslmode=disable":   "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"postgresql://u:p@localhost:5432/db?sslmode=disable": "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"pgx5://u:p@localhost:5432/db":                       "pgx5://u:p@localhost:5432/db",
		"host=localhost dbname=db":                           "host=localhost dbname=db",
	}

	for in, want := range testCases {
		assert.Equal(t, want, MigrationURL(in), in)
	}
}
