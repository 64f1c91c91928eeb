package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/sales", MigrationURL("postgres://u:p@localhost:5432/sales"))
	require.Equal(t, "pgx5://localhost/sales?sslmode=disable", MigrationURL("postgresql://localhost/sales?sslmode=disable"))
	require.Equal(t, "pgx5://already", MigrationURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.Equal(t, ups, downs)
}

func TestSchemaDeclaresSaleNumberConstraint(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(data), "CONSTRAINT sales_sale_number_key UNIQUE (sale_number)")
}
