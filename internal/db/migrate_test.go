package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/kec?sslmode=disable", DriverURL("postgres://u:p@localhost:5432/kec?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/kec", DriverURL("postgresql://localhost/kec"))
	require.Equal(t, "pgx5://localhost/kec", DriverURL("pgx5://localhost/kec"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}
