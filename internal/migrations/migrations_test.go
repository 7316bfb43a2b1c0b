package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(Files(), ".")
	require.NoError(t, err)

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
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)
}

func TestSingleActiveSubscriptionIndex(t *testing.T) {
	t.Parallel()

	raw, err := fs.ReadFile(Files(), "000002_single_active_subscription.up.sql")
	require.NoError(t, err)
	sql := string(raw)
	require.Contains(t, sql, "CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_active_per_user")
	require.Contains(t, sql, "WHERE status = 'active'")
	require.Less(t, strings.Index(sql, "UPDATE subscriptions"), strings.Index(sql, "CREATE UNIQUE INDEX"),
		"duplicates must be repaired before the index is built")
}

func TestDriverURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgres://u:p@db:5432/app?sslmode=disable": "pgx5://u:p@db:5432/app?sslmode=disable",
		"postgresql://db/app":                        "pgx5://db/app",
		"pgx5://db/app":                              "pgx5://db/app",
	}
	for in, want := range tests {
		got, err := DriverURL(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := DriverURL("mysql://db/app")
	require.Error(t, err)
}
