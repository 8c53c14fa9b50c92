package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embedded, "sql")
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
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialMigrationGuardsPromoLimit(t *testing.T) {
	data, err := fs.ReadFile(embedded, "sql/0001_init.up.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "order_number     VARCHAR(32)   NOT NULL UNIQUE")
	assert.Contains(t, sql, "usage_count <= usage_limit")
}
