package migration

import (
	"io/fs"
	"path"
	"regexp"
	"strings"
	"testing"

	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
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
	assert.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

var quotedTable = regexp.MustCompile(`'([a-z_]+)'`)

func policyTables(t *testing.T, name string) []string {
	t.Helper()
	body, err := fs.ReadFile(embeddedMigrations, path.Join(migrationsDir, name))
	require.NoError(t, err)
	text := string(body)
	start := strings.Index(text, "ARRAY[")
	end := strings.Index(text, "]")
	require.True(t, start >= 0 && end > start, name)

	var tables []string
	for _, m := range quotedTable.FindAllStringSubmatch(text[start:end], -1) {
		tables = append(tables, m[1])
	}
	return tables
}

func TestRowLevelSecurityIsForcedOnEveryPolicyTable(t *testing.T) {
	policies := policyTables(t, "000004_row_level_security.up.sql")
	require.NotEmpty(t, policies)
	assert.Equal(t, policies, policyTables(t, "000005_force_row_level_security.up.sql"))
	assert.Equal(t, policies, policyTables(t, "000005_force_row_level_security.down.sql"))

	up, err := fs.ReadFile(embeddedMigrations, path.Join(migrationsDir, "000005_force_row_level_security.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(up), "FORCE ROW LEVEL SECURITY")
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, Apply(db, config.Config{DBAutoMigrate: true}, zap.NewNop()))

	for _, table := range []string{"tenants", "accounts", "playbooks", "credit_ledgers", "credit_transactions", "tenant_users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("settings", "ux_settings_tenant_key"))
}

func TestApplySkipsWhenDisabled(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, Apply(db, config.Config{}, zap.NewNop()))
	assert.False(t, db.Migrator().HasTable("tenants"))
}
