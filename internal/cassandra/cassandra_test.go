package cassandra

import (
	"testing"

	config "example.com/forum/internal/init"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	cfg := &config.Config{CassandraHost: "cass", CassandraKeyspace: "forum"}
	assert.Equal(t, "cassandra://cass/forum?x-migrations-table=schema_migrations&x-multi-statement=true", migrateURL(cfg))

	cfg.CassandraUsername, cfg.CassandraPassword = "u", "p"
	assert.Contains(t, migrateURL(cfg), "&username=u&password=p")
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNewClusterDatacenter(t *testing.T) {
	cfg := &config.Config{CassandraHost: "cass", CassandraDC: "dc1", CassandraUsername: "u", CassandraPassword: "p"}
	cluster := newCluster(cfg)
	assert.NotNil(t, cluster.HostFilter)
	assert.NotNil(t, cluster.Authenticator)
}
