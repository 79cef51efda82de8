package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/config"
)

func factoryFixture(t *testing.T) (*config.Config, *config.DBPool) {
	t.Helper()

	root := &config.Config{
		Databases: map[string]*config.DatabaseConfig{
			"main": {Driver: "sqlite", Database: ":memory:"},
		},
	}
	pool := config.NewDBPool()
	t.Cleanup(func() { pool.Close() })
	return root, pool
}

func TestNewStoreFromConfig_MemoryDefault(t *testing.T) {
	root, pool := factoryFixture(t)

	store, err := NewStoreFromConfig(&config.AdmissionConfig{}, root, pool)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStoreFromConfig(&config.AdmissionConfig{Backend: "memory"}, root, pool)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestNewStoreFromConfig_SQL(t *testing.T) {
	root, pool := factoryFixture(t)

	store, err := NewStoreFromConfig(&config.AdmissionConfig{Backend: "sql", SQLDatabase: "main"}, root, pool)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
}

func TestNewStoreFromConfig_MissingDatabase(t *testing.T) {
	root, pool := factoryFixture(t)

	_, err := NewStoreFromConfig(&config.AdmissionConfig{Backend: "sql", SQLDatabase: "nope"}, root, pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `database "nope" not configured`)
}

func TestNewStoreFromConfig_UnsupportedBackend(t *testing.T) {
	root, pool := factoryFixture(t)

	_, err := NewStoreFromConfig(&config.AdmissionConfig{Backend: "redis"}, root, pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported admission backend")
}
