package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	root := &config.Config{
		Databases: map[string]*config.DatabaseConfig{
			"main": {Driver: "sqlite", Database: ":memory:"},
		},
	}
	pool := config.NewDBPool()
	t.Cleanup(func() { pool.Close() })

	store, err := NewStoreFromConfig(&config.SessionConfig{}, root, pool)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStoreFromConfig(&config.SessionConfig{Backend: "sql", SQLDatabase: "main"}, root, pool)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)

	_, err = NewStoreFromConfig(&config.SessionConfig{Backend: "sql", SQLDatabase: "nope"}, root, pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `database "nope" not configured`)

	_, err = NewStoreFromConfig(&config.SessionConfig{Backend: "redis"}, root, pool)
	require.Error(t, err)
}
