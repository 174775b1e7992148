package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NoError(t, config.Validate())
	assert.Equal(t, "./data/fireside.db", config.DatabasePath)
	assert.Equal(t, 10, config.MaxConnections)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.DatabasePath = ""
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.MaxConnections = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.ConnMaxLifetime = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.ConnMaxIdleTime = 0
	assert.Error(t, config.Validate())
}
