package database

import (
	"context"
	"testing"

	"wisefido-emergency/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresDB_Unreachable(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Password: "postgres",
		Database: "emergency",
		SSLMode:  "disable",
	}

	db, err := NewPostgresDB(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
