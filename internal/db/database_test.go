package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nolmart.db")

	gdb, err := Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "")
	assert.Error(t, err)

	_, err = Open(context.Background(), "mysql", "dsn")
	assert.ErrorContains(t, err, "unknown database driver")
}
