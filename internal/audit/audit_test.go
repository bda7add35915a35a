package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EmptyDriverDisablesAuditing(t *testing.T) {
	store, err := Open("", "")
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestOpen_UnsupportedDriverErrors(t *testing.T) {
	_, err := Open("mongodb", "whatever")
	assert.Error(t, err)
}

func TestNilStore_LogAndSweepAreNoOps(t *testing.T) {
	var store *Store
	assert.NotPanics(t, func() { store.Log("s1", "Internal", "speak", "success", "") })
	assert.NoError(t, store.Sweep(context.Background(), time.Hour))
}

func TestOpenSqlite_LogThenSweepRemovesOldRecords(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open("sqlite", dsn)
	require.NoError(t, err)
	require.NotNil(t, store)

	store.Log("session-1", "Internal", "speak", "success", "hi there")
	time.Sleep(50 * time.Millisecond) // Log is async; let the goroutine land the write

	var count int64
	require.NoError(t, store.db.Model(&Record{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Sweep(context.Background(), -time.Hour))

	require.NoError(t, store.db.Model(&Record{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
