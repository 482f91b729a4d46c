package boltdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/alanbriolat/resumable-download/internal/session"
	"github.com/alanbriolat/resumable-download/internal/transfer/transfertest"
)

func newDatabase(t *testing.T) (Database, string) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := New(path)
	require.NoError(t, err)
	return db, path
}

func TestDatabase_WriteList(t *testing.T) {
	assert := assert_.New(t)
	db, _ := newDatabase(t)
	defer db.Close()

	records, err := db.ListTransfers()
	require.NoError(t, err)
	assert.Empty(records)

	start := time.Date(2022, 4, 1, 12, 0, 0, 0, time.UTC)
	second := session.TransferRecord{
		ID:        session.NewTransferID(),
		URL:       "http://example.com/b",
		State:     session.StateDownloading,
		StartedAt: start.Add(time.Minute),
	}
	first := session.TransferRecord{
		ID:        session.NewTransferID(),
		URL:       "http://example.com/a",
		State:     session.StateDownloading,
		StartedAt: start,
	}
	require.NoError(t, db.WriteTransfer(&second))
	require.NoError(t, db.WriteTransfer(&first))

	// Rewriting replaces the record
	first.State = session.StateCompleted
	first.DownloadedBytes = 4096
	first.TotalBytes = 4096
	first.FinishedAt = start.Add(time.Second)
	require.NoError(t, db.WriteTransfer(&first))

	records, err = db.ListTransfers()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(first.ID, records[0].ID)
	assert.Equal(session.StateCompleted, records[0].State)
	assert.Equal(int64(4096), records[0].DownloadedBytes)
	assert.True(first.FinishedAt.Equal(records[0].FinishedAt))
	assert.Equal(second.ID, records[1].ID)
	assert.Equal("http://example.com/b", records[1].URL)
}

func TestDatabase_Reopen(t *testing.T) {
	assert := assert_.New(t)
	db, path := newDatabase(t)
	record := session.TransferRecord{ID: session.NewTransferID(), State: session.StateError, Error: "HTTP error: 404"}
	require.NoError(t, db.WriteTransfer(&record))
	require.NoError(t, db.Close())

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()
	records, err := db.ListTransfers()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(record.ID, records[0].ID)
	assert.Equal("HTTP error: 404", records[0].Error)
}

func TestDatabase_FutureVersion(t *testing.T) {
	db, path := newDatabase(t)
	require.NoError(t, db.Close())

	raw, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, raw.Update(func(tx *bbolt.Tx) error {
		version, _ := json.Marshal(currentVersion + 1)
		return tx.Bucket(Buckets.Metadata).Put(MetadataKeys.Version, version)
	}))
	require.NoError(t, raw.Close())

	_, err = New(path)
	require.Error(t, err)
	assert_.Contains(t, err.Error(), "newer than supported")
}

func TestSession_WithDatabase(t *testing.T) {
	assert := assert_.New(t)
	db, _ := newDatabase(t)
	defer db.Close()
	s, err := session.New(context.Background(), session.Config{
		Database: db,
		Transfer: transfertest.NewFactory(transfertest.Config{TotalSize: 2048}).Func(),
	})
	require.NoError(t, err)
	defer s.Close()

	output := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, s.Start("http://example.com/file.bin", output))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(session.StateCompleted, state)

	records, err := db.ListTransfers()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(output, records[0].OutputPath)
	assert.Equal(session.StateCompleted, records[0].State)
	assert.Equal(int64(2048), records[0].DownloadedBytes)
}
