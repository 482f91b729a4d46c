// Package boltdb keeps the transfer history in a bbolt file.
package boltdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/resumable-download/internal/session"
)

var Buckets = struct {
	Metadata  []byte
	Transfers []byte
}{
	Metadata:  []byte("__metadata__"),
	Transfers: []byte("transfers"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// How long to wait for another process to let go of the file.
const openTimeout = time.Second

type Database interface {
	Close() error

	session.Database
}

type database struct {
	*bbolt.DB
}

var _ Database = &database{}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Transfers); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &database{db}, nil
}

// ListTransfers returns every record, ordered by start time.
func (d *database) ListTransfers() (transfers []session.TransferRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Transfers)
		return bucket.ForEach(func(k, v []byte) error {
			var record session.TransferRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("invalid record %s: %w", k, err)
			}
			transfers = append(transfers, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Keys are random IDs, so bucket order means nothing
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].StartedAt.Before(transfers[j].StartedAt)
	})
	return transfers, nil
}

func (d *database) WriteTransfer(record *session.TransferRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Transfers).Put([]byte(record.ID), data)
	})
}
