// Package journal keeps a local append-only record of provisioning actions.
// One-shot commands are re-run by external orchestrators; the journal gives
// operators a trace of what a host has already provisioned. It never stores
// credential material.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// Action identifies what a record describes.
type Action uint8

const (
	ActionUserCreated Action = iota + 1
	ActionPermissionGranted
	ActionPermissionRevoked
)

func (a Action) String() string {
	switch a {
	case ActionUserCreated:
		return "user-created"
	case ActionPermissionGranted:
		return "permission-granted"
	case ActionPermissionRevoked:
		return "permission-revoked"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// Record is one provisioning action.
type Record struct {
	ID        string    `cbor:"1,keyasint"`
	At        time.Time `cbor:"2,keyasint"`
	Action    Action    `cbor:"3,keyasint"`
	Principal string    `cbor:"4,keyasint,omitempty"`
	Resource  string    `cbor:"5,keyasint,omitempty"` // Type:id form
	Operation string    `cbor:"6,keyasint,omitempty"`
	Extended  bool      `cbor:"7,keyasint,omitempty"`
}

// Journal is a bbolt-backed record log. A nil *Journal is a valid no-op
// journal, used when no journal path is configured.
type Journal struct {
	db *bbolt.DB
}

// Open creates or opens the journal file, creating parent directories as
// needed.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append stores a record, filling ID and timestamp when unset. Keys are
// time ordered so List can iterate newest first.
func (j *Journal) Append(rec Record) error {
	if j == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	// Fixed-width fraction keeps keys lexicographically time ordered;
	// RFC3339Nano trims trailing zeros and would not.
	key := []byte(rec.At.UTC().Format("2006-01-02T15:04:05.000000000") + "_" + rec.ID)
	err = j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("append journal record: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit at or below zero
// returns everything.
func (j *Journal) List(limit int) ([]Record, error) {
	if j == nil {
		return nil, nil
	}
	var records []Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec Record
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode journal record %q: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
