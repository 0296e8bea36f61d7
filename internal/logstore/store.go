// Package logstore persists activation logs and their read watermark in a
// bbolt database.
package logstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	perrors "podrunner/internal/errors"
)

var (
	// Bucket names
	bucketActivations = []byte("activations")
	bucketLines       = []byte("lines")

	keyLogReadAt   = []byte("log_read_at")
	keyContainerID = []byte("container_id")
)

// Entry is one stored log line. Time is zero for lines forwarded from the
// container, which carry their own timestamps.
type Entry struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	Line string    `json:"line"`
}

// Store holds the logs of every activation, one bucket per activation.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, perrors.NewLogStoreError("Failed to create log store directory", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, perrors.NewLogStoreError(fmt.Sprintf("Failed to open log store %s", path), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketActivations); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketActivations, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, perrors.NewLogStoreError("Failed to initialize log store", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Handler returns the log sink of an activation.
func (s *Store) Handler(activationID string) *Handler {
	return &Handler{store: s, activationID: activationID}
}

// SetContainerID records the container started for an activation.
func (s *Store) SetContainerID(activationID, containerID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := activationBucket(tx, activationID)
		if err != nil {
			return err
		}
		return b.Put(keyContainerID, []byte(containerID))
	})
	if err != nil {
		return perrors.NewLogStoreError(fmt.Sprintf("Failed to record container of activation %s", activationID), err)
	}
	return nil
}

// ContainerID returns the container recorded for an activation, or "".
func (s *Store) ContainerID(activationID string) (string, error) {
	var containerID string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivations).Bucket([]byte(activationID))
		if b == nil {
			return nil
		}
		containerID = string(b.Get(keyContainerID))
		return nil
	})
	return containerID, err
}

// Lines returns the stored lines of an activation in write order.
func (s *Store) Lines(activationID string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivations).Bucket([]byte(activationID))
		if b == nil {
			return nil
		}
		lines := b.Bucket(bucketLines)
		if lines == nil {
			return nil
		}
		return lines.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, perrors.NewLogStoreError(fmt.Sprintf("Failed to read logs of activation %s", activationID), err)
	}
	return entries, nil
}

// Activations lists the stored activation ids.
func (s *Store) Activations() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActivations).ForEachBucket(func(k []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	sort.Strings(ids)
	return ids, err
}

// Delete drops an activation's logs and watermark.
func (s *Store) Delete(activationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketActivations).DeleteBucket([]byte(activationID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func activationBucket(tx *bolt.Tx, activationID string) (*bolt.Bucket, error) {
	if activationID == "" {
		return nil, fmt.Errorf("activation id is empty")
	}
	return tx.Bucket(bucketActivations).CreateBucketIfNotExists([]byte(activationID))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
