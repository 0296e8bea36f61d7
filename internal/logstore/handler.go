package logstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	perrors "podrunner/internal/errors"
	"podrunner/pkg/activation"
)

// Handler is an activation's log sink. Lines are buffered until flushed.
type Handler struct {
	store        *Store
	activationID string

	mu      sync.Mutex
	pending []Entry
}

var _ activation.LogHandler = (*Handler)(nil)

// ActivationID returns the activation this handler writes to.
func (h *Handler) ActivationID() string {
	return h.activationID
}

func (h *Handler) Write(lines string, flush bool, timestamp bool) error {
	var now time.Time
	if timestamp {
		now = time.Now().UTC()
	}

	h.mu.Lock()
	for _, line := range strings.Split(strings.TrimRight(lines, "\n"), "\n") {
		h.pending = append(h.pending, Entry{Time: now, Line: line})
	}
	h.mu.Unlock()

	if flush {
		return h.Flush()
	}
	return nil
}

func (h *Handler) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.pending) == 0 {
		return nil
	}

	err := h.store.db.Update(func(tx *bolt.Tx) error {
		b, err := activationBucket(tx, h.activationID)
		if err != nil {
			return err
		}
		lines, err := b.CreateBucketIfNotExists(bucketLines)
		if err != nil {
			return err
		}

		for _, entry := range h.pending {
			seq, err := lines.NextSequence()
			if err != nil {
				return err
			}
			entry.Seq = seq
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := lines.Put(itob(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return perrors.NewLogStoreError(fmt.Sprintf("Failed to flush logs of activation %s", h.activationID), err)
	}

	h.pending = h.pending[:0]
	return nil
}

// LogReadAt returns the stored watermark. An unreadable watermark is treated
// as absent.
func (h *Handler) LogReadAt() (time.Time, bool) {
	var readAt time.Time
	var found bool
	err := h.store.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivations).Bucket([]byte(h.activationID))
		if b == nil {
			return nil
		}
		data := b.Get(keyLogReadAt)
		if data == nil {
			return nil
		}
		if err := readAt.UnmarshalText(data); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		slog.Warn("Ignoring unreadable log watermark, logs will be read from the start",
			"activationID", h.activationID, "error", err)
		return time.Time{}, false
	}
	return readAt, found
}

func (h *Handler) SetLogReadAt(t time.Time) error {
	data, err := t.MarshalText()
	if err != nil {
		return perrors.NewLogStoreError("Invalid log watermark", err)
	}

	err = h.store.db.Update(func(tx *bolt.Tx) error {
		b, err := activationBucket(tx, h.activationID)
		if err != nil {
			return err
		}
		return b.Put(keyLogReadAt, data)
	})
	if err != nil {
		return perrors.NewLogStoreError(fmt.Sprintf("Failed to store log watermark of activation %s", h.activationID), err)
	}
	return nil
}
