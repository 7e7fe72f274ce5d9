// Package history records finished operations in a bbolt database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"ytdash/internal/model"
	"ytdash/internal/progress"
)

const (
	downloadsBucket = "downloads"
	metadataBucket  = "metadata"
	schemaVersion   = 1
)

// ErrNotFound is returned when an entry cannot be found.
var ErrNotFound = errors.New("history entry not found")

// Entry is one finished or failed operation.
type Entry struct {
	ID         uuid.UUID          `json:"id"`
	URL        string             `json:"url"`
	Title      string             `json:"title,omitempty"`
	Kind       model.DownloadKind `json:"kind"`
	Phase      progress.Phase     `json:"phase"`
	Error      string             `json:"error,omitempty"`
	Outputs    []model.OutputFile `json:"outputs,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Store persists entries keyed by operation id.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(downloadsBucket)); err != nil {
			return fmt.Errorf("failed to create downloads bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}
		return meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion)))
	})
}

// Save inserts or replaces e.
func (s *Store) Save(e Entry) error {
	if e.ID == uuid.Nil {
		return errors.New("history entry ID cannot be empty")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(downloadsBucket)).Put([]byte(e.ID.String()), data)
	})
}

// Find returns the entry with the given id.
func (s *Store) Find(id uuid.UUID) (Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(downloadsBucket)).Get([]byte(id.String()))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &e)
	})
	return e, err
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(downloadsBucket)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal history entry %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FinishedAt.After(entries[j].FinishedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Delete removes one entry.
func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(downloadsBucket))
		if b.Get([]byte(id.String())) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id.String()))
	})
}

// Clear removes every entry and returns how many there were.
func (s *Store) Clear() (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(downloadsBucket)).Stats().KeyN
		if err := tx.DeleteBucket([]byte(downloadsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(downloadsBucket))
		return err
	})
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
