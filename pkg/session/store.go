package session

import (
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNoKey is returned by Store.Get when the key is not set.
var ErrNoKey = errors.New("no such key")

// Store persists the session between runs.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value of key.
func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return "", ErrNoKey
	}
	return value, nil
}

// Set sets the value of key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

const bucketSession = "session"

// BoltStore is a Store backed by a bolt database file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSession))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Get returns the value of key.
func (s *BoltStore) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketSession)).Get([]byte(key))
		if v == nil {
			return ErrNoKey
		}
		value = string(v)
		return nil
	})
	return value, err
}

// Set sets the value of key.
func (s *BoltStore) Set(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Put([]byte(key), []byte(value))
	})
}

// Remove deletes key.
func (s *BoltStore) Remove(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Delete([]byte(key))
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
