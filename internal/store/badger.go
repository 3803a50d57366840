package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Keys for the two blobs. They are written inside a single transaction so
// the pair is replaced atomically.
var (
	keySessions = []byte("chat/sessions")
	keyMessages = []byte("chat/messages")
)

// BadgerConfig holds configuration for the embedded BadgerDB store.
type BadgerConfig struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string
	// InMemory disables disk persistence, useful for tests.
	InMemory bool
	// SyncWrites forces fsync on every commit.
	SyncWrites bool
}

// DefaultBadgerConfig returns production defaults for the given directory.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a config suitable for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// BadgerStore keeps the snapshot in an embedded BadgerDB instance.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (and if needed creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load reads the stored snapshot. Absent keys yield empty collections.
func (s *BadgerStore) Load(_ context.Context) (Snapshot, error) {
	snap := EmptySnapshot()
	err := s.db.View(func(txn *badger.Txn) error {
		if err := readJSON(txn, keySessions, &snap.Sessions); err != nil {
			return err
		}
		return readJSON(txn, keyMessages, &snap.Messages)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}
	return snap, nil
}

// Save writes both blobs in one transaction.
func (s *BadgerStore) Save(_ context.Context, snap Snapshot) error {
	sessions, err := json.Marshal(snap.Sessions)
	if err != nil {
		return fmt.Errorf("%w: marshal sessions: %v", ErrPersistence, err)
	}
	messages, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("%w: marshal messages: %v", ErrPersistence, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keySessions, sessions); err != nil {
			return err
		}
		return txn.Set(keyMessages, messages)
	})
	if err != nil {
		return fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		log.Printf("[store] close: %v", err)
		return err
	}
	return nil
}

func readJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}
