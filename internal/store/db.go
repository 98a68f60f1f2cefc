package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrKeyNotFound is returned by a Database for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Database is a key-value backend. Write applies every put in the batch or
// none of them.
type Database interface {
	Get(key []byte) ([]byte, error)
	Write(batch map[string][]byte) error
	Scan(prefix []byte) ([][]byte, error)
	Close() error
}

// --- In-memory backend ---

// MemDB is a Database held in a map.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemDB returns an empty in-memory database.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Write applies the batch under one lock.
func (db *MemDB) Write(batch map[string][]byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for k, v := range batch {
		stored := make([]byte, len(v))
		copy(stored, v)
		db.data[k] = stored
	}
	return nil
}

// Scan returns the values whose key starts with prefix, in key order.
func (db *MemDB) Scan(prefix []byte) ([][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	keys := make([]string, 0)
	for k := range db.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		v := db.data[k]
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, cp)
	}
	return out, nil
}

// Close satisfies Database; there is nothing to release.
func (db *MemDB) Close() error {
	return nil
}

// --- Persistent backend ---

// LevelDB is a persistent Database.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Get retrieves the value for key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

// Write commits the puts as a single leveldb batch.
func (ldb *LevelDB) Write(batch map[string][]byte) error {
	b := new(leveldb.Batch)
	for k, v := range batch {
		b.Put([]byte(k), v)
	}
	return ldb.db.Write(b, nil)
}

// Scan iterates every key under prefix.
func (ldb *LevelDB) Scan(prefix []byte) ([][]byte, error) {
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	out := make([][]byte, 0)
	for iter.Next() {
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out = append(out, v)
	}
	return out, iter.Error()
}

// Close closes the database.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}
