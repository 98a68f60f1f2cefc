// Package store persists pool aggregates and stake positions keyed by pool id
// and staker.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yourorg/tiered-staking/internal/model"
)

var (
	// ErrPoolNotFound is returned when no pool is stored under an id.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrPositionNotFound is returned when a staker has no position in a pool.
	ErrPositionNotFound = errors.New("position not found")
)

const (
	poolPrefix     = "pool/"
	positionPrefix = "position/"
)

func poolKey(id string) []byte {
	return []byte(poolPrefix + id)
}

func positionKey(pool string, owner common.Address) []byte {
	return []byte(positionPrefix + pool + "/" + strings.ToLower(owner.Hex()))
}

// Store reads and commits staking records on top of a Database backend.
type Store struct {
	db Database
}

// New wraps a backend.
func New(db Database) *Store {
	return &Store{db: db}
}

// NewMemory returns a store over an in-memory backend.
func NewMemory() *Store {
	return New(NewMemDB())
}

// Open returns a store for the named backend ("memory" or "leveldb").
func Open(backend, path string) (*Store, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "leveldb":
		if path == "" {
			return nil, fmt.Errorf("leveldb backend requires a path")
		}
		db, err := NewLevelDB(path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
		}
		return New(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Pool loads a pool aggregate.
func (s *Store) Pool(id string) (*model.PoolAggregate, error) {
	raw, err := s.db.Get(poolKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", id, err)
	}
	var pool model.PoolAggregate
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", id, err)
	}
	return &pool, nil
}

// Position loads the position of owner in pool.
func (s *Store) Position(pool string, owner common.Address) (*model.StakePosition, error) {
	raw, err := s.db.Get(positionKey(pool, owner))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s in %s", ErrPositionNotFound, owner.Hex(), pool)
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	var pos model.StakePosition
	if err := json.Unmarshal(raw, &pos); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &pos, nil
}

// Positions returns every position of a pool, ordered by owner.
func (s *Store) Positions(pool string) ([]*model.StakePosition, error) {
	raws, err := s.db.Scan([]byte(positionPrefix + pool + "/"))
	if err != nil {
		return nil, fmt.Errorf("scan positions of %s: %w", pool, err)
	}
	out := make([]*model.StakePosition, 0, len(raws))
	for _, raw := range raws {
		var pos model.StakePosition
		if err := json.Unmarshal(raw, &pos); err != nil {
			return nil, fmt.Errorf("decode position: %w", err)
		}
		out = append(out, &pos)
	}
	return out, nil
}

// Commit writes the pool and the given positions in one atomic batch.
func (s *Store) Commit(pool *model.PoolAggregate, positions ...*model.StakePosition) error {
	batch := make(map[string][]byte, len(positions)+1)
	if pool != nil {
		raw, err := json.Marshal(pool)
		if err != nil {
			return fmt.Errorf("encode pool %s: %w", pool.ID, err)
		}
		batch[string(poolKey(pool.ID))] = raw
	}
	for _, pos := range positions {
		raw, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("encode position: %w", err)
		}
		batch[string(positionKey(pos.Pool, pos.Owner))] = raw
	}
	if err := s.db.Write(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.db.Close()
}
