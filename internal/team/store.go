package team

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tactix/internal/metrics"
	"github.com/tactix/internal/storage"
	"github.com/tactix/pkg/logger"
)

// Store reads and writes team records in a storage backend.
type Store struct {
	backend storage.Backend
}

// NewStore creates a team store over backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the record stored at key. A missing key, a read failure,
// malformed JSON or an invalid record all yield def.
func (s *Store) Load(ctx context.Context, key string, def Record) Record {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		logger.Log.Warnf("Load %s failed: %v", key, err)
		metrics.RecordStorageFallback()
		return def.clone()
	}
	if !ok {
		return def.clone()
	}

	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		logger.Log.Warnf("Stored team %s is malformed: %v", key, err)
		metrics.RecordStorageFallback()
		return def.clone()
	}
	if err := r.Validate(); err != nil {
		logger.Log.Warnf("Stored team %s is invalid: %v", key, err)
		metrics.RecordStorageFallback()
		return def.clone()
	}

	return r
}

// Save writes r at key, replacing any previous value.
func (s *Store) Save(ctx context.Context, key string, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal team: %w", err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to save team: %w", err)
	}
	return nil
}

// Side selects one of the two records of a session.
type Side int

const (
	Self Side = iota
	Opponent
)

func (s Side) String() string {
	if s == Opponent {
		return "opponent"
	}
	return "my_team"
}

// Teams is the self/opponent pair of one user. Every mutation is saved
// before it returns.
type Teams struct {
	store *Store
	keys  [2]string
	teams [2]Record
	mu    sync.RWMutex
}

// Key builds the storage key for one side of a user.
func Key(prefix, userID string, side Side) string {
	return fmt.Sprintf("%s:%s:%s", prefix, userID, side)
}

// LoadTeams hydrates both records of userID, falling back to the defaults.
func LoadTeams(ctx context.Context, store *Store, prefix, userID string) *Teams {
	t := &Teams{
		store: store,
		keys:  [2]string{Key(prefix, userID, Self), Key(prefix, userID, Opponent)},
	}
	t.teams[Self] = store.Load(ctx, t.keys[Self], DefaultSelf())
	t.teams[Opponent] = store.Load(ctx, t.keys[Opponent], DefaultOpponent())
	return t
}

// Get returns a copy of one side.
func (t *Teams) Get(side Side) Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.teams[side].clone()
}

// Set validates r, saves it and replaces the side.
func (t *Teams) Set(ctx context.Context, side Side, r Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", side, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Save(ctx, t.keys[side], r); err != nil {
		return err
	}
	t.teams[side] = r.clone()
	return nil
}

// Update applies fn to a copy of one side and stores the result.
func (t *Teams) Update(ctx context.Context, side Side, fn func(*Record)) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.teams[side].clone()
	fn(&r)
	if err := r.Validate(); err != nil {
		return t.teams[side].clone(), fmt.Errorf("invalid %s: %w", side, err)
	}
	if err := t.store.Save(ctx, t.keys[side], r); err != nil {
		return t.teams[side].clone(), err
	}
	t.teams[side] = r
	return r.clone(), nil
}

// ApplyScan merges a scan into one side and stores the result.
func (t *Teams) ApplyScan(ctx context.Context, side Side, scan ScanResult) (Record, error) {
	return t.Update(ctx, side, func(r *Record) {
		*r = Merge(*r, scan)
	})
}
