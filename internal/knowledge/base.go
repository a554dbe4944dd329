// Package knowledge accumulates insights extracted from tactical documents
// and flattens them into context lines for AI requests.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tactix/internal/storage"
	"github.com/tactix/pkg/logger"
)

// Insight is what was learned from one document.
type Insight struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	DocumentType  string    `json:"type"`
	KeyInsights   []string  `json:"keyInsights"`
	TacticalRules []string  `json:"tacticalRules"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Base is an ordered collection of insights. It is optionally persisted
// under a single key after every mutation.
type Base struct {
	mu       sync.RWMutex
	insights []Insight

	backend storage.Backend
	key     string
}

// New creates an empty in-memory base.
func New() *Base {
	return &Base{}
}

// Open hydrates a base persisted at key. Unreadable or corrupt data yields
// an empty base.
func Open(ctx context.Context, backend storage.Backend, key string) *Base {
	b := &Base{backend: backend, key: key}

	data, ok, err := backend.Get(ctx, key)
	if err != nil {
		logger.Log.Warnf("Load knowledge %s failed: %v", key, err)
		return b
	}
	if !ok {
		return b
	}
	if err := json.Unmarshal([]byte(data), &b.insights); err != nil {
		logger.Log.Warnf("Stored knowledge %s is malformed: %v", key, err)
		b.insights = nil
	}
	return b
}

// Add appends in, assigning an ID and timestamp when missing, and returns
// the stored insight.
func (b *Base) Add(ctx context.Context, in Insight) (Insight, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	in.KeyInsights = slices.Clone(in.KeyInsights)
	in.TacticalRules = slices.Clone(in.TacticalRules)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.insights = append(b.insights, in)
	if err := b.persistLocked(ctx); err != nil {
		b.insights = b.insights[:len(b.insights)-1]
		return Insight{}, err
	}
	return in, nil
}

// Remove deletes the insight with id and reports whether it existed.
func (b *Base) Remove(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.insights, func(in Insight) bool { return in.ID == id })
	if i < 0 {
		return false, nil
	}

	prev := b.insights
	b.insights = slices.Delete(slices.Clone(b.insights), i, i+1)
	if err := b.persistLocked(ctx); err != nil {
		b.insights = prev
		return false, err
	}
	return true, nil
}

// List returns the insights in insertion order.
func (b *Base) List() []Insight {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.insights)
}

// Len returns the number of insights.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.insights)
}

// FlattenToContext renders every insight as a header line followed by its
// tactical rules and key insights.
func (b *Base) FlattenToContext() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var lines []string
	for _, in := range b.insights {
		lines = append(lines, fmt.Sprintf("--- FROM DOC: %s (%s) ---", in.Filename, in.DocumentType))
		lines = append(lines, in.TacticalRules...)
		lines = append(lines, in.KeyInsights...)
	}
	return lines
}

func (b *Base) persistLocked(ctx context.Context) error {
	if b.backend == nil {
		return nil
	}
	data, err := json.Marshal(b.insights)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge: %w", err)
	}
	if err := b.backend.Set(ctx, b.key, string(data)); err != nil {
		return fmt.Errorf("failed to save knowledge: %w", err)
	}
	return nil
}
