package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alias1177/Backtester/models"
)

// MemoryStore keeps backtests in process. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	backtests map[string]models.StoredBacktest
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{backtests: make(map[string]models.StoredBacktest)}
}

// StoreBacktest saves a copy of the run and returns its id
func (m *MemoryStore) StoreBacktest(_ context.Context, strategy string, cfg models.BacktestConfig, payload models.BacktestPayload, at time.Time) (string, error) {
	id := uuid.NewString()
	stored := models.StoredBacktest{
		ID:       id,
		Strategy: strategy,
		Config:   cfg,
		Payload: models.BacktestPayload{
			Trades:      append([]models.Trade{}, payload.Trades...),
			EquityCurve: append([]models.EquitySnapshot{}, payload.EquityCurve...),
			Metrics:     payload.Metrics,
		},
		CreatedAt: at.UTC(),
	}

	m.mu.Lock()
	m.backtests[id] = stored
	m.mu.Unlock()

	return id, nil
}

// GetBacktest returns a stored run
func (m *MemoryStore) GetBacktest(_ context.Context, id string) (*models.StoredBacktest, error) {
	m.mu.RLock()
	stored, ok := m.backtests[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &stored, nil
}

// List returns stored runs, oldest first
func (m *MemoryStore) List() []models.StoredBacktest {
	m.mu.RLock()
	out := make([]models.StoredBacktest, 0, len(m.backtests))
	for _, b := range m.backtests {
		out = append(out, b)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
