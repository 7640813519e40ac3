package operations

import (
	"fmt"
	"sync"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// RunHistory is a bounded in-memory record of submissions. The oldest run is
// evicted once capacity is reached.
type RunHistory struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	runs     map[string]*domain.RunRecord
}

// NewRunHistory creates a history keeping at most capacity runs
func NewRunHistory(capacity int) *RunHistory {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &RunHistory{
		capacity: capacity,
		runs:     make(map[string]*domain.RunRecord),
	}
}

// Create stores a new run
func (h *RunHistory) Create(run domain.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	for len(h.order) >= h.capacity {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}

	h.runs[run.ID] = &run
	h.order = append(h.order, run.ID)
	return nil
}

// Update applies fn to a stored run
func (h *RunHistory) Update(id string, fn func(*domain.RunRecord)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, exists := h.runs[id]
	if !exists {
		return fmt.Errorf("run %s not found", id)
	}
	fn(run)
	return nil
}

// Get retrieves a run by ID
func (h *RunHistory) Get(id string) (*domain.RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	run, exists := h.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s not found", id)
	}

	// Return a copy to prevent external modification
	runCopy := *run
	return &runCopy, nil
}

// List returns runs newest first. A limit <= 0 returns all of them.
func (h *RunHistory) List(limit int) []domain.RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.order)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]domain.RunRecord, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, *h.runs[h.order[i]])
	}
	return result
}

// Len returns the number of stored runs
func (h *RunHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
