// ==============================================================================
// IN-MEMORY QUEUE STORE - internal/queue/store_memory.go
// ==============================================================================
package queue

import (
	"context"
	"sort"
	"sync"

	"driverid/internal/domain"
	driveriderrors "driverid/pkg/errors"

	"github.com/google/uuid"
)

// MemoryStore keeps queue items in process memory. Used in tests and in
// single-instance deployments that accept losing queued work on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*domain.QueueItem
	order map[uuid.UUID]int // insertion sequence, keeps List stable
	seq   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*domain.QueueItem),
		order: make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) Save(ctx context.Context, item *domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		s.order[item.ID] = s.seq
		s.seq++
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, driveriderrors.ErrQueueItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.QueueStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var out []*domain.QueueItem
	for _, item := range s.items {
		if len(wanted) > 0 && !wanted[item.Status] {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return driveriderrors.ErrQueueItemNotFound
	}
	delete(s.items, id)
	delete(s.order, id)
	return nil
}
