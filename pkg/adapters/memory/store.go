package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// Store implements ports.ProjectStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Project
	mu   sync.RWMutex
}

var _ ports.ProjectStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Project),
	}
}

// Save keeps a copy of the project so later caller mutations do not leak in.
func (s *Store) Save(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[project.ID] = project.Snapshot()
	return nil
}

// Load returns a copy of the stored project.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.data[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return project.Snapshot(), nil
}

// Delete removes the project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, projectID)
	return nil
}

// List returns stored project IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
