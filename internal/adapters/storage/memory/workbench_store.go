package memory

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/PabloGalante/promptlab/internal/app/workbench"
	"github.com/PabloGalante/promptlab/internal/domain"
)

var ErrWorkbenchExists = errors.New("workbench already exists")

// WorkbenchStore keeps live workbenches for the lifetime of the process.
type WorkbenchStore struct {
	mu          sync.RWMutex
	workbenches map[domain.WorkbenchID]*workbench.Workbench
}

func NewWorkbenchStore() *WorkbenchStore {
	return &WorkbenchStore{
		workbenches: make(map[domain.WorkbenchID]*workbench.Workbench),
	}
}

func (s *WorkbenchStore) Create(wb *workbench.Workbench) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workbenches[wb.ID()]; exists {
		return fmt.Errorf("%s: %w", wb.ID(), ErrWorkbenchExists)
	}

	s.workbenches[wb.ID()] = wb
	return nil
}

func (s *WorkbenchStore) Get(id domain.WorkbenchID) (*workbench.Workbench, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wb, ok := s.workbenches[id]
	if !ok {
		return nil, fmt.Errorf("workbench %s: %w", id, domain.ErrNotFound)
	}

	return wb, nil
}

func (s *WorkbenchStore) Delete(id domain.WorkbenchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workbenches[id]; !ok {
		return fmt.Errorf("workbench %s: %w", id, domain.ErrNotFound)
	}

	delete(s.workbenches, id)
	return nil
}

// List returns workbenches ordered by id. A limit <= 0 returns all of them.
func (s *WorkbenchStore) List(limit int) []*workbench.Workbench {
	s.mu.RLock()
	result := make([]*workbench.Workbench, 0, len(s.workbenches))
	for _, wb := range s.workbenches {
		result = append(result, wb)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *workbench.Workbench) int {
		return strings.Compare(string(a.ID()), string(b.ID()))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
