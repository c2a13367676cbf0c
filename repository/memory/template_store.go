package memory

import (
	"context"
	"sync"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

type TemplateStore struct {
	mu        sync.Mutex
	templates map[string][]domain.TemplateEntry
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string][]domain.TemplateEntry)}
}

func (s *TemplateStore) GetTemplate(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TemplateEntry(nil), s.templates[ownerID]...), nil
}

func (s *TemplateStore) SaveTemplate(ctx context.Context, ownerID string, entries []domain.TemplateEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[ownerID] = append([]domain.TemplateEntry(nil), entries...)
	return nil
}

var _ repository.TemplateStore = (*TemplateStore)(nil)
