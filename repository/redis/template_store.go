package redis

import (
	"context"
	"encoding/json"
	"errors"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

type templateStore struct {
	client *redislib.Client
}

// NewTemplateStore keeps each owner's template as a single JSON value.
func NewTemplateStore(client *redislib.Client) repository.TemplateStore {
	return &templateStore{client: client}
}

func (s *templateStore) GetTemplate(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error) {
	raw, err := s.client.Get(ctx, templateKey(ownerID)).Bytes()
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailable("load template", err)
	}
	var entries []domain.TemplateEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func (s *templateStore) SaveTemplate(ctx context.Context, ownerID string, entries []domain.TemplateEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return domain.Unavailable("save template", s.client.Set(ctx, templateKey(ownerID), payload, 0).Err())
}
