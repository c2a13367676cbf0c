package bolt

import (
	"context"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/internal/infrastructure/boltdb"
	"github.com/fastygo/dayflow/repository"
)

type templateStore struct {
	db *bbolt.DB
}

// NewTemplateStore keeps each owner's template in its own BoltDB slot.
func NewTemplateStore(db *bbolt.DB) repository.TemplateStore {
	return &templateStore{db: db}
}

func (s *templateStore) GetTemplate(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error) {
	var entries []domain.TemplateEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltdb.BucketTemplates)).Get([]byte(ownerID))
		if v == nil {
			return nil
		}
		// an unreadable template is the same as none
		_ = json.Unmarshal(v, &entries)
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("load template", err)
	}
	return entries, nil
}

func (s *templateStore) SaveTemplate(ctx context.Context, ownerID string, entries []domain.TemplateEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltdb.BucketTemplates)).Put([]byte(ownerID), payload)
	})
	return domain.Unavailable("save template", err)
}
