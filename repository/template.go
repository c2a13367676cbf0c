package repository

import (
	"context"

	"github.com/fastygo/dayflow/domain"
)

// TemplateStore keeps one saved day template per owner.
type TemplateStore interface {
	GetTemplate(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error)
	SaveTemplate(ctx context.Context, ownerID string, entries []domain.TemplateEntry) error
}
