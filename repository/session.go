package repository

import (
	"context"
	"time"

	"github.com/fastygo/dayflow/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// DefaultSessionTTL applies when a session carries no expiry.
const DefaultSessionTTL = 24 * time.Hour
