package bolt

import (
	"context"
	"encoding/json"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/internal/infrastructure/boltdb"
	"github.com/fastygo/dayflow/repository"
)

type sessionRepository struct {
	db  *bbolt.DB
	ttl time.Duration
}

// NewSessionRepository stores sessions in BoltDB. Expired sessions are
// removed lazily on read.
func NewSessionRepository(db *bbolt.DB, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = repository.DefaultSessionTTL
	}
	return &sessionRepository{db: db, ttl: ttl}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var session *domain.Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltdb.BucketSessions)).Get([]byte(id))
		if v == nil {
			return nil
		}
		var s domain.Session
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		session = &s
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("load session", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.IsExpired(time.Now()) {
		_ = r.Delete(ctx, id)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	err = r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltdb.BucketSessions)).Put([]byte(session.ID), payload)
	})
	return domain.Unavailable("save session", err)
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltdb.BucketSessions)).Delete([]byte(id))
	})
	return domain.Unavailable("delete session", err)
}
