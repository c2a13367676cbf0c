package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
)

// ownerNamespace scopes name-based owner ids derived from emails.
var ownerNamespace = uuid.MustParse("6f1c3c1e-2b7a-4d1e-9a53-8c0c4f7d2e10")

// Claims is the payload of issued bearer tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Credentials is returned on login.
type Credentials struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UseCase struct {
	sessions repository.SessionRepository
	secret   []byte
	issuer   string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(sessions repository.SessionRepository, secret, issuer string, ttl time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = repository.DefaultSessionTTL
	}
	return &UseCase{
		sessions: sessions,
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// OwnerID derives the stable owner id for an email address.
func OwnerID(email string) string {
	return uuid.NewSHA1(ownerNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// Login starts a mocked session for email. No password check is performed;
// identity is delegated.
func (uc *UseCase) Login(ctx context.Context, email string) (*Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidPayload
	}

	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    OwnerID(email),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.ttl),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	claims := Claims{
		UserID:    session.UserID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    uc.issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.secret)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "sign token", err)
	}

	uc.logger.Info("session started", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))
	return &Credentials{
		Token:     token,
		UserID:    session.UserID,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Authenticate verifies a bearer token and that its session is still live.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return uc.secret, nil
	})
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}

	session, err := uc.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	if session.IsExpired(uc.now()) || session.UserID != claims.UserID {
		_ = uc.sessions.Delete(ctx, session.ID)
		return nil, domain.ErrUnauthenticated
	}
	return session, nil
}

// Logout ends the session. Unknown sessions are ignored.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	uc.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}
