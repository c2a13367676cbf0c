package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/pkg/httpcontext"
)

// Authenticator resolves a bearer token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// JWTAuth rejects requests without a valid bearer token and passes the
// session owner downstream in the X-User-ID and X-Session-ID headers. Client
// supplied values of those headers are always discarded.
func JWTAuth(auth Authenticator, timeout time.Duration, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(httpcontext.HeaderUserID)
			ctx.Request.Header.Del(httpcontext.HeaderSessionID)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
			session, err := auth.Authenticate(stdCtx, tokenString)
			cancel()
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					logger.Error("session lookup failed", zap.Error(err))
					ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
					writeError(ctx, string(domain.ErrCodeStoreUnavailable), "session store unavailable")
					return
				}
				logger.Debug("rejected token", zap.Error(err))
				unauthorized(ctx, "invalid or expired token")
				return
			}

			ctx.Request.Header.Set(httpcontext.HeaderUserID, session.UserID)
			ctx.Request.Header.Set(httpcontext.HeaderSessionID, session.ID)
			next(ctx)
		}
	}
}

// extractToken reads the Authorization header, falling back to the
// access_token query argument for EventSource clients that cannot set headers.
func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return string(ctx.QueryArgs().Peek("access_token"))
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	writeError(ctx, string(domain.ErrCodeUnauthorized), message)
}

func writeError(ctx *fasthttp.RequestCtx, code, message string) {
	ctx.Response.Header.SetContentType("application/json")
	body, _ := json.Marshal(transport.NewError(code, message, nil))
	ctx.SetBody(body)
}
