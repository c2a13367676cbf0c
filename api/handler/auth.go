package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	authUC "github.com/fastygo/dayflow/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc       *authUC.UseCase
	onLogout []func(sessionID string)
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// OnLogout registers fn to run after a session has been ended, before the
// logout response is written.
func (h *AuthHandler) OnLogout(fn func(sessionID string)) {
	if fn != nil {
		h.onLogout = append(h.onLogout, fn)
	}
}

// @Summary Start a session
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	creds, err := h.uc.Login(stdCtx, req.Email)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, creds)
}

// @Summary End the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	if h.ownerID(ctx) == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sessionID := httpcontext.SessionID(ctx)
	if err := h.uc.Logout(stdCtx, sessionID); err != nil {
		h.log(stdCtx).Warn("logout failed", zap.Error(err))
		h.respondError(ctx, err)
		return
	}
	if sessionID != "" {
		for _, fn := range h.onLogout {
			fn(sessionID)
		}
	}
	h.respondNoContent(ctx)
}
