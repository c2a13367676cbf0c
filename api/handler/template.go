package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	templateUC "github.com/fastygo/dayflow/usecase/template"
)

type TemplateHandler struct {
	baseHandler
	uc *templateUC.UseCase
}

func NewTemplateHandler(uc *templateUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Saved day template
// @Tags template
// @Router /api/v1/template [get]
func (h *TemplateHandler) GetTemplate(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.uc.Get(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}

// @Summary Save the current day as template
// @Tags template
// @Router /api/v1/template [put]
func (h *TemplateHandler) SaveTemplate(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.uc.Save(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("template saved", zap.Int("entries", len(entries)))
	h.respondSuccess(ctx, http.StatusOK, entries)
}

// @Summary Add the template's tasks to the day
// @Tags template
// @Router /api/v1/template/apply [post]
func (h *TemplateHandler) ApplyTemplate(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.uc.Apply(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewDayResponse(view.Tasks, view.Stats, view.Err))
}
