package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	taskUC "github.com/fastygo/dayflow/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List the projected day
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view := h.uc.List(stdCtx, owner)
	h.respondSuccess(ctx, http.StatusOK, transport.NewDayResponse(view.Tasks, view.Stats, view.Err))
}

// @Summary Daily statistics
// @Tags tasks
// @Router /api/v1/stats [get]
func (h *TaskHandler) GetStats(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.Stats(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	var req transport.TaskCreateRequest
	if !h.decode(ctx, &req) {
		return
	}
	draft, err := req.Draft()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Add(stdCtx, owner, draft)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Debug("task created", zap.String("task_id", created.ID))
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task fields
// @Tags tasks
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskPatchRequest
	if !h.decode(ctx, &req) {
		return
	}
	patch, err := req.Patch()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Update(stdCtx, owner, id, patch); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondNoContent(ctx)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Remove(stdCtx, owner, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondNoContent(ctx)
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "missing task id"))
		return "", false
	}
	return id, true
}
