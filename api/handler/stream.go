package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/internal/services/reminder"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	taskUC "github.com/fastygo/dayflow/usecase/task"
)

// ReminderTracker registers a live board for due-task reminders.
type ReminderTracker interface {
	Track(source reminder.Source, notify reminder.NotifyFunc) (untrack func())
}

// StreamHandler serves the owner's day as server-sent events. Every change
// produces a full "snapshot" event; due tasks produce "reminder" events.
type StreamHandler struct {
	baseHandler
	uc        *taskUC.UseCase
	reminders ReminderTracker
	keepAlive time.Duration

	closeOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	sessions map[string]map[*openStream]struct{}
}

// openStream is one live connection. end is closed when its session ends.
type openStream struct {
	board   *taskUC.Board
	end     chan struct{}
	endOnce sync.Once
}

func (s *openStream) stop() {
	s.endOnce.Do(func() {
		s.board.Close()
		close(s.end)
	})
}

// NewStreamHandler builds the handler. reminders may be nil.
func NewStreamHandler(uc *taskUC.UseCase, reminders ReminderTracker, keepAlive time.Duration, adapter *httpcontext.Adapter, logger *zap.Logger) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &StreamHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		reminders:   reminders,
		keepAlive:   keepAlive,
		done:        make(chan struct{}),
		sessions:    make(map[string]map[*openStream]struct{}),
	}
}

// EndSession closes every stream opened with sessionID. Their boards return
// to idle before EndSession returns, so no later change reaches them.
func (h *StreamHandler) EndSession(sessionID string) {
	h.mu.Lock()
	streams := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	for s := range streams {
		s.stop()
	}
	if len(streams) > 0 {
		h.logger.Debug("task streams ended with session", zap.String("session_id", sessionID), zap.Int("streams", len(streams)))
	}
}

// Open returns the number of open streams.
func (h *StreamHandler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, streams := range h.sessions {
		n += len(streams)
	}
	return n
}

func (h *StreamHandler) register(sessionID string, s *openStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*openStream]struct{})
	}
	h.sessions[sessionID][s] = struct{}{}
}

func (h *StreamHandler) unregister(sessionID string, s *openStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions[sessionID], s)
	if len(h.sessions[sessionID]) == 0 {
		delete(h.sessions, sessionID)
	}
}

// Close ends every open stream.
func (h *StreamHandler) Close(ctx context.Context) error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// @Summary Live task stream
// @Tags tasks
// @Router /api/v1/tasks/stream [get]
func (h *StreamHandler) Stream(ctx *fasthttp.RequestCtx) {
	owner := h.ownerID(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.adapter.AttachStream(ctx)
	log := h.log(stdCtx)

	queue := newEventQueue()
	board := taskUC.NewBoard(h.uc, log)
	removeListener := board.OnChange(func(s taskUC.State) {
		if s.Phase == taskUC.PhaseReady {
			day := transport.NewDayResponse(s.Tasks, s.Stats, s.Err)
			day.Phase = string(s.Phase)
			queue.snapshot(day)
		}
	})
	board.SetOwner(stdCtx, owner)

	sessionID := httpcontext.SessionID(ctx)
	stream := &openStream{board: board, end: make(chan struct{})}
	h.register(sessionID, stream)

	untrack := func() {}
	if h.reminders != nil {
		untrack = h.reminders.Track(board, func(_ context.Context, r reminder.Reminder) {
			queue.reminder(r)
		})
	}

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")
	ctx.SetStatusCode(fasthttp.StatusOK)

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unregister(sessionID, stream)
			untrack()
			removeListener()
			stream.stop()
			cancel()
			log.Debug("task stream closed")
		}()
		log.Debug("task stream opened")

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-stream.end:
				return
			case <-queue.ready:
				if stream.ended() {
					return
				}
				for _, ev := range queue.drain() {
					if err := writeEvent(w, ev.name, ev.payload); err != nil {
						return
					}
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}

func (s *openStream) ended() bool {
	select {
	case <-s.end:
		return true
	default:
		return false
	}
}

type streamEvent struct {
	name    string
	payload interface{}
}

// eventQueue keeps only the latest snapshot, since each one replaces the
// previous, and every reminder in arrival order.
type eventQueue struct {
	mu        sync.Mutex
	latest    *transport.DayResponse
	reminders []reminder.Reminder
	ready     chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) snapshot(day transport.DayResponse) {
	q.mu.Lock()
	q.latest = &day
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) reminder(r reminder.Reminder) {
	q.mu.Lock()
	q.reminders = append(q.reminders, r)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []streamEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := make([]streamEvent, 0, len(q.reminders)+1)
	if q.latest != nil {
		events = append(events, streamEvent{name: "snapshot", payload: *q.latest})
		q.latest = nil
	}
	for _, r := range q.reminders {
		events = append(events, streamEvent{name: "reminder", payload: r})
	}
	q.reminders = nil
	return events
}

func writeEvent(w *bufio.Writer, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
