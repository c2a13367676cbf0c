package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/dayflow/api/transport"
	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/internal/infrastructure/monitor"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	"github.com/fastygo/dayflow/repository/memory"
	authUC "github.com/fastygo/dayflow/usecase/auth"
	taskUC "github.com/fastygo/dayflow/usecase/task"
	templateUC "github.com/fastygo/dayflow/usecase/template"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  interface{}     `json:"error"`
}

type fixture struct {
	store    *memory.TaskStore
	tasks    *TaskHandler
	template *TemplateHandler
	auth     *AuthHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewTaskStore()
	uc := taskUC.New(store, nil)
	adapter := httpcontext.NewAdapter(time.Second)
	return &fixture{
		store:    store,
		tasks:    NewTaskHandler(uc, adapter, nil),
		template: NewTemplateHandler(templateUC.New(memory.NewTemplateStore(), uc, nil), adapter, nil),
		auth:     NewAuthHandler(authUC.New(memory.NewSessionRepository(), "secret", "dayflow", time.Hour, nil), adapter, nil),
	}
}

func request(owner, method, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	if owner != "" {
		ctx.Request.Header.Set(httpcontext.HeaderUserID, owner)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	return ctx
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode response %q: %v", ctx.Response.Body(), err)
	}
	return env
}

func decodeDay(t *testing.T, ctx *fasthttp.RequestCtx) transport.DayResponse {
	t.Helper()
	var day transport.DayResponse
	if err := json.Unmarshal(decodeEnvelope(t, ctx).Data, &day); err != nil {
		t.Fatalf("decode day: %v", err)
	}
	return day
}

func TestCreateAndListTasks(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"start_time":"10:00","end_time":"11:00","description":"review"}`,
		`{"start_time":"09:00","end_time":"10:30","description":"write","category":"work"}`,
	} {
		ctx := request("alice", fasthttp.MethodPost, body)
		f.tasks.CreateTask(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusCreated {
			t.Fatalf("create status = %d body %s", ctx.Response.StatusCode(), ctx.Response.Body())
		}
	}

	ctx := request("alice", fasthttp.MethodGet, "")
	f.tasks.GetTasks(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("list status = %d", ctx.Response.StatusCode())
	}
	day := decodeDay(t, ctx)
	if len(day.Tasks) != 2 || day.Tasks[0].Description != "write" {
		t.Fatalf("unexpected tasks %+v", day.Tasks)
	}
	if day.Tasks[0].IsOverlapping || !day.Tasks[1].IsOverlapping {
		t.Fatalf("unexpected overlap flags %+v", day.Tasks)
	}
	if day.Stats.Total != "2h 30m" || day.Stats.Work != "2h 30m" {
		t.Fatalf("unexpected stats %+v", day.Stats)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"invalid json":     `{`,
		"missing start":    `{"end_time":"10:00","description":"x"}`,
		"blank desc":       `{"start_time":"09:00","end_time":"10:00","description":"  "}`,
		"unknown category": `{"start_time":"09:00","end_time":"10:00","description":"x","category":"sleep"}`,
	}
	for name, body := range cases {
		ctx := request("alice", fasthttp.MethodPost, body)
		f.tasks.CreateTask(ctx)
		if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
			t.Errorf("%s: status = %d", name, ctx.Response.StatusCode())
		}
		if env := decodeEnvelope(t, ctx); env.Code != string(domain.ErrCodeInvalid) {
			t.Errorf("%s: code = %q", name, env.Code)
		}
	}
	if tasks, _ := f.store.Load(context.Background(), "alice"); len(tasks) != 0 {
		t.Fatalf("invalid requests created tasks: %+v", tasks)
	}
}

func TestRequestsWithoutOwner(t *testing.T) {
	f := newFixture(t)
	ctx := request("", fasthttp.MethodGet, "")
	f.tasks.GetTasks(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", ctx.Response.StatusCode())
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := request("alice", fasthttp.MethodPost, `{"start_time":"09:00","end_time":"10:00","description":"write"}`)
	f.tasks.CreateTask(ctx)
	var created domain.ProjectedTask
	if err := json.Unmarshal(decodeEnvelope(t, ctx).Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	patch := request("alice", fasthttp.MethodPatch, `{"is_completed":true,"category":"health"}`)
	patch.SetUserValue("id", created.ID)
	f.tasks.UpdateTask(patch)
	if patch.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("patch status = %d body %s", patch.Response.StatusCode(), patch.Response.Body())
	}

	tasks, _ := f.store.Load(context.Background(), "alice")
	if len(tasks) != 1 || !tasks[0].IsCompleted || tasks[0].Category != domain.CategoryHealth || tasks[0].Description != "write" {
		t.Fatalf("unexpected task after patch %+v", tasks)
	}

	unknown := request("alice", fasthttp.MethodDelete, "")
	unknown.SetUserValue("id", "missing")
	f.tasks.DeleteTask(unknown)
	if unknown.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("delete unknown status = %d", unknown.Response.StatusCode())
	}

	del := request("alice", fasthttp.MethodDelete, "")
	del.SetUserValue("id", created.ID)
	f.tasks.DeleteTask(del)
	if tasks, _ := f.store.Load(context.Background(), "alice"); len(tasks) != 0 {
		t.Fatalf("task not removed: %+v", tasks)
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(errors.New("offline"))

	list := request("alice", fasthttp.MethodGet, "")
	f.tasks.GetTasks(list)
	day := decodeDay(t, list)
	if len(day.Tasks) != 0 || day.Error == "" {
		t.Fatalf("expected empty day with error, got %+v", day)
	}

	create := request("alice", fasthttp.MethodPost, `{"start_time":"09:00","end_time":"10:00","description":"x"}`)
	f.tasks.CreateTask(create)
	if create.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("create status = %d, want 503", create.Response.StatusCode())
	}
}

func TestTemplateSaveAndApply(t *testing.T) {
	f := newFixture(t)

	empty := request("alice", fasthttp.MethodPost, "")
	f.template.ApplyTemplate(empty)
	if empty.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("apply without template status = %d", empty.Response.StatusCode())
	}

	f.tasks.CreateTask(request("alice", fasthttp.MethodPost, `{"start_time":"07:00","end_time":"07:30","description":"run","category":"health"}`))
	save := request("alice", fasthttp.MethodPut, "")
	f.template.SaveTemplate(save)
	if save.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("save status = %d", save.Response.StatusCode())
	}

	apply := request("alice", fasthttp.MethodPost, "")
	f.template.ApplyTemplate(apply)
	day := decodeDay(t, apply)
	if len(day.Tasks) != 2 || !day.Tasks[1].IsOverlapping {
		t.Fatalf("unexpected day after apply %+v", day.Tasks)
	}
	if day.Stats.Health != "1h" {
		t.Fatalf("health = %q", day.Stats.Health)
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)

	bad := request("", fasthttp.MethodPost, `{"email":"nobody"}`)
	f.auth.Login(bad)
	if bad.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("bad login status = %d", bad.Response.StatusCode())
	}

	login := request("", fasthttp.MethodPost, `{"email":"ada@example.com"}`)
	f.auth.Login(login)
	if login.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("login status = %d body %s", login.Response.StatusCode(), login.Response.Body())
	}
	var creds authUC.Credentials
	if err := json.Unmarshal(decodeEnvelope(t, login).Data, &creds); err != nil || creds.Token == "" {
		t.Fatalf("decode credentials: %v %+v", err, creds)
	}

	var ended []string
	f.auth.OnLogout(func(sessionID string) { ended = append(ended, sessionID) })

	logout := request(creds.UserID, fasthttp.MethodPost, "")
	logout.Request.Header.Set(httpcontext.HeaderSessionID, creds.SessionID)
	f.auth.Logout(logout)
	if logout.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("logout status = %d", logout.Response.StatusCode())
	}
	if len(ended) != 1 || ended[0] != creds.SessionID {
		t.Fatalf("logout hooks saw %v, want [%s]", ended, creds.SessionID)
	}
}

type fixedStatus monitor.Status

func (s fixedStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealth(t *testing.T) {
	healthy := NewHealthHandler(fixedStatus{Backend: "local", Components: map[string]bool{"boltdb": true}, LastCheck: time.Now()}, nil, nil)
	ctx := request("", fasthttp.MethodGet, "")
	healthy.Check(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("healthy status = %d", ctx.Response.StatusCode())
	}

	degraded := NewHealthHandler(fixedStatus{Backend: "redis", Components: map[string]bool{"redis": false}, LastCheck: time.Now()}, nil, nil)
	ctx = request("", fasthttp.MethodGet, "")
	degraded.Check(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", ctx.Response.StatusCode())
	}
}

func TestStreamSendsSnapshots(t *testing.T) {
	store := memory.NewTaskStore()
	uc := taskUC.New(store, nil)
	stream := NewStreamHandler(uc, nil, time.Hour, nil, nil)

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: stream.Stream}
	go func() { _ = server.Serve(ln) }()
	defer func() {
		_ = stream.Close(context.Background())
		_ = ln.Close()
	}()

	conn, err := ln.Dial()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("GET /api/v1/tasks/stream HTTP/1.1\r\nHost: test\r\nX-User-ID: alice\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	reader := bufio.NewReader(conn)

	first := readEvent(t, reader)
	if first.name != "snapshot" || len(first.day.Tasks) != 0 {
		t.Fatalf("unexpected first event %+v", first)
	}

	if _, err := uc.Add(context.Background(), "alice", domain.TaskDraft{StartTime: "09:00", EndTime: "10:00", Description: "write"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	second := readEvent(t, reader)
	if second.name != "snapshot" || len(second.day.Tasks) != 1 || second.day.Stats.Total != "1h" {
		t.Fatalf("unexpected second event %+v", second)
	}
}

type sseEvent struct {
	name string
	day  transport.DayResponse
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatalf("timed out waiting for event")
			}
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.day); err != nil {
				t.Fatalf("decode event data %q: %v", line, err)
			}
			return ev
		}
	}
}
