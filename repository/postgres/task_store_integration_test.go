//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dayflow/domain"
)

// Run with: DAYFLOW_TEST_DATABASE_URL=postgres://... go test -tags integration ./repository/postgres

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DAYFLOW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DAYFLOW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../assets/migrations/000001_create_tasks.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func newOwner(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	owner := uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tasks WHERE owner_id = $1`, owner)
	})
	return owner
}

type snapshot struct {
	tasks []domain.Task
	err   error
}

func waitSnapshot(t *testing.T, ch <-chan snapshot) snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return snapshot{}
}

func expectQuiet(t *testing.T, ch <-chan snapshot, what string) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot after %s: %+v", what, s)
	case <-time.After(300 * time.Millisecond):
	}
}

func task(owner, id, start string) domain.Task {
	return domain.Task{
		ID:          id,
		OwnerID:     owner,
		StartTime:   start,
		EndTime:     "23:00",
		Description: id,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestLoadSortedAndScoped(t *testing.T) {
	pool := newTestPool(t)
	store := NewTaskStore(pool, nil)
	ctx := context.Background()
	alice, bob := newOwner(t, pool), newOwner(t, pool)

	for _, tk := range []domain.Task{task(alice, uuid.NewString(), "10:00"), task(alice, uuid.NewString(), "08:00"), task(bob, uuid.NewString(), "07:00")} {
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := store.Load(ctx, alice)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].StartTime != "08:00" || got[1].StartTime != "10:00" {
		t.Fatalf("unexpected tasks %+v", got)
	}
	if got[0].Category != domain.CategoryWork {
		t.Fatalf("category = %q, want work", got[0].Category)
	}
}

func TestSubscribeFiltersOwnersAndIgnoresNoOps(t *testing.T) {
	pool := newTestPool(t)
	store := NewTaskStore(pool, nil)
	ctx := context.Background()
	alice, bob := newOwner(t, pool), newOwner(t, pool)

	ch := make(chan snapshot, 16)
	cancel, err := store.Subscribe(ctx, alice, func(tasks []domain.Task, err error) {
		ch <- snapshot{tasks: tasks, err: err}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if first := waitSnapshot(t, ch); first.err != nil || len(first.tasks) != 0 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	if err := store.Create(ctx, task(bob, uuid.NewString(), "09:00")); err != nil {
		t.Fatalf("create for other owner: %v", err)
	}
	expectQuiet(t, ch, "another owner's write")

	done := true
	if err := store.Update(ctx, alice, "missing", domain.TaskPatch{IsCompleted: &done}); err != nil {
		t.Fatalf("update unknown: %v", err)
	}
	if err := store.Delete(ctx, alice, "missing"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	expectQuiet(t, ch, "unknown-id writes")

	id := uuid.NewString()
	if err := store.Create(ctx, task(alice, id, "09:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s := waitSnapshot(t, ch); len(s.tasks) != 1 || s.tasks[0].ID != id {
		t.Fatalf("expected snapshot with new task, got %+v", s)
	}

	if err := store.Update(ctx, alice, id, domain.TaskPatch{IsCompleted: &done}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s := waitSnapshot(t, ch); len(s.tasks) != 1 || !s.tasks[0].IsCompleted || s.tasks[0].Description != id {
		t.Fatalf("expected merged task, got %+v", s)
	}
}

func TestCancelReleasesConnection(t *testing.T) {
	pool := newTestPool(t)
	store := NewTaskStore(pool, nil)
	ctx := context.Background()
	owner := newOwner(t, pool)

	ch := make(chan snapshot, 16)
	cancel, err := store.Subscribe(ctx, owner, func(tasks []domain.Task, err error) {
		ch <- snapshot{tasks: tasks, err: err}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSnapshot(t, ch)
	if acquired := pool.Stat().AcquiredConns(); acquired != 1 {
		t.Fatalf("acquired conns = %d, want 1 while listening", acquired)
	}

	cancel()
	cancel()

	if acquired := pool.Stat().AcquiredConns(); acquired != 0 {
		t.Fatalf("acquired conns = %d after cancel, want 0", acquired)
	}
	if err := store.Create(ctx, task(owner, uuid.NewString(), "09:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	expectQuiet(t, ch, "unsubscribe")
}
