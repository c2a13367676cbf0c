package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
	"github.com/fastygo/dayflow/repository/memory"
)

// manualStore hands subscription callbacks to the test so snapshot delivery
// can be driven explicitly, including from stale subscriptions.
type manualStore struct {
	*memory.TaskStore

	mu        sync.Mutex
	callbacks map[string]repository.SnapshotFunc
	cancelled map[string]int
	fail      error
}

func newManualStore() *manualStore {
	return &manualStore{
		TaskStore: memory.NewTaskStore(),
		callbacks: make(map[string]repository.SnapshotFunc),
		cancelled: make(map[string]int),
	}
}

func (s *manualStore) Subscribe(ctx context.Context, ownerID string, fn repository.SnapshotFunc) (repository.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.callbacks[ownerID] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled[ownerID]++
	}, nil
}

func (s *manualStore) push(ownerID string, tasks []domain.Task) {
	s.mu.Lock()
	fn := s.callbacks[ownerID]
	s.mu.Unlock()
	fn(tasks, nil)
}

func TestBoardLocalLifecycle(t *testing.T) {
	store := memory.NewTaskStore()
	board := NewBoard(New(store, nil), nil)
	ctx := context.Background()

	if got := board.State(); got.Phase != PhaseIdle {
		t.Fatalf("expected idle board, got %s", got.Phase)
	}
	if _, err := board.Add(ctx, domain.TaskDraft{StartTime: "09:00", EndTime: "10:00", Description: "x"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected idle add to fail, got %v", err)
	}

	var phases []Phase
	remove := board.OnChange(func(s State) { phases = append(phases, s.Phase) })
	defer remove()

	board.SetOwner(ctx, "alice")
	if got := board.State(); got.Phase != PhaseReady || got.OwnerID != "alice" {
		t.Fatalf("expected local store to be ready immediately, got %+v", got)
	}
	if len(phases) != 2 || phases[0] != PhaseLoading || phases[1] != PhaseReady {
		t.Fatalf("unexpected phase sequence %v", phases)
	}

	if _, err := board.Add(ctx, domain.TaskDraft{StartTime: "09:00", EndTime: "10:00", Description: "a"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := board.Add(ctx, domain.TaskDraft{StartTime: "09:30", EndTime: "10:30", Description: "b"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	state := board.State()
	if len(state.Tasks) != 2 || !state.Tasks[1].IsOverlapping {
		t.Fatalf("expected projected overlap in board state, got %+v", state.Tasks)
	}
	if state.Stats.Total != "2h" {
		t.Fatalf("expected stats to follow the projection, got %+v", state.Stats)
	}

	board.Close()
	if got := board.State(); got.Phase != PhaseIdle || len(got.Tasks) != 0 {
		t.Fatalf("expected idle after close, got %+v", got)
	}
	if n := store.Subscribers("alice"); n != 0 {
		t.Fatalf("subscription leaked after close: %d", n)
	}
	if err := board.Remove(ctx, state.Tasks[0].ID); err != nil {
		t.Fatalf("remove while idle: %v", err)
	}
	if n := len(New(store, nil).List(ctx, "alice").Tasks); n != 2 {
		t.Fatalf("idle remove must be a no-op, store has %d tasks", n)
	}
}

func TestBoardRemoteLoadingUntilFirstSnapshot(t *testing.T) {
	store := newManualStore()
	board := NewBoard(New(store, nil), nil)

	board.SetOwner(context.Background(), "alice")
	if !board.State().Loading() {
		t.Fatalf("expected loading before first snapshot, got %s", board.State().Phase)
	}

	store.push("alice", []domain.Task{tk("b", "10:00", "11:00"), tk("a", "09:00", "10:30")})
	state := board.State()
	if state.Phase != PhaseReady || len(state.Tasks) != 2 || state.Tasks[0].ID != "a" || !state.Tasks[1].IsOverlapping {
		t.Fatalf("unexpected ready state %+v", state)
	}

	// a later snapshot replaces the projection wholesale
	store.push("alice", []domain.Task{tk("c", "12:00", "13:00")})
	if state := board.State(); len(state.Tasks) != 1 || state.Tasks[0].ID != "c" {
		t.Fatalf("expected last snapshot to win, got %+v", state.Tasks)
	}
}

func TestBoardOwnerSwitchDropsStaleSnapshots(t *testing.T) {
	store := newManualStore()
	board := NewBoard(New(store, nil), nil)
	ctx := context.Background()

	board.SetOwner(ctx, "alice")
	store.push("alice", []domain.Task{tk("a1", "09:00", "10:00")})

	board.SetOwner(ctx, "bob")
	if store.cancelled["alice"] != 1 {
		t.Fatalf("expected alice subscription to be cancelled once, got %d", store.cancelled["alice"])
	}
	store.push("bob", []domain.Task{tk("b1", "11:00", "12:00")})

	// a late callback from alice's torn-down subscription must not win
	store.push("alice", []domain.Task{tk("a2", "08:00", "09:00")})

	state := board.State()
	if state.OwnerID != "bob" || len(state.Tasks) != 1 || state.Tasks[0].ID != "b1" {
		t.Fatalf("stale snapshot leaked into new owner view: %+v", state)
	}
}

func TestBoardSubscribeFailureIsReadyWithError(t *testing.T) {
	store := newManualStore()
	store.fail = errors.New("network down")
	board := NewBoard(New(store, nil), nil)

	board.SetOwner(context.Background(), "alice")
	state := board.State()
	if state.Phase != PhaseReady {
		t.Fatalf("expected ready phase after failure, got %s", state.Phase)
	}
	if !domain.IsDomainError(state.Err, domain.ErrCodeStoreUnavailable) {
		t.Fatalf("expected store unavailable error, got %v", state.Err)
	}
	if state.Tasks == nil || len(state.Tasks) != 0 {
		t.Fatalf("expected empty list, got %#v", state.Tasks)
	}
}

func TestBoardSetSameOwnerKeepsSubscription(t *testing.T) {
	store := memory.NewTaskStore()
	board := NewBoard(New(store, nil), nil)
	ctx := context.Background()

	board.SetOwner(ctx, "alice")
	board.SetOwner(ctx, "alice")
	if n := store.Subscribers("alice"); n != 1 {
		t.Fatalf("expected a single subscription, got %d", n)
	}
	board.Close()
}
