package repository

import (
	"testing"

	"github.com/fastygo/dayflow/domain"
)

func TestSortByStartIsStable(t *testing.T) {
	tasks := []domain.Task{
		{ID: "c", StartTime: "10:00"},
		{ID: "a", StartTime: "09:00"},
		{ID: "b", StartTime: "10:00"},
	}
	SortByStart(tasks)
	got := []string{tasks[0].ID, tasks[1].ID, tasks[2].ID}
	want := []string{"a", "c", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBroadcasterDropsStaleVersions(t *testing.T) {
	b := NewBroadcaster()
	var versions []int
	deliver, cancel := b.Add("owner-1", func(tasks []domain.Task, err error) {
		versions = append(versions, len(tasks))
	})
	defer cancel()

	b.Publish("owner-1", 2, make([]domain.Task, 2))
	deliver(1, make([]domain.Task, 1))
	b.Publish("owner-1", 3, make([]domain.Task, 3))

	if len(versions) != 2 || versions[0] != 2 || versions[1] != 3 {
		t.Fatalf("delivered %v, want [2 3]", versions)
	}
}

func TestBroadcasterCancelIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	_, cancel := b.Add("owner-1", func([]domain.Task, error) { calls++ })

	b.Publish("owner-1", 1, nil)
	cancel()
	cancel()
	b.Publish("owner-1", 2, nil)

	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
	if n := b.Count("owner-1"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestBroadcasterIsolatesOwners(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	_, cancel := b.Add("owner-x", func([]domain.Task, error) { calls++ })
	defer cancel()

	b.Publish("owner-y", 1, []domain.Task{{ID: "t1"}})
	if calls != 0 {
		t.Fatalf("owner-x received owner-y snapshot")
	}
}
