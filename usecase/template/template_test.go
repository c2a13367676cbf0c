package template

import (
	"context"
	"errors"
	"testing"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository/memory"
	taskUC "github.com/fastygo/dayflow/usecase/task"
)

func TestSaveAndApply(t *testing.T) {
	tasks := taskUC.New(memory.NewTaskStore(), nil)
	uc := New(memory.NewTemplateStore(), tasks, nil)
	ctx := context.Background()

	for _, d := range []domain.TaskDraft{
		{StartTime: "12:00", EndTime: "13:00", Description: "lunch", Category: domain.CategoryLeisure},
		{StartTime: "07:00", EndTime: "07:45", Description: "run", Category: domain.CategoryHealth},
	} {
		if _, err := tasks.Add(ctx, "alice", d); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	saved, err := uc.Save(ctx, "alice")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 || saved[0].Description != "run" || saved[1].Description != "lunch" {
		t.Fatalf("expected template in projection order, got %+v", saved)
	}

	view, err := uc.Apply(ctx, "bob")
	if !errors.Is(err, domain.ErrTemplateEmpty) {
		t.Fatalf("expected empty template for bob, got %v (%+v)", err, view)
	}

	view, err = uc.Apply(ctx, "alice")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(view.Tasks) != 4 {
		t.Fatalf("expected template to add 2 tasks, got %d total", len(view.Tasks))
	}
	ids := map[string]bool{}
	for _, task := range view.Tasks {
		if ids[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		ids[task.ID] = true
	}
	if view.Stats.Health != "1h 30m" {
		t.Fatalf("expected doubled health time, got %+v", view.Stats)
	}
}

func TestTemplateRequiresOwner(t *testing.T) {
	uc := New(memory.NewTemplateStore(), taskUC.New(memory.NewTaskStore(), nil), nil)
	if _, err := uc.Save(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := uc.Get(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGetReturnsEmptySlice(t *testing.T) {
	uc := New(memory.NewTemplateStore(), taskUC.New(memory.NewTaskStore(), nil), nil)
	entries, err := uc.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entries == nil {
		t.Fatal("expected non-nil empty slice")
	}
}
