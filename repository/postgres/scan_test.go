package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/dayflow/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanTaskDefaultsCategory(t *testing.T) {
	created := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	task, err := scanTask(fakeRow{values: []any{"t1", "alice", "09:00", "10:00", "write", "", true, created}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if task.ID != "t1" || task.OwnerID != "alice" || task.Category != domain.CategoryWork || !task.IsCompleted || !task.CreatedAt.Equal(created) {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestScanTaskNoRows(t *testing.T) {
	if _, err := scanTask(fakeRow{err: pgx.ErrNoRows}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	boom := errors.New("boom")
	if _, err := scanTask(fakeRow{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected scan error to pass through, got %v", err)
	}
}
