package domain

import "time"

// Category classifies where the time of a task goes.
type Category string

const (
	CategoryWork    Category = "work"
	CategoryHealth  Category = "health"
	CategoryLeisure Category = "leisure"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryWork, CategoryHealth, CategoryLeisure}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// OrDefault returns c, or CategoryWork when c is empty.
func (c Category) OrDefault() Category {
	if c == "" {
		return CategoryWork
	}
	return c
}

// Task is the canonical, persisted record of a time-boxed piece of work.
// StartTime and EndTime are wall-clock "HH:MM" strings.
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectedTask is a Task as consumers observe it, with the derived overlap flag.
// It is never persisted.
type ProjectedTask struct {
	Task
	IsOverlapping bool `json:"is_overlapping"`
}

// TaskPatch carries the mutable subset of a Task. Nil fields are left untouched.
type TaskPatch struct {
	StartTime   *string   `json:"start_time,omitempty"`
	EndTime     *string   `json:"end_time,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	IsCompleted *bool     `json:"is_completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.Description == nil &&
		p.Category == nil && p.IsCompleted == nil
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = p.Category.OrDefault()
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
}

// TaskDraft is the caller-supplied part of a new task.
type TaskDraft struct {
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Description string   `json:"description"`
	Category    Category `json:"category,omitempty"`
	IsCompleted bool     `json:"is_completed,omitempty"`
}

// Stats aggregates positive task durations in minutes.
type Stats struct {
	TotalMinutes   int `json:"total_minutes"`
	WorkMinutes    int `json:"work_minutes"`
	HealthMinutes  int `json:"health_minutes"`
	LeisureMinutes int `json:"leisure_minutes"`

	Total   string `json:"total"`
	Work    string `json:"work"`
	Health  string `json:"health"`
	Leisure string `json:"leisure"`
}
