package task

import (
	"sort"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/pkg/daytime"
)

// Project returns the canonical view of a raw task set: sorted ascending by
// start time (stable) with each task flagged when it starts before its
// immediate predecessor in that order ends. Only the predecessor is compared,
// so a task nested inside an earlier one does not flag the task after it.
func Project(raw []domain.Task) []domain.ProjectedTask {
	sorted := make([]domain.Task, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	out := make([]domain.ProjectedTask, len(sorted))
	for i, t := range sorted {
		t.Category = t.Category.OrDefault()
		out[i] = domain.ProjectedTask{Task: t}
		if i > 0 && t.StartTime < sorted[i-1].EndTime {
			out[i].IsOverlapping = true
		}
	}
	return out
}

// Aggregate sums task durations in total and per category. Tasks whose times
// do not parse, or whose end is not after their start, contribute nothing.
func Aggregate(tasks []domain.ProjectedTask) domain.Stats {
	var stats domain.Stats
	for _, t := range tasks {
		mins, err := daytime.Minutes(t.StartTime, t.EndTime)
		if err != nil || mins <= 0 {
			continue
		}
		stats.TotalMinutes += mins
		switch t.Category.OrDefault() {
		case domain.CategoryWork:
			stats.WorkMinutes += mins
		case domain.CategoryHealth:
			stats.HealthMinutes += mins
		case domain.CategoryLeisure:
			stats.LeisureMinutes += mins
		}
	}

	stats.Total = daytime.Format(stats.TotalMinutes)
	stats.Work = daytime.Format(stats.WorkMinutes)
	stats.Health = daytime.Format(stats.HealthMinutes)
	stats.Leisure = daytime.Format(stats.LeisureMinutes)
	return stats
}
