package domain

// TemplateEntry is the shape of a task without identity, used to seed a new day.
type TemplateEntry struct {
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Draft converts the entry back into a task draft.
func (e TemplateEntry) Draft() TaskDraft {
	return TaskDraft{
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Description: e.Description,
		Category:    e.Category.OrDefault(),
	}
}
