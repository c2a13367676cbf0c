package transport

import (
	"strings"

	"github.com/fastygo/dayflow/domain"
)

func unknownCategory() error {
	names := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		names[i] = string(c)
	}
	return domain.NewError(domain.ErrCodeInvalid, "category must be one of "+strings.Join(names, ", "))
}

type LoginRequest struct {
	Email string `json:"email"`
}

type TaskCreateRequest struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsCompleted bool   `json:"is_completed"`
}

// Draft validates the request. Start, end and description must be non-empty
// and the category, when given, must be known.
func (r TaskCreateRequest) Draft() (domain.TaskDraft, error) {
	draft := domain.TaskDraft{
		StartTime:   strings.TrimSpace(r.StartTime),
		EndTime:     strings.TrimSpace(r.EndTime),
		Description: strings.TrimSpace(r.Description),
		Category:    domain.Category(strings.TrimSpace(r.Category)),
		IsCompleted: r.IsCompleted,
	}
	switch {
	case draft.StartTime == "":
		return draft, domain.NewError(domain.ErrCodeInvalid, "start_time is required")
	case draft.EndTime == "":
		return draft, domain.NewError(domain.ErrCodeInvalid, "end_time is required")
	case draft.Description == "":
		return draft, domain.NewError(domain.ErrCodeInvalid, "description is required")
	}
	if draft.Category != "" && !draft.Category.Valid() {
		return draft, unknownCategory()
	}
	return draft, nil
}

type TaskPatchRequest struct {
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IsCompleted *bool   `json:"is_completed"`
}

// Patch validates the request. Present text fields may not be blank.
func (r TaskPatchRequest) Patch() (domain.TaskPatch, error) {
	var patch domain.TaskPatch
	var err error
	if patch.StartTime, err = nonBlank("start_time", r.StartTime); err != nil {
		return patch, err
	}
	if patch.EndTime, err = nonBlank("end_time", r.EndTime); err != nil {
		return patch, err
	}
	if patch.Description, err = nonBlank("description", r.Description); err != nil {
		return patch, err
	}
	if r.Category != nil {
		c := domain.Category(strings.TrimSpace(*r.Category))
		if !c.Valid() {
			return patch, unknownCategory()
		}
		patch.Category = &c
	}
	patch.IsCompleted = r.IsCompleted
	return patch, nil
}

func nonBlank(field string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, field+" must not be empty")
	}
	return &trimmed, nil
}
