package transport

import (
	"encoding/json"

	"github.com/fastygo/dayflow/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// DayResponse is the projected day of one owner. Error is set when the
// store could not be read; Tasks is then empty. Phase is only set on stream
// snapshots.
type DayResponse struct {
	Phase string                 `json:"phase,omitempty"`
	Tasks []domain.ProjectedTask `json:"tasks"`
	Stats domain.Stats           `json:"stats"`
	Error string                 `json:"error,omitempty"`
}

func NewDayResponse(tasks []domain.ProjectedTask, stats domain.Stats, err error) DayResponse {
	if tasks == nil {
		tasks = []domain.ProjectedTask{}
	}
	resp := DayResponse{Tasks: tasks, Stats: stats}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
