package monitor

import "time"

// Status is the last observed health of every registered dependency.
type Status struct {
	Backend    string          `json:"backend"`
	Components map[string]bool `json:"components"`
	LastCheck  time.Time       `json:"last_check"`
}

// Healthy reports whether every component answered its last probe.
func (s Status) Healthy() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, ok := range s.Components {
		if !ok {
			return false
		}
	}
	return true
}
