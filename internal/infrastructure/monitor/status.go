package monitor

import "time"

// Status is the last observed dependency state. Dependencies that are not configured are
// reported as disabled and never make the service unhealthy.
type Status struct {
	Healthy    bool      `json:"healthy"`
	PostgreSQL Check     `json:"postgresql"`
	Redis      Check     `json:"redis"`
	Buffer     Check     `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

type Check struct {
	Enabled bool `json:"enabled"`
	Online  bool `json:"online"`
}

func (c Check) ok() bool {
	return !c.Enabled || c.Online
}
