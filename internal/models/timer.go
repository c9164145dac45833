package models

import "time"

// TimerStatus enumerates the lifecycle states of a time-tracking record.
type TimerStatus string

const (
	TimerIdle    TimerStatus = "idle"
	TimerRunning TimerStatus = "running"
	TimerStopped TimerStatus = "stopped"
)

// Timer is a time-tracking record scoped to an organization. The alerting
// sweep only ever reads running timers; transitions are driven by the API.
type Timer struct {
	BaseModel

	OrganizationID string       `gorm:"index;not null" json:"organization_id"`
	Organization   Organization `gorm:"foreignKey:OrganizationID" json:"-"`

	Description string      `json:"description"`
	Status      TimerStatus `gorm:"index;default:idle" json:"status"`
	StartedAt   *time.Time  `gorm:"index" json:"started_at,omitempty"`
	StoppedAt   *time.Time  `json:"stopped_at,omitempty"`
}

// Elapsed reports how long the timer has been running as of now. Zero when
// the timer was never started.
func (t Timer) Elapsed(now time.Time) time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := now
	if t.Status == TimerStopped && t.StoppedAt != nil {
		end = *t.StoppedAt
	}
	if end.Before(*t.StartedAt) {
		return 0
	}
	return end.Sub(*t.StartedAt)
}
