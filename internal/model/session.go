package model

import (
	"time"
)

type Session struct {
	ID              string     `db:"id" json:"id"`
	UserName        string     `db:"user_name" json:"userName"`
	StartedAt       time.Time  `db:"started_at" json:"startedAt"`
	EndedAt         *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	CurrentPhase    Phase      `db:"current_phase" json:"currentPhase"`
	Outcome         *Outcome   `db:"outcome" json:"outcome,omitempty"`
	UserNeeds       NeedsMap   `db:"user_needs" json:"userNeeds"`
	TechniquesUsed  StringList `db:"techniques_used" json:"techniquesUsed"`
	ClosingAttempts int        `db:"closing_attempts" json:"closingAttempts"`
	VehicleInterest *string    `db:"vehicle_interest" json:"vehicleInterest,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// Sealed reports whether the session has reached a terminal state and must
// no longer be mutated.
func (s *Session) Sealed() bool {
	return s.EndedAt != nil || s.Outcome != nil || s.CurrentPhase.Terminal()
}

// Duration returns the session length. For active sessions it measures up
// to now.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

type CreateSessionParams struct {
	ID              string
	UserName        string
	VehicleInterest *string
}
