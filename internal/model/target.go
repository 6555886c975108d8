package model

import "time"

// Target is a named goal owned by one user. Names are unique per owner.
type Target struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TargetProgress is one entry in a target's progress log.
type TargetProgress struct {
	ID         string     `json:"id"`
	TargetID   string     `json:"target_id"`
	ContentID  *string    `json:"content_id"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes"`
	AchievedAt *time.Time `json:"achieved_at"`
	UserID     string     `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
