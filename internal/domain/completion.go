package domain

import "time"

// Completion is the append-only fact that a user finished a task. Its
// existence alone marks the task as finished.
type Completion struct {
	UserID      int64     `json:"user_id"`
	TaskID      int64     `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompletionResult reports the outcome of completing a task.
type CompletionResult struct {
	TaskID          int64    `json:"task_id"`
	UserID          int64    `json:"user_id"`
	CompletionCount int64    `json:"completion_count"`
	Tags            []string `json:"tags"`
	// PreviousClass is set only when calibration changed the user's class.
	PreviousClass *Rank `json:"previous_class,omitempty"`
	Class         Rank  `json:"class"`
}

// ClassChanged reports whether this completion moved the user to a new class.
func (r *CompletionResult) ClassChanged() bool {
	return r.PreviousClass != nil && *r.PreviousClass != r.Class
}

// InviteToken gates signup. A token admits exactly one account.
type InviteToken struct {
	Token     string    `json:"token"`
	IsExpired bool      `json:"is_expired"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerStanding is one row of a leaderboard.
type PlayerStanding struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Class     Rank   `json:"class"`
	Completed int64  `json:"completed"`
}
