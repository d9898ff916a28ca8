package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Task is a unit of work on the quest board.
//
// A task is claimable while AssignedTo is nil. Completion never mutates the
// task itself; it is recorded as a separate Completion fact.
type Task struct {
	ID           int64     `json:"id"`
	Complexity   Rank      `json:"complexity"`
	Description  string    `json:"description"`
	ExpectedTime float64   `json:"expected_time"` // hours
	Tags         []string  `json:"tags"`
	AssignedTo   *int64    `json:"assigned_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTask builds a task with normalized tags. The ID is assigned by the store.
func NewTask(complexity Rank, description string, expectedTime float64, tags []string) (*Task, error) {
	task := &Task{
		Complexity:   complexity,
		Description:  strings.TrimSpace(description),
		ExpectedTime: expectedTime,
		Tags:         NormalizeTags(tags),
		CreatedAt:    time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if !t.Complexity.Valid() {
		return NewValidationError("complexity", "must be one of C, B, A")
	}
	if t.Description == "" {
		return NewValidationError("description", "cannot be empty")
	}
	if math.IsNaN(t.ExpectedTime) || math.IsInf(t.ExpectedTime, 0) || t.ExpectedTime < 0 {
		return NewValidationError("expected_time", "must be a non-negative number of hours")
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return NewValidationError("tags", "cannot contain empty tags")
		}
	}
	return nil
}

// IsAssigned reports whether some user currently owns the task.
func (t *Task) IsAssigned() bool {
	return t.AssignedTo != nil
}

// NormalizeTags gives a tag list set semantics: entries are trimmed, empty
// entries dropped, duplicates removed and the result sorted. It never
// returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// UnionTags returns the normalized union of two tag sets.
func UnionTags(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return NormalizeTags(merged)
}

// TaskState is the assignment and completion state of a single task, as read
// for classifying a failed transition.
type TaskState struct {
	Owner       *int64
	Completed   bool
	CompletedBy *int64
}

// OwnedBy reports whether userID is the current owner.
func (s TaskState) OwnedBy(userID int64) bool {
	return s.Owner != nil && *s.Owner == userID
}
