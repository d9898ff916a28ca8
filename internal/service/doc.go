// Package service contains the application use cases that sit in front of
// the task lifecycle engine: the quest board listing, the player profile and
// leaderboard, admin task management, invite-only signup and login.
//
// The lifecycle transitions themselves live in sub-packages:
//
//   - assignment: claim and release
//   - completion: completing a claimed task
//   - calibration: recalculating a user's class
//   - recommendation: asking the external scorer for suggestions
//
// Services receive their stores through constructor injection and never
// depend on a concrete storage implementation. Expected conditions are
// reported with sentinel errors that the API layer maps to status codes.
package service
