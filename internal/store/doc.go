// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Every mutating operation of the task lifecycle is expressed as a single
// conditional statement or runs inside a transaction obtained from a
// Transactor, so callers never check state and mutate it in two round-trips.
package store
