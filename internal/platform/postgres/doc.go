// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package.
// It handles query execution, data mapping between domain entities and
// database records, and the schema migrations embedded in migrations/.
//
// Lifecycle transitions are single conditional statements (claim, release,
// invite expiry) or run under a row lock inside a transaction (completion),
// never as a read followed by a separate write.
package postgres
