// Package testdb provides utilities specifically for database integration
// testing: locating the test database, migrating it with the embedded goose
// migrations, and isolating tests from one another.
//
// Tests that use it carry the integration build tag and are skipped when no
// test database URL is configured.
package testdb
