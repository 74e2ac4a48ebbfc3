// Package sqlite persists processing runs, per-event clusters and detector
// geometry in a SQLite database.
//
// The schema is embedded and applied with golang-migrate when the database
// is opened. Writes retry on SQLITE_BUSY with a short exponential backoff.
package sqlite
