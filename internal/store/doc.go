// Package store provides SQLite-backed storage for bspgen.
//
// Two tables live in one database file:
//   - af_entries: vendor pin tables, imported from chip database archives so
//     lookups do not have to decode the archive on every run
//   - generation_runs: an append-only ledger of generate invocations
//
// # Ordering
//
// Runs are ordered by seq INTEGER, never by timestamps, so two histories
// built from the same requests list identically. Pin table rows are returned
// sorted by pin, then signal.
//
// # Configuration
//
// Open sets journal_mode=WAL, synchronous=NORMAL, busy_timeout=5000 and
// foreign_keys=ON, and fails if SQLite does not report them back. The
// schema is versioned through user_version: schema.sql is version 0 and
// each migration adds indexes the run queries use.
//
// # Queries
//
// FindRuns compiles a RunFilter into parameterized SQL. Filter values are
// always bound, never spliced into the statement.
//
// Run ids come from an IDGenerator; the default produces UUIDv7 strings.
package store
