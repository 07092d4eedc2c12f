// Package history persists a ledger of encoding jobs in SQLite.
//
// Each finished job, successful or not, becomes one row with its codec,
// outcome kind, sizes, and duration. The CLI lists recent jobs with
// `alphareel history` and prunes old rows with `alphareel cleanup`.
package history
