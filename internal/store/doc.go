// Package store persists video records and quota accounts in SQLite or MySQL.
//
// Every pipeline transition and quota reservation is a single conditional UPDATE so
// that state stays consistent across crashes and concurrent orchestrator runs. A
// transition whose precondition no longer holds reports ErrInvalidTransition rather
// than guessing; a reservation that would pass the daily cap reports ErrQuotaExceeded
// without mutating the account. Re-ingesting a record refreshes its descriptive
// fields but never its classification or pipeline flags.
package store
