// Package credentials selects the upload account for the next billed call.
//
// The Pool asks the quota ledger for upload accounts with room for the call, walks
// them in name order, reserves the cost on the first that accepts, and returns its
// lazily authenticated HTTP client. When no account has room it blocks, sleeping a
// fixed interval between checks, until capacity returns or the context ends.
package credentials
