// Package quota reserves platform cost units against per-account daily caps.
//
// The Ledger delegates the check-and-increment to a single conditional update in the
// store, so concurrent reservations across processes cannot push an account past its
// cap. Meter binds the ledger to one account for adapters that bill each call.
package quota
