// Package notifications delivers archive events to ntfy.
//
// NewService returns an ntfy publisher when a topic is configured and a no-op
// otherwise. Each event kind can be switched off in the notifications config section;
// callers treat delivery as fire-and-forget and only log failures.
package notifications
