// Package services defines shared utilities consumed by the pipeline and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, pass names, quota accounts, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     category that logs and notifications can surface.
//
// Use these helpers when wiring new integrations so operational behaviour
// stays uniform across the pipeline.
package services
