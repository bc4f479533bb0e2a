// Package workflow orchestrates archive runs.
//
// An Orchestrator sweeps orphaned staging files, optionally syncs the catalog, then runs a recovery pass that
// finishes work an earlier run left behind, then a main pass that downloads pending
// videos oldest first and, when uploads are enabled, pushes each one through a
// quota-checked uploader. Every video is processed to completion before the next one
// starts, and per-video failures are counted rather than aborting the run.
package workflow
