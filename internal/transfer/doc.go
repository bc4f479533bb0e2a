// Package transfer uploads a single payload over a resumable, chunked session.
//
// Upload reads the payload in aligned chunks, reports progress after each
// acknowledged chunk, and on a transient failure (network I/O or an HTTP 500, 502,
// 503 or 504) sleeps a full-jitter exponential backoff before asking the server how
// much it committed and resuming from there. The retry budget is shared by the whole
// upload; once exceeded the upload fails with Exhausted set. Every other failure is
// fatal and returned without retry.
package transfer
