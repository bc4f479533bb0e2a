// Package ffprobe decodes the JSON report of ffprobe for downloaded media.
//
// Inspect runs the binary and returns a Result; CheckPlayable rejects files that a
// re-upload would be refused for, such as downloads without a video stream or with no
// measurable duration.
package ffprobe
