// Package media owns the local cache of downloaded videos and thumbnails.
//
// Layout maps ids to files under the staging directory. Fetcher downloads media with
// yt-dlp, optionally verifies it with ffprobe, and fetches thumbnails over HTTP,
// writing each file under its final name only once it is complete.
package media
