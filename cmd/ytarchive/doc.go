// Command ytarchive archives a YouTube channel onto a set of destination accounts.
//
// "ytarchive run" recovers interrupted uploads and then works through pending videos
// oldest first: download with yt-dlp, resumable upload through the first account with
// quota to spare, then local cleanup. "ytarchive sync" refreshes the catalog, and
// "ytarchive status" and "ytarchive quota list" report progress and per-account
// usage, and "ytarchive logs -f" follows the run log. Runs take an exclusive lock in
// the state directory.
package main
