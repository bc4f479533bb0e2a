// Package preflight provides readiness checks for the binaries, files and services
// ytarchive depends on.
//
// These checks run in two contexts:
//   - The run command calls CheckSystemDeps before a pass that downloads, so a
//     missing yt-dlp fails fast instead of failing every video.
//   - The CLI "ytarchive preflight" and "ytarchive status" commands render RunAll
//     and Accounts for the operator.
//
// No check calls a billed API method.
package preflight
