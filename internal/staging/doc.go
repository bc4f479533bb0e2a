// Package staging reclaims and measures the local media cache.
//
// The pipeline keeps local files in lockstep with each record's downloaded flag, but a
// crash between writing a file and recording the download, or a record removed from
// the catalog, can strand files. CleanOrphaned sweeps them at the start of a run.
package staging
