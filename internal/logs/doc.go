// Package logs reads the run log written by the logging package.
//
// Last returns the trailing lines of the file; Follow streams lines appended after a
// known offset and survives truncation by restarting from the top.
package logs
