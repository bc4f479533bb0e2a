// Package pipeline tracks each video through Pending, Downloaded and Pushed.
//
// The Machine couples durable conditional transitions in the store with the files in
// the local cache: Download leaves either a Downloaded record with its files or a
// Pending record with none, and Cleanup removes files before clearing the flag so a
// crash never leaves a Downloaded record without media it believes it has.
package pipeline
