// Package youtube adapts the YouTube Data API to the archive pipeline.
//
// Catalog lists a channel's uploads and fetches normalized video records with an API
// key, charging every call to a quota meter. ShortsProbe classifies shorts by the
// redirect behavior of the shorts URL. Authenticator and AuthorizeLoopback manage
// OAuth2 tokens for upload credentials, and Client opens resumable upload sessions
// for videos and thumbnails that the transfer package drives.
package youtube
