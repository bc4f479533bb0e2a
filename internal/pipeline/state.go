package pipeline

import "ytarchive/internal/store"

// State is a video's position in the archive lifecycle, derived from its flags.
type State string

const (
	StatePending    State = "pending"
	StateDownloaded State = "downloaded"
	StatePushed     State = "pushed"
)

// StateOf derives the state of rec. A pushed record is Pushed whether or not its local
// files have been released yet.
func StateOf(rec store.VideoRecord) State {
	switch {
	case rec.Pushed:
		return StatePushed
	case rec.Downloaded:
		return StateDownloaded
	default:
		return StatePending
	}
}
