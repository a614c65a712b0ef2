package domain

// PresenceKind is a simulated activity indicator
type PresenceKind string

const (
	PresenceComposing PresenceKind = "composing"
	PresenceRecording PresenceKind = "recording"
)

// PresenceState is what the transport is asked to show
type PresenceState string

const (
	StateComposing PresenceState = "composing"
	StateRecording PresenceState = "recording"
	StatePaused    PresenceState = "paused"
)

// Raised returns the state shown while the indicator is active
func (k PresenceKind) Raised() PresenceState {
	if k == PresenceRecording {
		return StateRecording
	}
	return StateComposing
}
