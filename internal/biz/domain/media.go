package domain

import "time"

// EphemeralMedia is a captured view-once payload persisted on disk
type EphemeralMedia struct {
	ID         string    `json:"id"`
	Kind       MediaKind `json:"kind"`
	FilePath   string    `json:"file_path"`
	Sender     string    `json:"sender"`
	Chat       string    `json:"chat"`
	Caption    string    `json:"caption,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Age returns how long ago the media was captured
func (m *EphemeralMedia) Age(now time.Time) time.Duration {
	return now.Sub(m.CapturedAt)
}
