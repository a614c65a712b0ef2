package domain

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time so timers and windows are deterministic in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f on its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call stopped it.
	Stop() bool
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
