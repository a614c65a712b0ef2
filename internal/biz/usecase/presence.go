package usecase

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// PresenceConfig contains presence debounce durations
type PresenceConfig struct {
	TypingMin time.Duration
	TypingMax time.Duration
	Recording time.Duration
}

// DefaultPresenceConfig returns default presence configuration
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		TypingMin: 7 * time.Second,
		TypingMax: 9 * time.Second,
		Recording: 8 * time.Second,
	}
}

// PresenceEmitter publishes an indicator change for a chat
type PresenceEmitter func(chatID string, state domain.PresenceState)

type presenceKey struct {
	chat string
	kind domain.PresenceKind
}

type presenceTimer struct {
	gen   uint64
	timer domain.Timer
}

// PresenceDebouncer keeps at most one live indicator timer per
// (chat, kind). Triggering an active indicator re-arms its timer
// without raising it again; expiry lowers it.
type PresenceDebouncer struct {
	mu     sync.Mutex
	config PresenceConfig
	clock  domain.Clock
	emit   PresenceEmitter
	timers map[presenceKey]*presenceTimer
	gen    uint64

	// Jitter returns a random duration in [0, n). Replaceable in tests.
	Jitter func(n time.Duration) time.Duration
}

// NewPresenceDebouncer creates a new presence debouncer
func NewPresenceDebouncer(config PresenceConfig, clock domain.Clock, emit PresenceEmitter) *PresenceDebouncer {
	return &PresenceDebouncer{
		config: config,
		clock:  clock,
		emit:   emit,
		timers: make(map[presenceKey]*presenceTimer),
		Jitter: func(n time.Duration) time.Duration {
			if n <= 0 {
				return 0
			}
			return rand.N(n)
		},
	}
}

// SetEmitter replaces the emitter. It must be called before the first Trigger.
func (d *PresenceDebouncer) SetEmitter(emit PresenceEmitter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emit = emit
}

// Trigger raises the indicator if idle, otherwise re-arms its timer.
// It reports whether the indicator was raised by this call.
func (d *PresenceDebouncer) Trigger(chatID string, kind domain.PresenceKind) bool {
	key := presenceKey{chat: chatID, kind: kind}

	d.mu.Lock()
	d.gen++
	gen := d.gen
	existing, active := d.timers[key]
	if active {
		existing.timer.Stop()
	}
	d.timers[key] = &presenceTimer{
		gen:   gen,
		timer: d.clock.AfterFunc(d.duration(kind), func() { d.expire(key, gen) }),
	}
	emit := d.emit
	d.mu.Unlock()

	if active {
		return false
	}
	if emit != nil {
		emit(chatID, kind.Raised())
	}
	return true
}

func (d *PresenceDebouncer) duration(kind domain.PresenceKind) time.Duration {
	if kind == domain.PresenceRecording {
		return d.config.Recording
	}
	return d.config.TypingMin + d.Jitter(d.config.TypingMax-d.config.TypingMin)
}

func (d *PresenceDebouncer) expire(key presenceKey, gen uint64) {
	d.mu.Lock()
	current, ok := d.timers[key]
	if !ok || current.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	emit := d.emit
	d.mu.Unlock()

	if emit != nil {
		emit(key.chat, domain.StatePaused)
	}
}

// Active reports whether the indicator is currently raised
func (d *PresenceDebouncer) Active(chatID string, kind domain.PresenceKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[presenceKey{chat: chatID, kind: kind}]
	return ok
}

// Len returns the number of live timers
func (d *PresenceDebouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending timer without lowering the indicators
func (d *PresenceDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.timer.Stop()
		delete(d.timers, key)
	}
}
