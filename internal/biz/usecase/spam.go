package usecase

import (
	"sync"
	"time"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// SpamConfig contains spam window configuration
type SpamConfig struct {
	Window  time.Duration // idle gap after which a sender's window resets
	WarnAt  int
	BlockAt int
	Rules   domain.SpamRules
}

// DefaultSpamConfig returns default spam configuration
func DefaultSpamConfig() SpamConfig {
	return SpamConfig{
		Window:  10 * time.Second,
		WarnAt:  5,
		BlockAt: 10,
		Rules:   domain.DefaultSpamRules,
	}
}

// SpamTracker keeps a sliding message window per sender and classifies
// each observed message.
type SpamTracker struct {
	mu     sync.Mutex
	config SpamConfig
	states map[string]*domain.SpamState
}

// NewSpamTracker creates a new spam tracker
func NewSpamTracker(config SpamConfig) *SpamTracker {
	return &SpamTracker{
		config: config,
		states: make(map[string]*domain.SpamState),
	}
}

// Observe records a message from sender at now and returns the verdict.
// Escalation (warn, block) is only reported for messages classified as spam;
// block re-triggers on every further spam message once the threshold is crossed.
// ShouldWarn repeats until the warning is confirmed with MarkWarned.
func (t *SpamTracker) Observe(sender, text string, now time.Time) domain.SpamVerdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[sender]
	if !ok || now.Sub(state.LastMessageAt) > t.config.Window {
		state = &domain.SpamState{WindowStartedAt: now}
		t.states[sender] = state
	}

	var reasons []domain.SpamReason
	if state.Count > 0 && state.Count+1 > t.config.Rules.FloodCount &&
		now.Sub(state.LastMessageAt) < t.config.Rules.FloodGap {
		reasons = append(reasons, domain.ReasonFlood)
	}
	state.Count++
	state.LastMessageAt = now
	reasons = append(reasons, t.config.Rules.ContentReasons(text)...)

	verdict := domain.SpamVerdict{
		IsSpam:  len(reasons) > 0,
		Count:   state.Count,
		Reasons: reasons,
	}
	if !verdict.IsSpam {
		return verdict
	}

	if state.Count >= t.config.WarnAt && !state.Warned {
		verdict.ShouldWarn = true
	}
	if state.Count >= t.config.BlockAt {
		verdict.ShouldBlock = true
	}
	return verdict
}

// MarkWarned records that sender was warned in the current window
func (t *SpamTracker) MarkWarned(sender string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[sender]; ok {
		s.Warned = true
	}
}

// State returns a copy of the sender's window
func (t *SpamTracker) State(sender string) (domain.SpamState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[sender]
	if !ok {
		return domain.SpamState{}, false
	}
	return *s, true
}

// Prune drops windows idle for longer than the reset gap. A pruned sender
// is indistinguishable from one whose window would reset on the next message.
func (t *SpamTracker) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for sender, s := range t.states {
		if now.Sub(s.LastMessageAt) > t.config.Window {
			delete(t.states, sender)
			n++
		}
	}
	return n
}

// Len returns the number of tracked senders
func (t *SpamTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
