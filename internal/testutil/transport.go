package testutil

import (
	"context"
	"sync"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// Call is one recorded transport invocation
type Call struct {
	Method string
	Chat   string
	Target string // message id, user id or call id depending on Method
	Text   string // text, emoji or presence state
}

// RecordingTransport records every primitive invoked on it.
// Set Errors[method] to make a method fail.
type RecordingTransport struct {
	mu     sync.Mutex
	Self   string
	Media  []byte
	Errors map[string]error
	calls  []Call
}

// NewRecordingTransport creates a transport acting as self
func NewRecordingTransport(self string) *RecordingTransport {
	return &RecordingTransport{Self: self, Errors: make(map[string]error)}
}

func (t *RecordingTransport) record(c Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)
	return t.Errors[c.Method]
}

// Fail makes every later call to method return err
func (t *RecordingTransport) Fail(method string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Errors[method] = err
}

// Calls returns a copy of the recorded calls
func (t *RecordingTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallsTo returns the recorded calls of one method
func (t *RecordingTransport) CallsTo(method string) []Call {
	var out []Call
	for _, c := range t.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

func (t *RecordingTransport) SelfID() string { return t.Self }

func (t *RecordingTransport) SendText(ctx context.Context, chatID, text string) error {
	return t.record(Call{Method: "SendText", Chat: chatID, Text: text})
}

func (t *RecordingTransport) SendReaction(ctx context.Context, chatID, msgID, emoji string) error {
	return t.record(Call{Method: "SendReaction", Chat: chatID, Target: msgID, Text: emoji})
}

func (t *RecordingTransport) SetPresence(ctx context.Context, chatID string, state domain.PresenceState) error {
	return t.record(Call{Method: "SetPresence", Chat: chatID, Text: string(state)})
}

func (t *RecordingTransport) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	return t.record(Call{Method: "RemoveParticipant", Chat: chatID, Target: userID})
}

func (t *RecordingTransport) BlockSender(ctx context.Context, userID string) error {
	return t.record(Call{Method: "BlockSender", Target: userID})
}

func (t *RecordingTransport) MarkRead(ctx context.Context, chatID, msgID string) error {
	return t.record(Call{Method: "MarkRead", Chat: chatID, Target: msgID})
}

func (t *RecordingTransport) RejectCall(ctx context.Context, callID, from string) error {
	return t.record(Call{Method: "RejectCall", Chat: from, Target: callID})
}

func (t *RecordingTransport) LeaveGroup(ctx context.Context, chatID string) error {
	return t.record(Call{Method: "LeaveGroup", Chat: chatID})
}

func (t *RecordingTransport) FetchMedia(ctx context.Context, msg *domain.MessageReceived) ([]byte, error) {
	if err := t.record(Call{Method: "FetchMedia", Chat: msg.Chat, Target: msg.ID}); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Media, nil
}
