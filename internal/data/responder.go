package data

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DevRickLin/chatguard/internal/biz/repo"
)

const responderPrompt = "You are a friendly chat assistant. Respond in the user's language. Keep your response short (under 100 words)."

var emphasisPattern = regexp.MustCompile(`\*\*?(.*?)\*\*?`)

// Completer runs one chat completion
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

type exchange struct {
	user      string
	assistant string
}

// chatResponder implements repo.ChatResponder with a short per-user memory
type chatResponder struct {
	completer  Completer
	maxHistory int

	mu      sync.Mutex
	history map[string][]exchange
}

// NewChatResponder creates a responder remembering maxHistory exchanges per user
func NewChatResponder(completer Completer, maxHistory int) repo.ChatResponder {
	if completer == nil {
		return nil
	}
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &chatResponder{
		completer:  completer,
		maxHistory: maxHistory,
		history:    make(map[string][]exchange),
	}
}

// Respond answers text in the context of userID's previous exchanges
func (r *chatResponder) Respond(ctx context.Context, userID, text string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: responderPrompt},
	}
	for _, ex := range r.recent(userID) {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.user},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.assistant},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	reply, err := r.completer.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	reply = strings.TrimSpace(emphasisPattern.ReplaceAllString(reply, "$1"))
	if reply == "" {
		return "", fmt.Errorf("respond: empty reply")
	}

	r.remember(userID, exchange{user: text, assistant: reply})
	return reply, nil
}

func (r *chatResponder) recent(userID string) []exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[userID]
	out := make([]exchange, len(h))
	copy(out, h)
	return out
}

func (r *chatResponder) remember(userID string, ex exchange) {
	if r.maxHistory == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := append(r.history[userID], ex)
	if len(h) > r.maxHistory {
		h = h[len(h)-r.maxHistory:]
	}
	r.history[userID] = h
}
