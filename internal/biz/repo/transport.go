package repo

import (
	"context"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// Transport is the messaging network the engine acts on.
// Primitives a network cannot perform return domain.ErrUnsupported.
type Transport interface {
	// SelfID returns the identifier of the account the engine runs as
	SelfID() string

	// SendText sends a text message to a chat
	SendText(ctx context.Context, chatID, text string) error

	// SendReaction reacts to a message with a single emoji
	SendReaction(ctx context.Context, chatID, msgID, emoji string) error

	// SetPresence shows or clears an activity indicator in a chat
	SetPresence(ctx context.Context, chatID string, state domain.PresenceState) error

	// RemoveParticipant removes a member from a group
	RemoveParticipant(ctx context.Context, chatID, userID string) error

	// BlockSender blocks a user account
	BlockSender(ctx context.Context, userID string) error

	// MarkRead marks a message as read
	MarkRead(ctx context.Context, chatID, msgID string) error

	// RejectCall declines an incoming call
	RejectCall(ctx context.Context, callID, from string) error

	// LeaveGroup makes the engine account leave a group
	LeaveGroup(ctx context.Context, chatID string) error

	MediaFetcher
}

// MediaFetcher downloads the bytes of an attached media payload
type MediaFetcher interface {
	FetchMedia(ctx context.Context, msg *domain.MessageReceived) ([]byte, error)
}
