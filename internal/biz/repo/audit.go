package repo

import (
	"context"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// AuditRepo persists what the policies observed
type AuditRepo interface {
	// LogDeletedMessage records the content of a revoked message
	LogDeletedMessage(ctx context.Context, rec domain.MessageRecord, deleter string) error

	// LogEditedMessage records the before and after of an edit
	LogEditedMessage(ctx context.Context, rec domain.MessageRecord, newContent string) error

	// UpdateUserTrust stores the latest trust score of a sender
	UpdateUserTrust(ctx context.Context, score domain.TrustScore) error

	// IsUserBlocked reports whether a sender was ever blocked
	IsUserBlocked(ctx context.Context, sender string) (bool, error)
}

// ChatResponder produces conversational replies for the chatbot relay
type ChatResponder interface {
	Respond(ctx context.Context, userID, text string) (string, error)
}
