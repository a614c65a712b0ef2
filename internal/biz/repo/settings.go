package repo

import (
	"context"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// SettingsStore is the settings repository interface
// Responsible for bot-level and per-group settings (SQLite)
type SettingsStore interface {
	// GetCommandPrefix returns the prefix that marks a message as a command
	GetCommandPrefix(ctx context.Context) (string, error)

	// GetOwnerIdentity returns the operator account, empty when unset
	GetOwnerIdentity(ctx context.Context) (string, error)

	// SetOwnerIdentity records the operator account
	SetOwnerIdentity(ctx context.Context, owner string) error

	// GetGroupSettings returns the switches for a group, defaults when unknown
	GetGroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error)

	// SaveGroupSettings creates or updates a group's switches
	SaveGroupSettings(ctx context.Context, settings *domain.GroupSettings) error
}
