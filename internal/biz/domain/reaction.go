package domain

import (
	"errors"

	"github.com/forPelevin/gomoji"
)

// ErrInvalidReaction is returned when a reaction is not exactly one emoji
var ErrInvalidReaction = errors.New("reaction must be a single emoji")

// StatusReactions are picked at random when reacting to status updates
var StatusReactions = []string{"❤️", "🔥", "👍", "😍", "💯", "👏", "😂", "🎉"}

// MessageReactions are picked at random when reacting to chat messages
var MessageReactions = []string{"👍", "❤️", "😂", "😮", "🙏", "🔥", "👏", "💯"}

// ValidateReaction checks that reaction contains a single emoji and nothing else
func ValidateReaction(reaction string) error {
	found := gomoji.CollectAll(reaction)
	if len(found) != 1 {
		return ErrInvalidReaction
	}
	if found[0].Character != reaction {
		return ErrInvalidReaction
	}
	return nil
}

// FilterReactions keeps only the valid entries of pool
func FilterReactions(pool []string) []string {
	valid := make([]string, 0, len(pool))
	for _, r := range pool {
		if ValidateReaction(r) == nil {
			valid = append(valid, r)
		}
	}
	return valid
}
