package data

import (
	"context"
	"fmt"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/repo"
)

// FeishuAPI is the subset of the Feishu client the transport needs
type FeishuAPI interface {
	BotOpenID() string
	SendText(ctx context.Context, chatID, text string) error
	AddReaction(ctx context.Context, messageID, emojiType string) error
	DownloadResource(ctx context.Context, messageID, key, resourceType string) ([]byte, error)
	RemoveMembers(ctx context.Context, chatID string, userIDs ...string) error
	LeaveChat(ctx context.Context, chatID string) error
}

// feishuEmoji maps unicode reactions onto Feishu emoji_type names
var feishuEmoji = map[string]string{
	"👍":  "THUMBSUP",
	"❤️": "HEART",
	"❤":  "HEART",
	"😂":  "LOL",
	"😮":  "WOW",
	"🙏":  "THANKS",
	"🔥":  "Fire",
	"👏":  "APPLAUSE",
	"💯":  "Hundred",
	"😍":  "LOVE",
	"🎉":  "PARTY",
}

// feishuTransport implements repo.Transport on top of the Feishu bot API.
// Feishu bots cannot block accounts, show typing, mark messages read
// or receive calls; those primitives report domain.ErrUnsupported.
type feishuTransport struct {
	api     FeishuAPI
	limiter ratelimit.Limiter
	log     *zap.Logger
}

// NewFeishuTransport creates a transport that sends at most rate calls per second.
// A non-positive rate disables pacing.
func NewFeishuTransport(api FeishuAPI, rate int, log *zap.Logger) repo.Transport {
	if log == nil {
		log = zap.NewNop()
	}
	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate, ratelimit.WithoutSlack)
	}
	return &feishuTransport{api: api, limiter: limiter, log: log.Named("transport")}
}

func (t *feishuTransport) SelfID() string {
	return t.api.BotOpenID()
}

func (t *feishuTransport) SendText(ctx context.Context, chatID, text string) error {
	t.limiter.Take()
	return t.api.SendText(ctx, chatID, text)
}

func (t *feishuTransport) SendReaction(ctx context.Context, chatID, msgID, emoji string) error {
	if err := domain.ValidateReaction(emoji); err != nil {
		return err
	}
	emojiType, ok := feishuEmoji[emoji]
	if !ok {
		return fmt.Errorf("%w: no feishu emoji for %q", domain.ErrUnsupported, emoji)
	}
	t.limiter.Take()
	return t.api.AddReaction(ctx, msgID, emojiType)
}

func (t *feishuTransport) SetPresence(ctx context.Context, chatID string, state domain.PresenceState) error {
	return domain.ErrUnsupported
}

func (t *feishuTransport) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	t.limiter.Take()
	return t.api.RemoveMembers(ctx, chatID, userID)
}

func (t *feishuTransport) BlockSender(ctx context.Context, userID string) error {
	return domain.ErrUnsupported
}

func (t *feishuTransport) MarkRead(ctx context.Context, chatID, msgID string) error {
	return domain.ErrUnsupported
}

func (t *feishuTransport) RejectCall(ctx context.Context, callID, from string) error {
	return domain.ErrUnsupported
}

func (t *feishuTransport) LeaveGroup(ctx context.Context, chatID string) error {
	t.limiter.Take()
	return t.api.LeaveChat(ctx, chatID)
}

// FetchMedia downloads the single-view payload of msg
func (t *feishuTransport) FetchMedia(ctx context.Context, msg *domain.MessageReceived) ([]byte, error) {
	if msg == nil || msg.ViewOnce == nil || msg.ViewOnce.Key == "" {
		return nil, fmt.Errorf("fetch media: %w", domain.ErrNotFound)
	}
	resourceType := "image"
	if msg.ViewOnce.Kind == domain.MediaVideo {
		resourceType = "file"
	}
	data, err := t.api.DownloadResource(ctx, msg.ID, msg.ViewOnce.Key, resourceType)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	t.log.Debug("media fetched", zap.String("message_id", msg.ID), zap.Int("bytes", len(data)))
	return data, nil
}
