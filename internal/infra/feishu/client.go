package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

const openAPIBase = "https://open.feishu.cn/open-apis"

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, image, post, media, file, audio, sticker
	ChatType   string // p2p (private), group
	Text       string // Text content, mention placeholders resolved
	Caption    string // Media caption (post title for rich text)
	FileName   string
	ImageKeys  []string // Image keys for downloading
	FileKey    string   // File or video key for downloading
	SenderID   string   // open_id of the sender
	SenderType string   // user, app
	Mentions   []string // Mentioned open_ids (including bot)
	CreateTime int64    // milliseconds Unix timestamp from Feishu
}

// Recall reports a message withdrawn from a chat
type Recall struct {
	ChatID     string
	MsgID      string
	RecallType string // message_owner, group_owner, group_manager, enterprise_manager
}

// MemberChange reports users added to or removed from a group
type MemberChange struct {
	ChatID     string
	Added      bool
	OperatorID string
	UserIDs    []string
}

// Handlers receives inbound events. Unset callbacks drop the event.
type Handlers struct {
	OnMessage func(msg *Message)
	OnRecall  func(r *Recall)
	OnMembers func(c *MemberChange)
}

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	http      *resty.Client
	handlers  Handlers
	log       *zap.Logger
	cancel    context.CancelFunc
	botOpenID string
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		http:      resty.New().SetBaseURL(openAPIBase).SetTimeout(10 * time.Second),
		log:       log.Named("feishu"),
	}
}

// SetHandlers installs the inbound event callbacks. Call before Start.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// BotOpenID returns the bot's own open_id, empty until Start resolves it
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// AppID returns the application identifier
func (c *Client) AppID() string {
	return c.appID
}

// Start connects to Feishu via WebSocket and blocks until ctx ends
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.fetchBotOpenID(ctx); err != nil {
		c.log.Warn("failed to fetch bot open_id", zap.Error(err))
	}

	// Handlers must return quickly so the SDK can ACK before Feishu retries
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg := ParseMessageEvent(event); msg != nil && c.handlers.OnMessage != nil {
				c.handlers.OnMessage(msg)
			}
			return nil
		}).
		OnP2MessageRecalledV1(func(ctx context.Context, event *larkim.P2MessageRecalledV1) error {
			if r := parseRecallEvent(event); r != nil && c.handlers.OnRecall != nil {
				c.handlers.OnRecall(r)
			}
			return nil
		}).
		OnP2ChatMemberUserAddedV1(func(ctx context.Context, event *larkim.P2ChatMemberUserAddedV1) error {
			if event.Event == nil {
				return nil
			}
			c.emitMembers(&MemberChange{
				ChatID:     deref(event.Event.ChatId),
				Added:      true,
				OperatorID: openID(event.Event.OperatorId),
				UserIDs:    memberIDs(event.Event.Users),
			})
			return nil
		}).
		OnP2ChatMemberUserDeletedV1(func(ctx context.Context, event *larkim.P2ChatMemberUserDeletedV1) error {
			if event.Event == nil {
				return nil
			}
			c.emitMembers(&MemberChange{
				ChatID:     deref(event.Event.ChatId),
				OperatorID: openID(event.Event.OperatorId),
				UserIDs:    memberIDs(event.Event.Users),
			})
			return nil
		}).
		OnP2ChatMemberBotDeletedV1(func(ctx context.Context, event *larkim.P2ChatMemberBotDeletedV1) error {
			if event.Event == nil || c.botOpenID == "" {
				return nil
			}
			c.emitMembers(&MemberChange{
				ChatID:     deref(event.Event.ChatId),
				OperatorID: openID(event.Event.OperatorId),
				UserIDs:    []string{c.botOpenID},
			})
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting websocket connection")
	return c.wsCli.Start(ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) emitMembers(change *MemberChange) {
	if c.handlers.OnMembers == nil || change.ChatID == "" || len(change.UserIDs) == 0 {
		return
	}
	c.handlers.OnMembers(change)
}

// fetchBotOpenID resolves the bot's own open_id
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	var token struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"app_id": c.appID, "app_secret": c.appSecret}).
		SetResult(&token).
		Post("/auth/v3/tenant_access_token/internal")
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	if !resp.IsSuccess() || token.Code != 0 {
		return fmt.Errorf("get token: %s %s", resp.Status(), token.Msg)
	}

	var info struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	resp, err = c.http.R().
		SetContext(ctx).
		SetAuthToken(token.TenantAccessToken).
		SetResult(&info).
		Get("/bot/v3/info")
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	if !resp.IsSuccess() || info.Code != 0 {
		return fmt.Errorf("get bot info: %s %s", resp.Status(), info.Msg)
	}

	c.botOpenID = info.Bot.OpenID
	c.log.Info("resolved bot identity", zap.String("open_id", c.botOpenID), zap.String("name", info.Bot.AppName))
	return nil
}

// ParseMessageEvent converts a receive event into a Message, nil when empty
func ParseMessageEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	raw := event.Event.Message

	msg := &Message{
		ChatID:   deref(raw.ChatId),
		MsgID:    deref(raw.MessageId),
		MsgType:  deref(raw.MessageType),
		ChatType: deref(raw.ChatType),
	}
	if msg.ChatID == "" || msg.MsgID == "" {
		return nil
	}

	if raw.CreateTime != nil {
		if ts, err := strconv.ParseInt(*raw.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if sender := event.Event.Sender; sender != nil {
		msg.SenderID = openID(sender.SenderId)
		msg.SenderType = deref(sender.SenderType)
	}

	// Map mention keys (@_user_1) to names for placeholder replacement
	mentionMap := make(map[string]string)
	for _, mention := range raw.Mentions {
		if mention == nil {
			continue
		}
		if id := openID(mention.Id); id != "" {
			msg.Mentions = append(msg.Mentions, id)
		}
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	content := deref(raw.Content)
	switch msg.MsgType {
	case "text":
		msg.Text = parseTextContent(content, mentionMap)
	case "post":
		msg.Text, msg.ImageKeys = parsePostContent(content, mentionMap)
	case "image":
		msg.ImageKeys = parseImageContent(content)
	case "media", "file", "audio":
		msg.FileKey, msg.FileName, msg.ImageKeys = parseFileContent(content)
	}
	return msg
}

func parseRecallEvent(event *larkim.P2MessageRecalledV1) *Recall {
	if event == nil || event.Event == nil {
		return nil
	}
	r := &Recall{
		ChatID:     deref(event.Event.ChatId),
		MsgID:      deref(event.Event.MessageId),
		RecallType: deref(event.Event.RecallType),
	}
	if r.ChatID == "" || r.MsgID == "" {
		return nil
	}
	return r
}

// parseTextContent extracts text from a text message and resolves mentions
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parseImageContent extracts the image key from an image message
func parseImageContent(content string) []string {
	var parsed struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.ImageKey == "" {
		return nil
	}
	return []string{parsed.ImageKey}
}

// parseFileContent extracts the file key, name and cover image of media or file messages
func parseFileContent(content string) (string, string, []string) {
	var parsed struct {
		FileKey  string `json:"file_key"`
		FileName string `json:"file_name"`
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", "", nil
	}
	var images []string
	if parsed.ImageKey != "" {
		images = []string{parsed.ImageKey}
	}
	return parsed.FileKey, parsed.FileName, images
}

// parsePostContent extracts text and images from a rich text message
func parsePostContent(content string, mentionMap map[string]string) (string, []string) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag      string `json:"tag"`
			Text     string `json:"text,omitempty"`
			Href     string `json:"href,omitempty"`
			ImageKey string `json:"image_key,omitempty"`
			UserID   string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var textParts []string
	var imageKeys []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "a":
				// keep the target so link detection sees it
				if elem.Href != "" {
					lineParts = append(lineParts, elem.Href)
				} else if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if name, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, "@"+name)
				} else {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			case "img":
				if elem.ImageKey != "" {
					imageKeys = append(imageKeys, elem.ImageKey)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return replaceMentions(strings.Join(textParts, "\n"), mentionMap), imageKeys
}

// replaceMentions replaces mention placeholders (@_user_1, ...) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.log.Debug("message sent", zap.String("chat_id", chatID))
	return nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

// DownloadResource fetches the bytes of an image or file attached to a message.
// resourceType is "image" or "file" (videos are files).
func (c *Client) DownloadResource(ctx context.Context, messageID, key, resourceType string) ([]byte, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(key).
		Type(resourceType).
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get resource error: %s", resp.Msg)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.File); err != nil {
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}
	return buf.Bytes(), nil
}

// RemoveMembers removes users (by open_id) from a group
func (c *Client) RemoveMembers(ctx context.Context, chatID string, userIDs ...string) error {
	return c.deleteMembers(ctx, chatID, "open_id", userIDs)
}

// LeaveChat removes the bot itself from a group
func (c *Client) LeaveChat(ctx context.Context, chatID string) error {
	return c.deleteMembers(ctx, chatID, "app_id", []string{c.appID})
}

func (c *Client) deleteMembers(ctx context.Context, chatID, idType string, ids []string) error {
	req := larkim.NewDeleteChatMembersReqBuilder().
		ChatId(chatID).
		MemberIdType(idType).
		Body(larkim.NewDeleteChatMembersReqBodyBuilder().
			IdList(ids).
			Build()).
		Build()

	resp, err := c.larkCli.Im.ChatMembers.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete chat members failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete chat members error: %s", resp.Msg)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func openID(id *larkim.UserId) string {
	if id == nil {
		return ""
	}
	return deref(id.OpenId)
}

func memberIDs(users []*larkim.ChatMemberUser) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		if id := openID(u.UserId); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
