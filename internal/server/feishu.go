package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/infra/feishu"
	"github.com/DevRickLin/chatguard/internal/logger"
)

// FeishuClient is the inbound side of the Feishu client
type FeishuClient interface {
	SetHandlers(h feishu.Handlers)
	Start(ctx context.Context) error
	Stop()
	BotOpenID() string
}

// EventSink accepts translated events, normally the dispatcher
type EventSink interface {
	Submit(ev domain.ChatEvent) bool
}

// recallers names who withdrew a message, by Feishu recall type
var recallers = map[string]string{
	"group_owner":        "group owner",
	"group_manager":      "group admin",
	"enterprise_manager": "enterprise admin",
}

// FeishuServer turns Feishu events into chat events
type FeishuServer struct {
	client    FeishuClient
	sink      EventSink
	clock     domain.Clock
	dedupeTTL time.Duration
	log       *zap.Logger

	// Feishu redelivers events it thinks were not ACKed in time
	seenMu sync.Mutex
	seen   map[string]time.Time
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(client FeishuClient, sink EventSink, clock domain.Clock, dedupeTTL time.Duration, log *zap.Logger) *FeishuServer {
	if log == nil {
		log = zap.NewNop()
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 5 * time.Minute
	}
	return &FeishuServer{
		client:    client,
		sink:      sink,
		clock:     clock,
		dedupeTTL: dedupeTTL,
		log:       log.Named("server"),
		seen:      make(map[string]time.Time),
	}
}

// Start installs the handlers and blocks on the Feishu connection
func (s *FeishuServer) Start(ctx context.Context) error {
	s.client.SetHandlers(feishu.Handlers{
		OnMessage: s.handleMessage,
		OnRecall:  s.handleRecall,
		OnMembers: s.handleMembers,
	})
	return s.client.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.client.Stop()
}

func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if s.isDuplicate("msg:" + msg.MsgID) {
		s.log.Debug("Duplicate message ignored", logger.Message(msg.MsgID))
		return
	}

	ev := s.translateMessage(msg)
	s.submit(ev)
}

func (s *FeishuServer) translateMessage(msg *feishu.Message) *domain.MessageReceived {
	chatType := domain.ChatTypeP2P
	if msg.ChatType == "group" {
		chatType = domain.ChatTypeGroup
	}

	ts := s.clock.Now()
	if msg.CreateTime > 0 {
		ts = time.UnixMilli(msg.CreateTime)
	}

	self := s.client.BotOpenID()
	return &domain.MessageReceived{
		ID:        msg.MsgID,
		Chat:      msg.ChatID,
		ChatType:  chatType,
		Sender:    msg.SenderID,
		FromSelf:  self != "" && msg.SenderID == self,
		Content:   domain.DescribeContent(msg.MsgType, msg.Text, msg.Caption, msg.FileName),
		MsgType:   msg.MsgType,
		Mentions:  msg.Mentions,
		Timestamp: ts,
	}
}

func (s *FeishuServer) handleRecall(r *feishu.Recall) {
	if s.isDuplicate("recall:" + r.MsgID) {
		return
	}
	s.submit(&domain.MessageDeleted{
		ID:      r.MsgID,
		Chat:    r.ChatID,
		Deleter: recallers[r.RecallType],
	})
}

func (s *FeishuServer) handleMembers(c *feishu.MemberChange) {
	action := domain.ActionRemove
	if c.Added {
		action = domain.ActionAdd
	}
	s.submit(&domain.ParticipantUpdate{
		Chat:         c.ChatID,
		Action:       action,
		Participants: c.UserIDs,
	})
}

func (s *FeishuServer) submit(ev domain.ChatEvent) {
	if !s.sink.Submit(ev) {
		s.log.Warn("Event dropped", zap.String("kind", string(ev.Kind())), logger.Chat(ev.ChatID()))
	}
}

// isDuplicate marks key as seen and reports whether it was seen already.
// Expired records are cleaned on every call.
func (s *FeishuServer) isDuplicate(key string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-s.dedupeTTL)
	for id, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, id)
		}
	}

	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = now
	return false
}
