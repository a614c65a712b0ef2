package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/repo"
	"github.com/DevRickLin/chatguard/internal/conf"
	"github.com/DevRickLin/chatguard/internal/logger"
	"github.com/DevRickLin/chatguard/internal/metrics"
)

const (
	deletedPreviewLen = 200
	editedPreviewLen  = 150
	timeLayout        = "2006-01-02 15:04:05"
	unknownUser       = "Unknown"
)

// Outcomes of restricting a sender, rendered into owner alerts
const (
	outcomeBlocked     = "blocked"
	outcomeRemoved     = "removed from group"
	outcomeUnavailable = "block unavailable on this transport, sender not blocked"
)

// EngineConfig contains engine settings
type EngineConfig struct {
	// NotifyTarget receives owner alerts; falls back to the owner identity
	NotifyTarget       string
	ActionTimeout      time.Duration
	ChatbotTimeout     time.Duration
	ChatbotAutoDisable time.Duration
	Alerts             *conf.AlertsConfig
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ActionTimeout:      20 * time.Second,
		ChatbotTimeout:     15 * time.Second,
		ChatbotAutoDisable: time.Hour,
		Alerts:             conf.DefaultAlertsConfig(),
	}
}

// Engine routes inbound chat events to the enabled policies.
// It is the only caller of the transport's side-effect primitives.
type Engine struct {
	config    EngineConfig
	uc        *biz.Usecases
	transport repo.Transport
	settings  repo.SettingsStore
	audit     repo.AuditRepo
	responder repo.ChatResponder
	clock     domain.Clock
	ids       domain.IDGenerator
	log       *zap.Logger
	metrics   *metrics.Metrics

	statusReactions  []string
	messageReactions []string

	// Pick returns a random index in [0, n). Replaceable in tests.
	Pick func(n int) int

	chatbotMu    sync.Mutex
	chatbotTimer domain.Timer
	chatbotGen   uint64
}

// NewEngine creates a new engine. responder may be nil, which disables the
// chatbot relay.
func NewEngine(
	config EngineConfig,
	uc *biz.Usecases,
	transport repo.Transport,
	settings repo.SettingsStore,
	audit repo.AuditRepo,
	responder repo.ChatResponder,
	clock domain.Clock,
	ids domain.IDGenerator,
	log *zap.Logger,
	m *metrics.Metrics,
) *Engine {
	if config.Alerts == nil {
		config.Alerts = conf.DefaultAlertsConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	if ids == nil {
		ids = domain.UUIDGenerator{}
	}

	e := &Engine{
		config:           config,
		uc:               uc,
		transport:        transport,
		settings:         settings,
		audit:            audit,
		responder:        responder,
		clock:            clock,
		ids:              ids,
		log:              log.Named("engine"),
		metrics:          m,
		statusReactions:  domain.FilterReactions(domain.StatusReactions),
		messageReactions: domain.FilterReactions(domain.MessageReactions),
		Pick:             rand.IntN,
	}
	uc.Presence.SetEmitter(e.emitPresence)
	return e
}

// Usecases returns the stateful components the engine drives
func (e *Engine) Usecases() *biz.Usecases {
	return e.uc
}

// ProcessInboundEvent runs every enabled policy interested in ev.
// Failures are logged; nothing is returned to the transport.
func (e *Engine) ProcessInboundEvent(ctx context.Context, ev domain.ChatEvent) {
	if ev == nil {
		return
	}
	log := e.log.With(
		zap.String("dispatch_id", e.ids.New()),
		zap.String("kind", string(ev.Kind())),
		logger.Chat(ev.ChatID()),
	)
	e.metrics.EventsTotal.WithLabelValues(string(ev.Kind())).Inc()

	switch ev := ev.(type) {
	case *domain.MessageReceived:
		e.onMessage(ctx, log, ev)
	case *domain.MessageDeleted:
		e.onDelete(ctx, log, ev)
	case *domain.MessageEdited:
		e.onEdit(ctx, log, ev)
	case *domain.CallReceived:
		e.onCall(ctx, log, ev)
	case *domain.ParticipantUpdate:
		e.onParticipants(ctx, log, ev)
	}
}

func (e *Engine) enabled(f domain.Feature) bool {
	return e.uc.Features.Enabled(f)
}

// run executes one policy, recovering panics so later policies still run
func (e *Engine) run(ctx context.Context, log *zap.Logger, name string, policy func(context.Context, *zap.Logger) error) {
	e.metrics.PolicyRunsTotal.WithLabelValues(name).Inc()
	log = log.With(logger.Policy(name))

	defer func() {
		if r := recover(); r != nil {
			e.metrics.PolicyErrorsTotal.WithLabelValues(name).Inc()
			log.Error("Policy panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := policy(ctx, log); err != nil {
		e.metrics.PolicyErrorsTotal.WithLabelValues(name).Inc()
		if errors.Is(err, domain.ErrUnsupported) {
			log.Debug("Policy skipped", zap.Error(err))
			return
		}
		log.Warn("Policy failed", zap.Error(err))
	}
}

// act performs one transport action bounded by the action timeout
func (e *Engine) act(ctx context.Context, action string, fn func(context.Context) error) error {
	if e.config.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ActionTimeout)
		defer cancel()
	}
	err := fn(ctx)
	e.metrics.ActionsTotal.WithLabelValues(action, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func (e *Engine) sendText(ctx context.Context, chatID, text string) error {
	return e.act(ctx, "send_text", func(ctx context.Context) error {
		return e.transport.SendText(ctx, chatID, text)
	})
}

// notify sends an alert to the notify target. Without a target the alert is dropped.
func (e *Engine) notify(ctx context.Context, log *zap.Logger, text string) error {
	target := e.notifyTarget(ctx, log)
	if target == "" {
		log.Debug("No notify target, alert dropped")
		return nil
	}
	return e.sendText(ctx, target, text)
}

func (e *Engine) notifyTarget(ctx context.Context, log *zap.Logger) string {
	if e.config.NotifyTarget != "" {
		return e.config.NotifyTarget
	}
	return e.owner(ctx, log)
}

func (e *Engine) owner(ctx context.Context, log *zap.Logger) string {
	owner, err := e.settings.GetOwnerIdentity(ctx)
	if err != nil {
		log.Error("Failed to read owner identity", zap.Error(err))
		return ""
	}
	return owner
}

func (e *Engine) isOwner(ctx context.Context, log *zap.Logger, sender string) bool {
	if sender == "" {
		return false
	}
	if owner := e.owner(ctx, log); owner != "" && owner == sender {
		return true
	}
	return e.config.NotifyTarget != "" && e.config.NotifyTarget == sender
}

func (e *Engine) now() string {
	return e.clock.Now().Format(timeLayout)
}

func (e *Engine) emitPresence(chatID string, state domain.PresenceState) {
	err := e.act(context.Background(), "set_presence", func(ctx context.Context) error {
		return e.transport.SetPresence(ctx, chatID, state)
	})
	if err != nil && !errors.Is(err, domain.ErrUnsupported) {
		e.log.Warn("Failed to set presence", logger.Chat(chatID), zap.String("state", string(state)), zap.Error(err))
	}
}

// ==================== MESSAGE RECEIVED ====================

func (e *Engine) onMessage(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) {
	log = log.With(logger.Message(msg.ID), logger.Sender(msg.Sender))

	e.populateCaches(msg)

	if msg.IsStatus() {
		e.onStatus(ctx, log, msg)
		return
	}

	if e.enabled(domain.FeatureAutoRead) && !msg.FromSelf {
		e.run(ctx, log, "autoread", func(ctx context.Context, _ *zap.Logger) error {
			return e.act(ctx, "mark_read", func(ctx context.Context) error {
				return e.transport.MarkRead(ctx, msg.Chat, msg.ID)
			})
		})
	}

	if msg.FromSelf {
		return
	}

	if e.enabled(domain.FeatureAutoReactMsg) {
		e.run(ctx, log, "autoreactmsg", func(ctx context.Context, _ *zap.Logger) error {
			return e.react(ctx, msg.Chat, msg.ID, e.messageReactions)
		})
	}
	if e.enabled(domain.FeatureAutoTyping) {
		e.uc.Presence.Trigger(msg.Chat, domain.PresenceComposing)
	}
	if e.enabled(domain.FeatureAutoRecording) {
		e.uc.Presence.Trigger(msg.Chat, domain.PresenceRecording)
	}
	if e.enabled(domain.FeatureAntiSpam) {
		e.run(ctx, log, "antispam", func(ctx context.Context, log *zap.Logger) error {
			return e.antiSpam(ctx, log, msg)
		})
	}
	if e.enabled(domain.FeatureAntiBug) {
		e.run(ctx, log, "antibug", func(ctx context.Context, log *zap.Logger) error {
			return e.antiBug(ctx, log, msg)
		})
	}
	if e.enabled(domain.FeatureAntiLink) {
		e.run(ctx, log, "antilink", func(ctx context.Context, log *zap.Logger) error {
			return e.antiLink(ctx, log, msg)
		})
	}
	if e.enabled(domain.FeatureViewOnce) {
		e.run(ctx, log, "viewonce", func(ctx context.Context, log *zap.Logger) error {
			return e.captureViewOnce(ctx, log, msg)
		})
	}
	if e.enabled(domain.FeatureChatbot) {
		e.run(ctx, log, "chatbot", func(ctx context.Context, log *zap.Logger) error {
			return e.relayChatbot(ctx, log, msg)
		})
	}
}

func (e *Engine) populateCaches(msg *domain.MessageReceived) {
	rec := domain.RecordFrom(msg, e.clock.Now())
	if msg.IsStatus() {
		if e.uc.StatusCache.Put(rec) {
			e.metrics.CacheEvictions.WithLabelValues("status").Inc()
		}
		return
	}
	if e.uc.DeleteCache.Put(rec) {
		e.metrics.CacheEvictions.WithLabelValues("delete").Inc()
	}
	if e.uc.EditCache.Put(rec) {
		e.metrics.CacheEvictions.WithLabelValues("edit").Inc()
	}
}

func (e *Engine) onStatus(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) {
	if msg.FromSelf {
		return
	}
	if e.enabled(domain.FeatureAutoView) {
		e.run(ctx, log, "autoview", func(ctx context.Context, _ *zap.Logger) error {
			return e.act(ctx, "mark_read", func(ctx context.Context) error {
				return e.transport.MarkRead(ctx, msg.Chat, msg.ID)
			})
		})
	}
	if e.enabled(domain.FeatureAutoReact) {
		e.run(ctx, log, "autoreact", func(ctx context.Context, _ *zap.Logger) error {
			return e.react(ctx, msg.Chat, msg.ID, e.statusReactions)
		})
	}
}

func (e *Engine) react(ctx context.Context, chatID, msgID string, pool []string) error {
	if len(pool) == 0 {
		return nil
	}
	emoji := pool[e.Pick(len(pool))]
	return e.act(ctx, "send_reaction", func(ctx context.Context) error {
		return e.transport.SendReaction(ctx, chatID, msgID, emoji)
	})
}

func (e *Engine) antiSpam(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) error {
	verdict := e.uc.Spam.Observe(msg.Sender, msg.Content, e.clock.Now())
	if !verdict.IsSpam {
		return nil
	}
	log.Info("Spam detected", zap.Int("count", verdict.Count), zap.Any("reasons", verdict.Reasons))

	if verdict.ShouldWarn {
		if err := e.sendText(ctx, msg.Chat, e.config.Alerts.Chat.SpamWarning); err != nil {
			return err
		}
		e.uc.Spam.MarkWarned(msg.Sender)
		e.metrics.SpamWarningsTotal.Inc()
	}

	if verdict.ShouldBlock {
		outcome, err := e.restrict(ctx, log, msg)
		if err != nil {
			return err
		}
		if outcome != outcomeUnavailable {
			e.metrics.SpamBlocksTotal.Inc()
		}
		log.Info("Restricted spammer", zap.Int("count", verdict.Count), zap.String("outcome", outcome))

		return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.SpamBlocked, map[string]string{
			"user":   msg.Sender,
			"count":  strconv.Itoa(verdict.Count),
			"action": outcome,
		}))
	}
	return nil
}

// restrict blocks the sender. When the transport cannot block, group
// senders are removed from the chat instead; otherwise the outcome reports
// that nothing was enforced.
func (e *Engine) restrict(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) (string, error) {
	err := e.act(ctx, "block_sender", func(ctx context.Context) error {
		return e.transport.BlockSender(ctx, msg.Sender)
	})
	if err == nil {
		return outcomeBlocked, nil
	}
	if !errors.Is(err, domain.ErrUnsupported) {
		return "", err
	}
	log.Debug("Block unsupported", zap.Error(err))
	if !msg.IsGroup() {
		return outcomeUnavailable, nil
	}

	err = e.act(ctx, "remove_participant", func(ctx context.Context) error {
		return e.transport.RemoveParticipant(ctx, msg.Chat, msg.Sender)
	})
	switch {
	case err == nil:
		return outcomeRemoved, nil
	case errors.Is(err, domain.ErrUnsupported):
		return outcomeUnavailable, nil
	default:
		return "", err
	}
}

func (e *Engine) antiBug(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) error {
	if !domain.IsSuspicious(msg.Content) {
		return nil
	}
	score := e.uc.Trust.PenalizeDefault(msg.Sender)
	log.Info("Suspicious message", zap.Int("score", score.Score), zap.Bool("blocked", score.Blocked))

	if err := e.audit.UpdateUserTrust(ctx, score); err != nil {
		log.Error("Failed to store trust score", zap.Error(err))
	}

	blocked := score.Blocked
	if !blocked {
		stored, err := e.audit.IsUserBlocked(ctx, msg.Sender)
		if err != nil {
			log.Error("Failed to read block state", zap.Error(err))
		}
		blocked = stored
	}
	if !blocked {
		return nil
	}

	outcome, err := e.restrict(ctx, log, msg)
	if err != nil {
		return err
	}
	if outcome != outcomeUnavailable {
		e.metrics.TrustBlocksTotal.Inc()
	}

	return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.SuspiciousBlock, map[string]string{
		"user":   msg.Sender,
		"action": outcome,
	}))
}

func (e *Engine) antiLink(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) error {
	if !msg.IsGroup() || !domain.ContainsLink(msg.Content) {
		return nil
	}
	settings, err := e.settings.GetGroupSettings(ctx, msg.Chat)
	if err != nil {
		return fmt.Errorf("failed to load group settings: %w", err)
	}
	if !settings.AntiLink || e.isOwner(ctx, log, msg.Sender) {
		return nil
	}

	err = e.act(ctx, "remove_participant", func(ctx context.Context) error {
		return e.transport.RemoveParticipant(ctx, msg.Chat, msg.Sender)
	})
	if err != nil {
		return err
	}
	log.Info("Removed link poster")

	return e.sendText(ctx, msg.Chat, conf.Render(e.config.Alerts.Chat.LinkRemoved, map[string]string{
		"user": msg.Sender,
	}))
}

func (e *Engine) captureViewOnce(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) error {
	if msg.ViewOnce == nil {
		return nil
	}

	var media *domain.EphemeralMedia
	err := e.act(ctx, "fetch_media", func(ctx context.Context) error {
		var err error
		media, err = e.uc.Vault.Capture(ctx, msg, e.transport)
		return err
	})
	if err != nil {
		log.Warn("View-once capture failed", zap.Error(err))
		return nil
	}
	if media == nil {
		return nil
	}
	e.metrics.VaultCaptures.Inc()
	e.metrics.VaultEntries.Set(float64(e.uc.Vault.Len()))
	log.Info("Captured view-once media", zap.String("file", media.FilePath))

	if e.isOwner(ctx, log, msg.Sender) {
		return nil
	}
	return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.ViewOnceSaved, map[string]string{
		"kind": string(media.Kind),
		"from": media.Sender,
		"chat": media.Chat,
		"time": media.CapturedAt.Format(timeLayout),
	}))
}

func (e *Engine) relayChatbot(ctx context.Context, log *zap.Logger, msg *domain.MessageReceived) error {
	if e.responder == nil {
		return nil
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" || content == domain.UnsupportedContent {
		return nil
	}

	prefix, err := e.settings.GetCommandPrefix(ctx)
	if err != nil {
		return fmt.Errorf("failed to load command prefix: %w", err)
	}
	if prefix != "" && strings.HasPrefix(content, prefix) {
		return nil
	}
	if msg.IsGroup() && !msg.Mentioned(e.transport.SelfID()) {
		return nil
	}

	e.uc.Presence.Trigger(msg.Chat, domain.PresenceComposing)

	reply := e.respond(ctx, log, msg.Sender, content)
	return e.sendText(ctx, msg.Chat, reply)
}

// respond asks the responder with a hard timeout, falling back to a fixed reply
func (e *Engine) respond(ctx context.Context, log *zap.Logger, sender, content string) string {
	timeout := e.config.ChatbotTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("responder panicked: %v", r)}
			}
		}()
		text, err := e.responder.Respond(rctx, sender, content)
		done <- result{text, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-rctx.Done():
		res.err = rctx.Err()
	}
	e.metrics.ChatbotLatency.Observe(time.Since(start).Seconds())

	if res.err != nil || strings.TrimSpace(res.text) == "" {
		log.Warn("Chatbot responder failed", zap.Error(res.err))
		return e.config.Alerts.Chat.ChatbotFallback
	}
	return res.text
}

// ==================== DELETE / EDIT ====================

func (e *Engine) onDelete(ctx context.Context, log *zap.Logger, ev *domain.MessageDeleted) {
	log = log.With(logger.Message(ev.ID))

	if ev.Chat == domain.StatusBroadcastChat {
		if e.enabled(domain.FeatureAntiDeleteStatus) {
			e.run(ctx, log, "antideletestatus", func(ctx context.Context, log *zap.Logger) error {
				rec, ok := e.uc.StatusCache.Get(ev.ID)
				if !ok {
					return nil
				}
				return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.DeletedStatus, map[string]string{
					"content": rec.Content,
					"time":    e.now(),
				}))
			})
		}
		return
	}

	if e.enabled(domain.FeatureAntiDelete) {
		e.run(ctx, log, "antidelete", func(ctx context.Context, log *zap.Logger) error {
			return e.antiDelete(ctx, log, ev)
		})
	}
}

func (e *Engine) antiDelete(ctx context.Context, log *zap.Logger, ev *domain.MessageDeleted) error {
	rec, ok := e.uc.DeleteCache.Get(ev.ID)
	if !ok {
		log.Debug("Deleted message not cached")
		return nil
	}
	deleter := ev.Deleter
	if deleter == "" {
		deleter = unknownUser
	}

	if err := e.audit.LogDeletedMessage(ctx, rec, deleter); err != nil {
		log.Error("Failed to log deleted message", zap.Error(err))
	}

	err := e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.Deleted, map[string]string{
		"deleter": deleter,
		"content": domain.Truncate(rec.Content, deletedPreviewLen),
		"chat":    rec.Chat,
		"time":    e.now(),
	}))
	if err != nil {
		return err
	}

	settings, err := e.settings.GetGroupSettings(ctx, rec.Chat)
	if err != nil {
		return fmt.Errorf("failed to load group settings: %w", err)
	}
	if !settings.AntiDelete {
		return nil
	}
	return e.sendText(ctx, rec.Chat, conf.Render(e.config.Alerts.Chat.DeleteNotice, map[string]string{
		"deleter": deleter,
	}))
}

func (e *Engine) onEdit(ctx context.Context, log *zap.Logger, ev *domain.MessageEdited) {
	if !e.enabled(domain.FeatureAntiEdit) {
		return
	}
	log = log.With(logger.Message(ev.ID))

	e.run(ctx, log, "antiedit", func(ctx context.Context, log *zap.Logger) error {
		rec, ok := e.uc.EditCache.Get(ev.ID)
		if !ok {
			log.Debug("Edited message not cached")
			return nil
		}
		editor := ev.Editor
		if editor == "" {
			editor = rec.Sender
		}

		if err := e.audit.LogEditedMessage(ctx, rec, ev.NewContent); err != nil {
			log.Error("Failed to log edited message", zap.Error(err))
		}

		return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.Edited, map[string]string{
			"editor":   editor,
			"original": domain.Truncate(rec.Content, editedPreviewLen),
			"edited":   domain.Truncate(ev.NewContent, editedPreviewLen),
			"chat":     rec.Chat,
			"time":     e.now(),
		}))
	})
}

// ==================== CALLS / MEMBERS ====================

func (e *Engine) onCall(ctx context.Context, log *zap.Logger, ev *domain.CallReceived) {
	if !e.enabled(domain.FeatureAntiCall) {
		return
	}
	e.run(ctx, log, "anticall", func(ctx context.Context, log *zap.Logger) error {
		err := e.act(ctx, "reject_call", func(ctx context.Context) error {
			return e.transport.RejectCall(ctx, ev.CallID, ev.From)
		})
		if err != nil {
			return err
		}
		log.Info("Declined call", zap.String("from", ev.From))

		return e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.CallDeclined, map[string]string{
			"from": ev.From,
			"time": e.now(),
		}))
	})
}

func (e *Engine) onParticipants(ctx context.Context, log *zap.Logger, ev *domain.ParticipantUpdate) {
	if !e.enabled(domain.FeatureAntiDemote) {
		return
	}
	if ev.Action != domain.ActionDemote || !ev.Includes(e.transport.SelfID()) {
		return
	}

	e.run(ctx, log, "antidemote", func(ctx context.Context, log *zap.Logger) error {
		err := e.notify(ctx, log, conf.Render(e.config.Alerts.Owner.BotDemoted, map[string]string{
			"group": ev.Chat,
		}))
		if err != nil {
			return err
		}

		settings, err := e.settings.GetGroupSettings(ctx, ev.Chat)
		if err != nil {
			return fmt.Errorf("failed to load group settings: %w", err)
		}
		if !settings.AntiDemote {
			return nil
		}
		log.Info("Leaving group after demotion")
		return e.act(ctx, "leave_group", func(ctx context.Context) error {
			return e.transport.LeaveGroup(ctx, ev.Chat)
		})
	})
}

// ==================== FEATURE CONTROL ====================

// SetFeature enables or disables a feature by name. Enabling the chatbot
// arms its auto-disable timer. It returns false for unknown names.
func (e *Engine) SetFeature(name string, on bool) bool {
	var ok bool
	if on {
		ok = e.uc.Features.Enable(name)
	} else {
		ok = e.uc.Features.Disable(name)
	}
	if ok && domain.Feature(name) == domain.FeatureChatbot {
		e.armChatbotTimer(on)
	}
	return ok
}

// ToggleFeature flips a feature by name and returns its new state
func (e *Engine) ToggleFeature(name string) (bool, bool) {
	on, ok := e.uc.Features.Toggle(name)
	if ok && domain.Feature(name) == domain.FeatureChatbot {
		e.armChatbotTimer(on)
	}
	return on, ok
}

func (e *Engine) armChatbotTimer(on bool) {
	e.chatbotMu.Lock()
	defer e.chatbotMu.Unlock()

	if e.chatbotTimer != nil {
		e.chatbotTimer.Stop()
		e.chatbotTimer = nil
	}
	e.chatbotGen++
	if !on || e.config.ChatbotAutoDisable <= 0 {
		return
	}
	gen := e.chatbotGen
	e.chatbotTimer = e.clock.AfterFunc(e.config.ChatbotAutoDisable, func() { e.autoDisableChatbot(gen) })
}

func (e *Engine) autoDisableChatbot(gen uint64) {
	e.chatbotMu.Lock()
	if gen != e.chatbotGen {
		e.chatbotMu.Unlock()
		return
	}
	e.chatbotTimer = nil
	e.chatbotMu.Unlock()

	e.uc.Features.Disable(string(domain.FeatureChatbot))
	e.log.Info("Chatbot automatically disabled", zap.Duration("after", e.config.ChatbotAutoDisable))

	ctx := context.Background()
	if err := e.notify(ctx, e.log, e.config.Alerts.Owner.ChatbotDisabled); err != nil {
		e.log.Warn("Failed to send chatbot notice", zap.Error(err))
	}
}

// Stop cancels pending timers
func (e *Engine) Stop() {
	e.armChatbotTimer(false)
	e.uc.Presence.Stop()
}
