package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/usecase"
	"github.com/DevRickLin/chatguard/internal/testutil"
)

const (
	selfID  = "ou_bot"
	ownerID = "ou_owner"
)

// ==================== Mocks ====================

type mockSettings struct {
	mu          sync.Mutex
	prefix      string
	owner       string
	groups      map[string]*domain.GroupSettings
	panicGroups bool
}

func newMockSettings() *mockSettings {
	return &mockSettings{prefix: ".", owner: ownerID, groups: make(map[string]*domain.GroupSettings)}
}

func (m *mockSettings) GetCommandPrefix(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefix, nil
}

func (m *mockSettings) GetOwnerIdentity(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, nil
}

func (m *mockSettings) SetOwnerIdentity(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = owner
	return nil
}

func (m *mockSettings) GetGroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicGroups {
		panic("settings unavailable")
	}
	if gs, ok := m.groups[chatID]; ok {
		out := *gs
		return &out, nil
	}
	return &domain.GroupSettings{Chat: chatID}, nil
}

func (m *mockSettings) SaveGroupSettings(ctx context.Context, settings *domain.GroupSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *settings
	m.groups[settings.Chat] = &out
	return nil
}

type deletedEntry struct {
	rec     domain.MessageRecord
	deleter string
}

type editedEntry struct {
	rec        domain.MessageRecord
	newContent string
}

type mockAudit struct {
	mu      sync.Mutex
	deleted []deletedEntry
	edited  []editedEntry
	trust   []domain.TrustScore
	blocked map[string]bool
}

func newMockAudit() *mockAudit {
	return &mockAudit{blocked: make(map[string]bool)}
}

func (m *mockAudit) LogDeletedMessage(ctx context.Context, rec domain.MessageRecord, deleter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, deletedEntry{rec, deleter})
	return nil
}

func (m *mockAudit) LogEditedMessage(ctx context.Context, rec domain.MessageRecord, newContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, editedEntry{rec, newContent})
	return nil
}

func (m *mockAudit) UpdateUserTrust(ctx context.Context, score domain.TrustScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust = append(m.trust, score)
	if score.Blocked {
		m.blocked[score.Sender] = true
	}
	return nil
}

func (m *mockAudit) IsUserBlocked(ctx context.Context, sender string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocked[sender], nil
}

type mockResponder struct {
	mu    sync.Mutex
	reply string
	err   error
	block bool
	calls []string
}

func (m *mockResponder) Respond(ctx context.Context, userID, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, userID+":"+text)
	reply, err, block := m.reply, m.err, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (m *mockResponder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ==================== Harness ====================

type harness struct {
	engine    *Engine
	uc        *biz.Usecases
	transport *testutil.RecordingTransport
	settings  *mockSettings
	audit     *mockAudit
	responder *mockResponder
	clock     *testutil.FakeClock
	mediaDir  string
}

func newHarness(t *testing.T, features ...domain.Feature) *harness {
	t.Helper()

	clock := testutil.FixedClock()
	mediaDir := t.TempDir()
	uc := biz.NewUsecases(biz.Config{
		CacheCapacity: usecase.DefaultCacheCapacity,
		Spam:          usecase.DefaultSpamConfig(),
		Trust:         usecase.DefaultTrustConfig(),
		Vault:         usecase.DefaultVaultConfig(mediaDir),
		Presence:      usecase.DefaultPresenceConfig(),
	}, clock)
	uc.Presence.Jitter = func(time.Duration) time.Duration { return time.Second }

	h := &harness{
		uc:        uc,
		transport: testutil.NewRecordingTransport(selfID),
		settings:  newMockSettings(),
		audit:     newMockAudit(),
		responder: &mockResponder{reply: "hi there"},
		clock:     clock,
		mediaDir:  mediaDir,
	}
	cfg := DefaultEngineConfig()
	cfg.ChatbotTimeout = 50 * time.Millisecond
	h.engine = NewEngine(cfg, uc, h.transport, h.settings, h.audit, h.responder, clock, testutil.NewStubIDGenerator(), nil, nil)
	h.engine.Pick = func(int) int { return 0 }

	for _, f := range features {
		require.True(t, h.engine.SetFeature(string(f), true))
	}
	t.Cleanup(h.engine.Stop)
	return h
}

func (h *harness) process(ev domain.ChatEvent) {
	h.engine.ProcessInboundEvent(context.Background(), ev)
}

func (h *harness) textsTo(chat string) []string {
	var out []string
	for _, c := range h.transport.CallsTo("SendText") {
		if c.Chat == chat {
			out = append(out, c.Text)
		}
	}
	return out
}

var msgSeq int

func message(chat, sender, content string) *domain.MessageReceived {
	msgSeq++
	chatType := domain.ChatTypeP2P
	if strings.HasPrefix(chat, "oc_g") {
		chatType = domain.ChatTypeGroup
	}
	return &domain.MessageReceived{
		ID:       fmt.Sprintf("om_%d", msgSeq),
		Chat:     chat,
		ChatType: chatType,
		Sender:   sender,
		Content:  content,
		MsgType:  "text",
	}
}

// ==================== End-to-end scenarios ====================

func TestEngine_SpamScenario(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)

	for i := 1; i <= 10; i++ {
		h.process(message("oc_c", "ou_spam", "aaaaaa"))
		h.clock.Advance(200 * time.Millisecond)

		warnings := h.textsTo("oc_c")
		if i < 5 {
			assert.Empty(t, warnings, "no warning before message 5 (message %d)", i)
		} else {
			assert.Len(t, warnings, 1, "exactly one warning from message 5 (message %d)", i)
		}
		if i < 10 {
			assert.Empty(t, h.transport.CallsTo("BlockSender"), "no block before message 10 (message %d)", i)
		}
	}

	assert.Equal(t, []string{"⚠️ *SPAM DETECTED*\nPlease slow down your messages!"}, h.textsTo("oc_c"))

	blocks := h.transport.CallsTo("BlockSender")
	require.Len(t, blocks, 1)
	assert.Equal(t, "ou_spam", blocks[0].Target)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "AUTO-BLOCKED SPAMMER")
	assert.Contains(t, alerts[0], "👤 User: ou_spam")
	assert.Contains(t, alerts[0], "📊 Messages: 10")
}

func TestEngine_ViewOnceScenario(t *testing.T) {
	h := newHarness(t, domain.FeatureViewOnce)
	h.transport.Media = []byte("jpeg-bytes")

	msg := message("oc_c", "ou_s", "[Image]")
	msg.ViewOnce = &domain.ViewOnceMedia{Kind: domain.MediaImage}
	h.process(msg)

	entries := h.uc.Vault.List()
	require.Len(t, entries, 1)
	data, err := os.ReadFile(entries[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "VIEW-ONCE MEDIA SAVED")
	assert.Contains(t, alerts[0], "👤 From: ou_s")

	fromOwner := message("oc_c", ownerID, "[Image]")
	fromOwner.ViewOnce = &domain.ViewOnceMedia{Kind: domain.MediaImage}
	h.process(fromOwner)

	assert.Len(t, h.uc.Vault.List(), 2)
	_, err = os.Stat(h.uc.Vault.List()[0].FilePath)
	assert.NoError(t, err)
	assert.Len(t, h.textsTo(ownerID), 1, "owner's own media is captured silently")
}

func TestEngine_ViewOnceFetchFailureIsSilent(t *testing.T) {
	h := newHarness(t, domain.FeatureViewOnce)
	h.transport.Fail("FetchMedia", errors.New("expired"))

	msg := message("oc_c", "ou_s", "[Video]")
	msg.ViewOnce = &domain.ViewOnceMedia{Kind: domain.MediaVideo}
	h.process(msg)

	assert.Empty(t, h.uc.Vault.List())
	assert.Empty(t, h.transport.CallsTo("SendText"))
}

// ==================== Policies ====================

func TestEngine_CachesPopulatedWithFeaturesOff(t *testing.T) {
	h := newHarness(t)

	msg := message("oc_c", "ou_a", "hello")
	h.process(msg)
	status := message(domain.StatusBroadcastChat, "ou_a", "my status")
	h.process(status)

	_, ok := h.uc.DeleteCache.Get(msg.ID)
	assert.True(t, ok)
	_, ok = h.uc.EditCache.Get(msg.ID)
	assert.True(t, ok)
	_, ok = h.uc.StatusCache.Get(status.ID)
	assert.True(t, ok)
	assert.Empty(t, h.transport.Calls())
}

func TestEngine_AntiDelete(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDelete)
	require.NoError(t, h.settings.SaveGroupSettings(context.Background(), &domain.GroupSettings{Chat: "oc_g1", AntiDelete: true}))

	msg := message("oc_g1", "ou_a", "the original words")
	h.process(msg)
	h.process(&domain.MessageDeleted{ID: msg.ID, Chat: "oc_g1", Deleter: "ou_a"})

	require.Len(t, h.audit.deleted, 1)
	assert.Equal(t, "the original words", h.audit.deleted[0].rec.Content)
	assert.Equal(t, "ou_a", h.audit.deleted[0].deleter)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "🚨 *MESSAGE DELETED* 🚨")
	assert.Contains(t, alerts[0], "👤 *Deleted By:* ou_a")
	assert.Contains(t, alerts[0], "💬 *Content:* the original words")
	assert.Contains(t, alerts[0], "⏰ *Time:* 2024-01-15 10:30:00")

	assert.Equal(t, []string{"⚠️ @ou_a deleted a message!"}, h.textsTo("oc_g1"))
}

func TestEngine_AntiDeleteUnknownDeleterAndTruncation(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDelete)

	msg := message("oc_c", "ou_a", strings.Repeat("x", 250))
	h.process(msg)
	h.process(&domain.MessageDeleted{ID: msg.ID, Chat: "oc_c"})

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Deleted By:* Unknown")
	assert.Contains(t, alerts[0], strings.Repeat("x", 200)+"...")
	assert.NotContains(t, alerts[0], strings.Repeat("x", 201))
	assert.Empty(t, h.textsTo("oc_c"), "no in-chat notice without the group setting")
}

func TestEngine_AntiDeleteUncached(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDelete)

	h.process(&domain.MessageDeleted{ID: "om_never_seen", Chat: "oc_c", Deleter: "ou_a"})

	assert.Empty(t, h.audit.deleted)
	assert.Empty(t, h.transport.Calls())
}

func TestEngine_AntiDeleteWithoutNotifyTarget(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDelete)
	require.NoError(t, h.settings.SetOwnerIdentity(context.Background(), ""))

	msg := message("oc_c", "ou_a", "hello")
	h.process(msg)
	h.process(&domain.MessageDeleted{ID: msg.ID, Chat: "oc_c", Deleter: "ou_a"})

	assert.Len(t, h.audit.deleted, 1, "still audited")
	assert.Empty(t, h.transport.CallsTo("SendText"))
}

func TestEngine_AntiDeleteStatus(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDeleteStatus)

	status := message(domain.StatusBroadcastChat, "ou_a", "gone soon")
	h.process(status)
	h.process(&domain.MessageDeleted{ID: status.ID, Chat: domain.StatusBroadcastChat, Deleter: "ou_a"})

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "🗑️ *DELETED STATUS*")
	assert.Contains(t, alerts[0], "💬 Content: gone soon")
}

func TestEngine_AntiEdit(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiEdit)

	msg := message("oc_c", "ou_a", "before")
	h.process(msg)
	h.process(&domain.MessageEdited{ID: msg.ID, Chat: "oc_c", NewContent: "after"})

	require.Len(t, h.audit.edited, 1)
	assert.Equal(t, "after", h.audit.edited[0].newContent)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "🚨 *MESSAGE EDITED* 🚨")
	assert.Contains(t, alerts[0], "Edited By:* ou_a")
	assert.Contains(t, alerts[0], "Original:* before")
	assert.Contains(t, alerts[0], "Edited:* after")

	// the cached original is never rewritten
	rec, ok := h.uc.EditCache.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "before", rec.Content)
}

func TestEngine_DeleteAndEditCachesAreIndependent(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDelete, domain.FeatureAntiEdit)

	msg := message("oc_c", "ou_a", "shared")
	h.process(msg)
	h.process(&domain.MessageDeleted{ID: msg.ID, Chat: "oc_c"})
	h.process(&domain.MessageEdited{ID: msg.ID, Chat: "oc_c", Editor: "ou_a", NewContent: "changed"})

	assert.Len(t, h.audit.deleted, 1)
	assert.Len(t, h.audit.edited, 1)
	assert.Len(t, h.textsTo(ownerID), 2)
}

func TestEngine_AntiCall(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiCall)

	h.process(&domain.CallReceived{CallID: "call-1", From: "ou_caller"})

	rejects := h.transport.CallsTo("RejectCall")
	require.Len(t, rejects, 1)
	assert.Equal(t, "call-1", rejects[0].Target)
	assert.Equal(t, "ou_caller", rejects[0].Chat)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "📞 *CALL DECLINED*")
	assert.Contains(t, alerts[0], "👤 From: ou_caller")
}

func TestEngine_AntiCallRejectFailureSkipsAlert(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiCall)
	h.transport.Fail("RejectCall", errors.New("network down"))

	h.process(&domain.CallReceived{CallID: "call-1", From: "ou_caller"})

	assert.Empty(t, h.transport.CallsTo("SendText"))
}

func TestEngine_AntiDemote(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiDemote)
	require.NoError(t, h.settings.SaveGroupSettings(context.Background(), &domain.GroupSettings{Chat: "oc_g1", AntiDemote: true}))

	h.process(&domain.ParticipantUpdate{Chat: "oc_g1", Action: domain.ActionDemote, Participants: []string{"ou_x"}})
	assert.Empty(t, h.transport.Calls(), "someone else's demotion is ignored")

	h.process(&domain.ParticipantUpdate{Chat: "oc_g1", Action: domain.ActionDemote, Participants: []string{"ou_x", selfID}})

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "⚠️ *BOT DEMOTED*")
	assert.Contains(t, alerts[0], "🏷️ Group: oc_g1")
	assert.Len(t, h.transport.CallsTo("LeaveGroup"), 1)

	h.process(&domain.ParticipantUpdate{Chat: "oc_g2", Action: domain.ActionDemote, Participants: []string{selfID}})
	assert.Len(t, h.textsTo(ownerID), 2)
	assert.Len(t, h.transport.CallsTo("LeaveGroup"), 1, "stays in groups without the setting")
}

func TestEngine_AntiBugBlocksOnSixthSuspiciousMessage(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiBug)

	for i := 1; i <= 6; i++ {
		h.process(message("oc_c", "ou_bad", "click javascript:alert(1) now"))
		if i < 6 {
			assert.Empty(t, h.transport.CallsTo("BlockSender"), "message %d", i)
		}
		h.clock.Advance(time.Minute)
	}

	require.Len(t, h.transport.CallsTo("BlockSender"), 1)
	require.Len(t, h.audit.trust, 6)
	assert.Equal(t, 10, h.audit.trust[5].Score)
	assert.True(t, h.audit.trust[5].Blocked)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "AUTO-BLOCKED SUSPICIOUS USER")

	h.process(message("oc_c", "ou_fine", "good morning"))
	assert.Len(t, h.audit.trust, 6, "clean messages are not scored")
}

func TestEngine_AntiBugRunsAlongsideAntiSpam(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiBug, domain.FeatureAntiSpam)

	h.process(message("oc_c", "ou_bad", "visit https://bit.ly/abc and http://a.io http://b.io http://c.io"))

	assert.Len(t, h.audit.trust, 1)
	state, ok := h.uc.Spam.State("ou_bad")
	require.True(t, ok)
	assert.Equal(t, 1, state.Count)
}

func TestEngine_AntiLink(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiLink)
	require.NoError(t, h.settings.SaveGroupSettings(context.Background(), &domain.GroupSettings{Chat: "oc_g1", AntiLink: true}))

	h.process(message("oc_g2", "ou_a", "see https://example.com"))
	assert.Empty(t, h.transport.Calls(), "group without the setting")

	h.process(message("oc_g1", ownerID, "see https://example.com"))
	assert.Empty(t, h.transport.Calls(), "owner is exempt")

	h.process(message("oc_g1", "ou_a", "see https://example.com"))
	removals := h.transport.CallsTo("RemoveParticipant")
	require.Len(t, removals, 1)
	assert.Equal(t, "oc_g1", removals[0].Chat)
	assert.Equal(t, "ou_a", removals[0].Target)
	assert.Equal(t, []string{"🔗 @ou_a was removed for sharing a link."}, h.textsTo("oc_g1"))
}

func TestEngine_AutoReadAndReact(t *testing.T) {
	h := newHarness(t, domain.FeatureAutoRead, domain.FeatureAutoReactMsg, domain.FeatureAutoView, domain.FeatureAutoReact)

	msg := message("oc_c", "ou_a", "hello")
	h.process(msg)
	status := message(domain.StatusBroadcastChat, "ou_a", "status")
	h.process(status)
	self := message("oc_c", selfID, "mine")
	self.FromSelf = true
	h.process(self)

	reads := h.transport.CallsTo("MarkRead")
	require.Len(t, reads, 2)
	assert.Equal(t, msg.ID, reads[0].Target)
	assert.Equal(t, status.ID, reads[1].Target)

	reactions := h.transport.CallsTo("SendReaction")
	require.Len(t, reactions, 2)
	assert.Equal(t, msg.ID, reactions[0].Target)
	assert.NoError(t, domain.ValidateReaction(reactions[0].Text))
	assert.Equal(t, status.ID, reactions[1].Target)
}

func TestEngine_Presence(t *testing.T) {
	h := newHarness(t, domain.FeatureAutoTyping, domain.FeatureAutoRecording)

	self := message("oc_c", selfID, "mine")
	self.FromSelf = true
	h.process(self)
	assert.Empty(t, h.transport.Calls(), "own messages raise nothing")

	h.process(message("oc_c", "ou_a", "hello"))
	h.clock.Advance(2 * time.Second)
	h.process(message("oc_c", "ou_a", "again"))

	states := func() []string {
		var out []string
		for _, c := range h.transport.CallsTo("SetPresence") {
			out = append(out, c.Text)
		}
		return out
	}
	assert.Equal(t, []string{"composing", "recording"}, states())

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"composing", "recording", "paused", "paused"}, states())
}

func TestEngine_ChatbotRelay(t *testing.T) {
	h := newHarness(t, domain.FeatureChatbot)

	h.process(message("oc_c", "ou_a", "how are you?"))
	assert.Equal(t, []string{"hi there"}, h.textsTo("oc_c"))

	h.process(message("oc_c", "ou_a", ".menu"))
	assert.Equal(t, 1, h.responder.callCount(), "commands are not relayed")

	h.process(message("oc_g1", "ou_a", "anyone?"))
	assert.Equal(t, 1, h.responder.callCount(), "group messages need a mention")

	mentioned := message("oc_g1", "ou_a", "@bot anyone?")
	mentioned.Mentions = []string{selfID}
	h.process(mentioned)
	assert.Equal(t, 2, h.responder.callCount())
	assert.Equal(t, []string{"hi there"}, h.textsTo("oc_g1"))

	unsupported := message("oc_c", "ou_a", domain.UnsupportedContent)
	h.process(unsupported)
	assert.Equal(t, 2, h.responder.callCount())

	presence := h.transport.CallsTo("SetPresence")
	require.NotEmpty(t, presence)
	assert.Equal(t, "composing", presence[0].Text)
}

func TestEngine_ChatbotFallbacks(t *testing.T) {
	h := newHarness(t, domain.FeatureChatbot)
	fallback := "🎯 Having some technical difficulties. Let's try that again!"

	h.responder.err = errors.New("quota exceeded")
	h.process(message("oc_c", "ou_a", "hello"))

	h.responder.err = nil
	h.responder.block = true
	start := time.Now()
	h.process(message("oc_c", "ou_a", "hello again"))
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, []string{fallback, fallback}, h.textsTo("oc_c"))
}

func TestEngine_ChatbotAutoDisable(t *testing.T) {
	h := newHarness(t, domain.FeatureChatbot)

	h.clock.Advance(59 * time.Minute)
	assert.True(t, h.uc.Features.Enabled(domain.FeatureChatbot))

	h.clock.Advance(time.Minute)
	assert.False(t, h.uc.Features.Enabled(domain.FeatureChatbot))
	assert.Equal(t, []string{"🤖 Chatbot has been automatically disabled."}, h.textsTo(ownerID))
}

func TestEngine_ChatbotReenableRestartsTimer(t *testing.T) {
	h := newHarness(t, domain.FeatureChatbot)

	h.clock.Advance(30 * time.Minute)
	on, ok := h.engine.ToggleFeature("chatbot")
	require.True(t, ok)
	assert.False(t, on)
	on, _ = h.engine.ToggleFeature("chatbot")
	assert.True(t, on)

	h.clock.Advance(45 * time.Minute)
	assert.True(t, h.uc.Features.Enabled(domain.FeatureChatbot), "first timer was cancelled")

	h.clock.Advance(15 * time.Minute)
	assert.False(t, h.uc.Features.Enabled(domain.FeatureChatbot))
	assert.Len(t, h.textsTo(ownerID), 1)
}

func TestEngine_PolicyPanicDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiLink, domain.FeatureChatbot)
	h.settings.panicGroups = true

	msg := message("oc_g1", "ou_a", "look https://example.com")
	msg.Mentions = []string{selfID}
	h.process(msg)

	assert.Equal(t, []string{"hi there"}, h.textsTo("oc_g1"))
}

func TestEngine_BlockFailureSkipsAlert(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)
	h.transport.Fail("BlockSender", errors.New("forbidden"))

	for i := 0; i < 10; i++ {
		h.process(message("oc_c", "ou_spam", "aaaaaa"))
		h.clock.Advance(100 * time.Millisecond)
	}

	assert.Len(t, h.transport.CallsTo("BlockSender"), 1)
	assert.Empty(t, h.textsTo(ownerID))
}

func TestEngine_UnsupportedBlockStillAlertsOwner(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)
	h.transport.Fail("BlockSender", domain.ErrUnsupported)

	for i := 0; i < 12; i++ {
		h.process(message("oc_c", "ou_spam", "aaaaaa"))
		h.clock.Advance(100 * time.Millisecond)
	}

	assert.Len(t, h.transport.CallsTo("BlockSender"), 3)
	assert.Empty(t, h.transport.CallsTo("RemoveParticipant"), "direct chats have no participants to remove")

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 3)
	assert.Contains(t, alerts[0], "AUTO-BLOCKED SPAMMER")
	assert.Contains(t, alerts[0], "block unavailable")
}

func TestEngine_UnsupportedBlockRemovesFromGroup(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)
	h.transport.Fail("BlockSender", domain.ErrUnsupported)

	for i := 0; i < 10; i++ {
		h.process(message("oc_g1", "ou_spam", "aaaaaa"))
		h.clock.Advance(100 * time.Millisecond)
	}

	removals := h.transport.CallsTo("RemoveParticipant")
	require.Len(t, removals, 1)
	assert.Equal(t, "oc_g1", removals[0].Chat)
	assert.Equal(t, "ou_spam", removals[0].Target)

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "🔒 Action: removed from group")
}

func TestEngine_UnsupportedRemovalReportsUnavailable(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)
	h.transport.Fail("BlockSender", domain.ErrUnsupported)
	h.transport.Fail("RemoveParticipant", domain.ErrUnsupported)

	for i := 0; i < 10; i++ {
		h.process(message("oc_g1", "ou_spam", "aaaaaa"))
		h.clock.Advance(100 * time.Millisecond)
	}

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "block unavailable")
}

func TestEngine_AntiBugUnsupportedBlockStillAlerts(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiBug)
	h.transport.Fail("BlockSender", domain.ErrUnsupported)

	for i := 0; i < 6; i++ {
		h.process(message("oc_c", "ou_bad", "click javascript:alert(1) now"))
		h.clock.Advance(time.Minute)
	}

	alerts := h.textsTo(ownerID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "AUTO-BLOCKED SUSPICIOUS USER")
	assert.Contains(t, alerts[0], "block unavailable")
}

func TestEngine_SpamWarningRetriedAfterFailedSend(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiSpam)
	h.transport.Fail("SendText", errors.New("rate limited"))

	for i := 0; i < 5; i++ {
		h.process(message("oc_c", "ou_spam", "aaaaaa"))
		h.clock.Advance(200 * time.Millisecond)
	}
	require.Len(t, h.textsTo("oc_c"), 1, "warning attempted on message 5")
	state, ok := h.uc.Spam.State("ou_spam")
	require.True(t, ok)
	assert.False(t, state.Warned)

	h.transport.Fail("SendText", nil)
	h.process(message("oc_c", "ou_spam", "aaaaaa"))
	h.clock.Advance(200 * time.Millisecond)
	h.process(message("oc_c", "ou_spam", "aaaaaa"))

	assert.Len(t, h.textsTo("oc_c"), 2, "retried once, then confirmed")
	state, _ = h.uc.Spam.State("ou_spam")
	assert.True(t, state.Warned)
}

func TestEngine_TogglesRecheckedPerEvent(t *testing.T) {
	h := newHarness(t, domain.FeatureAntiCall)

	h.process(&domain.CallReceived{CallID: "c1", From: "ou_a"})
	require.True(t, h.engine.SetFeature("anticall", false))
	h.process(&domain.CallReceived{CallID: "c2", From: "ou_a"})

	assert.Len(t, h.transport.CallsTo("RejectCall"), 1)
	assert.False(t, h.engine.SetFeature("teleport", true))
}

func TestEngine_NotifyTargetOverridesOwner(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultEngineConfig()
	cfg.NotifyTarget = "oc_alerts"
	h.engine = NewEngine(cfg, h.uc, h.transport, h.settings, h.audit, nil, h.clock, nil, nil, nil)
	h.engine.SetFeature("anticall", true)

	h.process(&domain.CallReceived{CallID: "c1", From: "ou_a"})

	assert.Len(t, h.textsTo("oc_alerts"), 1)
	assert.Empty(t, h.textsTo(ownerID))
}
