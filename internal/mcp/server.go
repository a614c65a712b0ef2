package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/chatguard/internal/api"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/data"
)

// API is the control API the tools call, implemented by client.Client
type API interface {
	Features(ctx context.Context) ([]api.FeatureState, error)
	SetFeature(ctx context.Context, name, action string) (*api.FeatureState, error)
	Vault(ctx context.Context) ([]domain.EphemeralMedia, error)
	DiscardVaultEntry(ctx context.Context, id string) error
	Trust(ctx context.Context, sender string) (*domain.TrustScore, error)
	DeletedMessages(ctx context.Context, limit int) ([]data.DeletedMessage, error)
	EditedMessages(ctx context.Context, limit int) ([]data.EditedMessage, error)
	GroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error)
	SaveGroupSettings(ctx context.Context, settings domain.GroupSettings) (*domain.GroupSettings, error)
}

// Server exposes chatguard operations as MCP tools
type Server struct {
	server *mcp.Server
	api    API
}

// NewServer creates the MCP server and registers its tools
func NewServer(client API, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chatguard",
			Version: version,
		}, nil),
		api: client,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves the tools over stdio until ctx ends
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_list_features",
		Description: "List every protection feature and whether it is enabled.",
	}, s.handleListFeatures)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_set_feature",
		Description: "Enable, disable or toggle a protection feature by name (antidelete, antispam, chatbot, ...).",
	}, s.handleSetFeature)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_list_vault",
		Description: "List captured view-once media, newest first.",
	}, s.handleListVault)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_discard_vault",
		Description: "Delete a captured view-once media entry and its file.",
	}, s.handleDiscardVault)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_get_trust",
		Description: "Get the trust score of a sender and whether it has been blocked.",
	}, s.handleGetTrust)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_list_deleted",
		Description: "List recently deleted messages captured by antidelete.",
	}, s.handleListDeleted)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_list_edited",
		Description: "List recently edited messages captured by antiedit.",
	}, s.handleListEdited)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_get_group_settings",
		Description: "Get the per-group switches of a group chat.",
	}, s.handleGetGroupSettings)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatguard_set_group_settings",
		Description: "Replace the per-group switches of a group chat.",
	}, s.handleSetGroupSettings)
}

// ============ Features ============

// ListFeaturesInput is empty - no input needed
type ListFeaturesInput struct{}

// ListFeaturesOutput contains every feature state
type ListFeaturesOutput struct {
	Features []api.FeatureState `json:"features"`
	Error    string             `json:"error,omitempty"`
}

func (s *Server) handleListFeatures(ctx context.Context, req *mcp.CallToolRequest, input ListFeaturesInput) (*mcp.CallToolResult, ListFeaturesOutput, error) {
	features, err := s.api.Features(ctx)
	if err != nil {
		return nil, ListFeaturesOutput{Error: err.Error()}, nil
	}
	return nil, ListFeaturesOutput{Features: features}, nil
}

// SetFeatureInput names a feature and what to do with it
type SetFeatureInput struct {
	Name   string `json:"name" jsonschema:"the feature name, for example antispam"`
	Action string `json:"action" jsonschema:"one of enable, disable or toggle"`
}

// SetFeatureOutput reports the resulting state
type SetFeatureOutput struct {
	Success bool   `json:"success"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleSetFeature(ctx context.Context, req *mcp.CallToolRequest, input SetFeatureInput) (*mcp.CallToolResult, SetFeatureOutput, error) {
	switch input.Action {
	case "enable", "disable", "toggle":
	default:
		return nil, SetFeatureOutput{Error: "action must be enable, disable or toggle"}, nil
	}
	state, err := s.api.SetFeature(ctx, input.Name, input.Action)
	if err != nil {
		return nil, SetFeatureOutput{Error: err.Error()}, nil
	}
	return nil, SetFeatureOutput{Success: true, Enabled: state.Enabled}, nil
}

// ============ Vault ============

// ListVaultInput is empty - no input needed
type ListVaultInput struct{}

// VaultEntry is one captured media file
type VaultEntry struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Sender     string `json:"sender"`
	Chat       string `json:"chat"`
	Caption    string `json:"caption,omitempty"`
	FilePath   string `json:"file_path"`
	CapturedAt string `json:"captured_at"`
}

// ListVaultOutput contains the captured media
type ListVaultOutput struct {
	Entries []VaultEntry `json:"entries"`
	Error   string       `json:"error,omitempty"`
}

func (s *Server) handleListVault(ctx context.Context, req *mcp.CallToolRequest, input ListVaultInput) (*mcp.CallToolResult, ListVaultOutput, error) {
	media, err := s.api.Vault(ctx)
	if err != nil {
		return nil, ListVaultOutput{Error: err.Error()}, nil
	}
	entries := make([]VaultEntry, len(media))
	for i, m := range media {
		entries[i] = VaultEntry{
			ID:         m.ID,
			Kind:       string(m.Kind),
			Sender:     m.Sender,
			Chat:       m.Chat,
			Caption:    m.Caption,
			FilePath:   m.FilePath,
			CapturedAt: m.CapturedAt.Format(time.RFC3339),
		}
	}
	return nil, ListVaultOutput{Entries: entries}, nil
}

// DiscardVaultInput names the entry to delete
type DiscardVaultInput struct {
	ID string `json:"id" jsonschema:"the vault entry id, which is the original message id"`
}

// DiscardVaultOutput is the output for discard_vault
type DiscardVaultOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleDiscardVault(ctx context.Context, req *mcp.CallToolRequest, input DiscardVaultInput) (*mcp.CallToolResult, DiscardVaultOutput, error) {
	if input.ID == "" {
		return nil, DiscardVaultOutput{Error: "id is required"}, nil
	}
	if err := s.api.DiscardVaultEntry(ctx, input.ID); err != nil {
		return nil, DiscardVaultOutput{Error: err.Error()}, nil
	}
	return nil, DiscardVaultOutput{Success: true}, nil
}

// ============ Trust and Audit ============

// GetTrustInput names a sender
type GetTrustInput struct {
	Sender string `json:"sender" jsonschema:"the sender identifier"`
}

// GetTrustOutput is the sender's score
type GetTrustOutput struct {
	Score   int    `json:"score"`
	Blocked bool   `json:"blocked"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleGetTrust(ctx context.Context, req *mcp.CallToolRequest, input GetTrustInput) (*mcp.CallToolResult, GetTrustOutput, error) {
	if input.Sender == "" {
		return nil, GetTrustOutput{Error: "sender is required"}, nil
	}
	score, err := s.api.Trust(ctx, input.Sender)
	if err != nil {
		return nil, GetTrustOutput{Error: err.Error()}, nil
	}
	return nil, GetTrustOutput{Score: score.Score, Blocked: score.Blocked}, nil
}

// ListAuditInput limits how many entries are returned
type ListAuditInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries, default 20"`
}

// AuditEntry is one audited deletion or edit
type AuditEntry struct {
	MessageID string `json:"message_id"`
	Chat      string `json:"chat"`
	By        string `json:"by"`
	Content   string `json:"content"`
	Edited    string `json:"edited,omitempty"`
	At        string `json:"at"`
}

// ListAuditOutput contains audited entries, newest first
type ListAuditOutput struct {
	Entries []AuditEntry `json:"entries"`
	Error   string       `json:"error,omitempty"`
}

func (s *Server) handleListDeleted(ctx context.Context, req *mcp.CallToolRequest, input ListAuditInput) (*mcp.CallToolResult, ListAuditOutput, error) {
	deleted, err := s.api.DeletedMessages(ctx, auditLimit(input.Limit))
	if err != nil {
		return nil, ListAuditOutput{Error: err.Error()}, nil
	}
	entries := make([]AuditEntry, len(deleted))
	for i, d := range deleted {
		entries[i] = AuditEntry{
			MessageID: d.MessageID,
			Chat:      d.Chat,
			By:        d.DeletedBy,
			Content:   d.Content,
			At:        d.DeletedAt.Format(time.RFC3339),
		}
	}
	return nil, ListAuditOutput{Entries: entries}, nil
}

func (s *Server) handleListEdited(ctx context.Context, req *mcp.CallToolRequest, input ListAuditInput) (*mcp.CallToolResult, ListAuditOutput, error) {
	edited, err := s.api.EditedMessages(ctx, auditLimit(input.Limit))
	if err != nil {
		return nil, ListAuditOutput{Error: err.Error()}, nil
	}
	entries := make([]AuditEntry, len(edited))
	for i, e := range edited {
		entries[i] = AuditEntry{
			MessageID: e.MessageID,
			Chat:      e.Chat,
			By:        e.EditedBy,
			Content:   e.OriginalContent,
			Edited:    e.EditedContent,
			At:        e.EditedAt.Format(time.RFC3339),
		}
	}
	return nil, ListAuditOutput{Entries: entries}, nil
}

func auditLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

// ============ Group Settings ============

// GroupInput names a group chat
type GroupInput struct {
	Chat string `json:"chat" jsonschema:"the group chat id"`
}

// GroupSettingsOutput is the state of a group's switches
type GroupSettingsOutput struct {
	Settings *domain.GroupSettings `json:"settings,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleGetGroupSettings(ctx context.Context, req *mcp.CallToolRequest, input GroupInput) (*mcp.CallToolResult, GroupSettingsOutput, error) {
	if input.Chat == "" {
		return nil, GroupSettingsOutput{Error: "chat is required"}, nil
	}
	gs, err := s.api.GroupSettings(ctx, input.Chat)
	if err != nil {
		return nil, GroupSettingsOutput{Error: err.Error()}, nil
	}
	return nil, GroupSettingsOutput{Settings: gs}, nil
}

// SetGroupSettingsInput is the full set of switches for a group
type SetGroupSettingsInput struct {
	Chat       string `json:"chat" jsonschema:"the group chat id"`
	AntiLink   bool   `json:"antilink,omitempty" jsonschema:"remove members who post links"`
	AntiDelete bool   `json:"antidelete,omitempty" jsonschema:"announce deleted messages in the group"`
	AntiDemote bool   `json:"antidemote,omitempty" jsonschema:"leave the group when the bot is demoted"`
}

func (s *Server) handleSetGroupSettings(ctx context.Context, req *mcp.CallToolRequest, input SetGroupSettingsInput) (*mcp.CallToolResult, GroupSettingsOutput, error) {
	if input.Chat == "" {
		return nil, GroupSettingsOutput{Error: "chat is required"}, nil
	}
	gs, err := s.api.SaveGroupSettings(ctx, domain.GroupSettings{
		Chat:       input.Chat,
		AntiLink:   input.AntiLink,
		AntiDelete: input.AntiDelete,
		AntiDemote: input.AntiDemote,
	})
	if err != nil {
		return nil, GroupSettingsOutput{Error: err.Error()}, nil
	}
	return nil, GroupSettingsOutput{Settings: gs}, nil
}
