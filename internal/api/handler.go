package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/data"
)

// Engine is the part of the policy engine the API drives
type Engine interface {
	Usecases() *biz.Usecases
	SetFeature(name string, on bool) bool
	ToggleFeature(name string) (bool, bool)
}

// Store is the settings and audit storage the API reads and writes
type Store interface {
	GetCommandPrefix(ctx context.Context) (string, error)
	SetCommandPrefix(ctx context.Context, prefix string) error
	GetOwnerIdentity(ctx context.Context) (string, error)
	SetOwnerIdentity(ctx context.Context, owner string) error
	GetGroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error)
	SaveGroupSettings(ctx context.Context, settings *domain.GroupSettings) error
	GetUserTrust(ctx context.Context, sender string) (*domain.TrustScore, error)
	ListDeletedMessages(ctx context.Context, limit int) ([]*data.DeletedMessage, error)
	ListEditedMessages(ctx context.Context, limit int) ([]*data.EditedMessage, error)
}

// EventSink accepts injected events, normally the dispatcher
type EventSink interface {
	Submit(ev domain.ChatEvent) bool
}

// Server provides the HTTP control API used by the CLI and the MCP server
type Server struct {
	engine  Engine
	store   Store
	sink    EventSink
	metrics http.Handler
	log     *zap.Logger

	server *http.Server
	port   int
}

// NewServer creates a new API server. metrics may be nil.
func NewServer(engine Engine, store Store, sink EventSink, metrics http.Handler, port int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		store:   store,
		sink:    sink,
		metrics: metrics,
		port:    port,
		log:     log.Named("api"),
	}
}

// Handler builds the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Features
	mux.HandleFunc("GET /api/features", s.handleFeatures)
	mux.HandleFunc("POST /api/features/{name}/{action}", s.handleFeatureAction)

	// Media vault
	mux.HandleFunc("GET /api/vault", s.handleVaultList)
	mux.HandleFunc("GET /api/vault/{id}", s.handleVaultGet)
	mux.HandleFunc("GET /api/vault/{id}/file", s.handleVaultFile)
	mux.HandleFunc("DELETE /api/vault/{id}", s.handleVaultDiscard)

	// Trust and audit
	mux.HandleFunc("GET /api/trust/{sender}", s.handleTrust)
	mux.HandleFunc("GET /api/audit/deleted", s.handleAuditDeleted)
	mux.HandleFunc("GET /api/audit/edited", s.handleAuditEdited)

	// Settings
	mux.HandleFunc("GET /api/settings", s.handleSettings)
	mux.HandleFunc("PUT /api/settings", s.handleSettingsUpdate)
	mux.HandleFunc("GET /api/groups/{chat}/settings", s.handleGroupSettings)
	mux.HandleFunc("PUT /api/groups/{chat}/settings", s.handleGroupSettingsUpdate)

	// Event injection
	mux.HandleFunc("POST /api/events", s.handleEvent)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server on localhost and blocks
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("Starting HTTP server", zap.Int("port", s.port))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Feature Handlers ============

// FeatureState is the reported state of one feature
type FeatureState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	statuses := s.engine.Usecases().Features.AllStatuses()
	features := make([]FeatureState, 0, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		features = append(features, FeatureState{Name: string(f), Enabled: statuses[string(f)]})
	}
	s.writeJSON(w, map[string]interface{}{"features": features})
}

func (s *Server) handleFeatureAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var on, ok bool
	switch r.PathValue("action") {
	case "enable":
		on, ok = true, s.engine.SetFeature(name, true)
	case "disable":
		on, ok = false, s.engine.SetFeature(name, false)
	case "toggle":
		on, ok = s.engine.ToggleFeature(name)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if !ok {
		s.writeStatus(w, http.StatusNotFound, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, name))
		return
	}

	s.log.Info("Feature changed", zap.String("feature", name), zap.Bool("enabled", on))
	s.writeJSON(w, FeatureState{Name: name, Enabled: on})
}

// ============ Vault Handlers ============

func (s *Server) handleVaultList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{"entries": s.engine.Usecases().Vault.List()})
}

func (s *Server) handleVaultGet(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.engine.Usecases().Vault.Get(r.PathValue("id"))
	if !ok {
		s.writeStatus(w, http.StatusNotFound, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, entry)
}

func (s *Server) handleVaultFile(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.engine.Usecases().Vault.Get(r.PathValue("id"))
	if !ok {
		s.writeStatus(w, http.StatusNotFound, domain.ErrNotFound)
		return
	}
	http.ServeFile(w, r, entry.FilePath)
}

func (s *Server) handleVaultDiscard(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Usecases().Vault.Discard(r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		s.writeStatus(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

// ============ Trust and Audit Handlers ============

func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	sender := r.PathValue("sender")
	score := s.engine.Usecases().Trust.Score(sender)

	stored, err := s.store.GetUserTrust(r.Context(), sender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// the ledger restarts empty, the store remembers blocks across restarts
	if stored != nil {
		if score.Score == domain.InitialTrust && !score.Blocked {
			score.Score = stored.Score
		}
		score.Blocked = score.Blocked || stored.Blocked
	}
	s.writeJSON(w, score)
}

func (s *Server) handleAuditDeleted(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListDeletedMessages(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"entries": entries})
}

func (s *Server) handleAuditEdited(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEditedMessages(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"entries": entries})
}

func queryLimit(r *http.Request) int {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

// ============ Settings Handlers ============

// BotSettings are the bot-level settings
type BotSettings struct {
	Prefix string `json:"prefix"`
	Owner  string `json:"owner"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefix, err := s.store.GetCommandPrefix(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := s.store.GetOwnerIdentity(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, BotSettings{Prefix: prefix, Owner: owner})
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BotSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prefix != "" {
		if err := s.store.SetCommandPrefix(ctx, req.Prefix); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.Owner != "" {
		if err := s.store.SetOwnerIdentity(ctx, req.Owner); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.handleSettings(w, r)
}

func (s *Server) handleGroupSettings(w http.ResponseWriter, r *http.Request) {
	gs, err := s.store.GetGroupSettings(r.Context(), r.PathValue("chat"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, gs)
}

func (s *Server) handleGroupSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var gs domain.GroupSettings
	if err := json.NewDecoder(r.Body).Decode(&gs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	gs.Chat = r.PathValue("chat")
	if err := s.store.SaveGroupSettings(r.Context(), &gs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, gs)
}

// ============ Event Injection ============

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		http.Error(w, "event injection disabled", http.StatusServiceUnavailable)
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev, err := req.ToEvent(time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.sink.Submit(ev) {
		http.Error(w, "engine stopped", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"accepted": true, "kind": ev.Kind()})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Error("Request failed", zap.Error(err))
	s.writeStatus(w, http.StatusInternalServerError, err)
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
