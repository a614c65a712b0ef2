package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chatguard/internal/api"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second, nil)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Features(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/features":
			writeJSON(w, http.StatusOK, map[string]interface{}{"features": []api.FeatureState{{Name: "antispam", Enabled: true}}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/features/chatbot/toggle":
			writeJSON(w, http.StatusOK, api.FeatureState{Name: "chatbot", Enabled: true})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown feature: " + r.URL.Path})
		}
	})
	ctx := context.Background()

	features, err := c.Features(ctx)
	require.NoError(t, err)
	assert.Equal(t, []api.FeatureState{{Name: "antispam", Enabled: true}}, features)

	state, err := c.SetFeature(ctx, "chatbot", "toggle")
	require.NoError(t, err)
	assert.True(t, state.Enabled)

	_, err = c.SetFeature(ctx, "nope", "enable")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "unknown feature")
}

func TestClient_Vault(t *testing.T) {
	captured := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var deleted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/vault":
			writeJSON(w, http.StatusOK, map[string]interface{}{"entries": []domain.EphemeralMedia{{ID: "om_1", Kind: domain.MediaImage, CapturedAt: captured}}})
		case r.Method == http.MethodGet && r.URL.Path == "/api/vault/om_1":
			writeJSON(w, http.StatusOK, domain.EphemeralMedia{ID: "om_1", Sender: "ou_a"})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		}
	})
	ctx := context.Background()

	entries, err := c.Vault(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, captured.Equal(entries[0].CapturedAt))

	entry, err := c.VaultEntry(ctx, "om_1")
	require.NoError(t, err)
	assert.Equal(t, "ou_a", entry.Sender)

	require.NoError(t, c.DiscardVaultEntry(ctx, "om_1"))
	assert.Equal(t, "/api/vault/om_1", deleted)

	_, err = c.VaultEntry(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestClient_SettingsAndEvents(t *testing.T) {
	var injected api.EventRequest
	var saved domain.GroupSettings
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/settings":
			writeJSON(w, http.StatusOK, api.BotSettings{Prefix: ".", Owner: "ou_owner"})
		case "/api/groups/oc_1/settings":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			writeJSON(w, http.StatusOK, saved)
		case "/api/events":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&injected))
			writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
		case "/api/trust/ou_a":
			writeJSON(w, http.StatusOK, domain.TrustScore{Sender: "ou_a", Score: 40})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	})
	ctx := context.Background()

	settings, err := c.UpdateSettings(ctx, api.BotSettings{Owner: "ou_owner"})
	require.NoError(t, err)
	assert.Equal(t, "ou_owner", settings.Owner)

	gs, err := c.SaveGroupSettings(ctx, domain.GroupSettings{Chat: "oc_1", AntiLink: true})
	require.NoError(t, err)
	assert.True(t, gs.AntiLink)
	assert.True(t, saved.AntiLink)

	require.NoError(t, c.InjectEvent(ctx, api.EventRequest{Kind: "call_received", CallID: "c1", From: "ou_a"}))
	assert.Equal(t, "c1", injected.CallID)

	score, err := c.Trust(ctx, "ou_a")
	require.NoError(t, err)
	assert.Equal(t, 40, score.Score)

	_, err = c.DeletedMessages(ctx, 10)
	require.Error(t, err)
	assert.Equal(t, "[500] boom", err.Error())
	assert.False(t, IsNotFound(err))
}
