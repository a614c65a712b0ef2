package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/api"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/data"
)

// APIError represents an error response from the control API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseError(resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := string(resp.Body())
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

// Client calls the chatguard control API
type Client struct {
	http *resty.Client
}

// New creates a client for the API at baseURL
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "chatguard-cli")

	httpClient.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		log.Debug("HTTP Request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	httpClient.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		log.Debug("HTTP Response", zap.Int("status", resp.StatusCode()))
		return nil
	})

	return &Client{http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsSuccess() {
		return parseError(resp)
	}
	return nil
}

// Health checks that the API is up
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Features lists every feature and its state
func (c *Client) Features(ctx context.Context) ([]api.FeatureState, error) {
	var out struct {
		Features []api.FeatureState `json:"features"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/features", nil, &out); err != nil {
		return nil, err
	}
	return out.Features, nil
}

// SetFeature applies action (enable, disable, toggle) to a feature
func (c *Client) SetFeature(ctx context.Context, name, action string) (*api.FeatureState, error) {
	var out api.FeatureState
	path := "/api/features/" + url.PathEscape(name) + "/" + url.PathEscape(action)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vault lists captured media, newest first
func (c *Client) Vault(ctx context.Context) ([]domain.EphemeralMedia, error) {
	var out struct {
		Entries []domain.EphemeralMedia `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/vault", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// VaultEntry returns one captured media entry
func (c *Client) VaultEntry(ctx context.Context, id string) (*domain.EphemeralMedia, error) {
	var out domain.EphemeralMedia
	if err := c.do(ctx, http.MethodGet, "/api/vault/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscardVaultEntry deletes a captured media entry and its file
func (c *Client) DiscardVaultEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/vault/"+url.PathEscape(id), nil, nil)
}

// Trust returns the trust score of a sender
func (c *Client) Trust(ctx context.Context, sender string) (*domain.TrustScore, error) {
	var out domain.TrustScore
	if err := c.do(ctx, http.MethodGet, "/api/trust/"+url.PathEscape(sender), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletedMessages lists recently audited deletions
func (c *Client) DeletedMessages(ctx context.Context, limit int) ([]data.DeletedMessage, error) {
	var out struct {
		Entries []data.DeletedMessage `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/audit/deleted?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// EditedMessages lists recently audited edits
func (c *Client) EditedMessages(ctx context.Context, limit int) ([]data.EditedMessage, error) {
	var out struct {
		Entries []data.EditedMessage `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/audit/edited?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Settings returns the bot-level settings
func (c *Client) Settings(ctx context.Context) (*api.BotSettings, error) {
	var out api.BotSettings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings changes the non-empty fields of settings
func (c *Client) UpdateSettings(ctx context.Context, settings api.BotSettings) (*api.BotSettings, error) {
	var out api.BotSettings
	if err := c.do(ctx, http.MethodPut, "/api/settings", settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GroupSettings returns the switches of a group
func (c *Client) GroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error) {
	var out domain.GroupSettings
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(chatID)+"/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveGroupSettings replaces the switches of a group
func (c *Client) SaveGroupSettings(ctx context.Context, settings domain.GroupSettings) (*domain.GroupSettings, error) {
	var out domain.GroupSettings
	if err := c.do(ctx, http.MethodPut, "/api/groups/"+url.PathEscape(settings.Chat)+"/settings", settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InjectEvent submits a chat event to the engine
func (c *Client) InjectEvent(ctx context.Context, ev api.EventRequest) error {
	return c.do(ctx, http.MethodPost, "/api/events", ev, nil)
}
