package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig `toml:"feishu"`

	// Chatbot responder configuration (OpenAI-compatible endpoint)
	Chatbot ChatbotConfig `toml:"chatbot"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Engine tuning
	Engine EngineConfig `toml:"engine"`

	// Control API configuration
	API APIConfig `toml:"api"`

	// Logging configuration
	Log LogConfig `toml:"log"`

	// Alert templates (loaded from YAML)
	Alerts *AlertsConfig `toml:"-"`

	// Debug mode
	Debug bool `toml:"debug"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string        `toml:"app_id"`
	AppSecret string        `toml:"app_secret"`
	SendRate  int           `toml:"send_rate"` // outbound calls per second
	DedupeTTL time.Duration `toml:"dedupe_ttl"`
}

// ChatbotConfig contains chatbot responder configuration
type ChatbotConfig struct {
	APIKey      string        `toml:"api_key"`
	BaseURL     string        `toml:"base_url"`
	Model       string        `toml:"model"`
	Timeout     time.Duration `toml:"timeout"`
	AutoDisable time.Duration `toml:"auto_disable"`
	HistorySize int           `toml:"history_size"`
}

// StoreConfig contains settings and audit store configuration
type StoreConfig struct {
	DBPath string `toml:"db_path"`
	Prefix string `toml:"prefix"`
	Owner  string `toml:"owner"`
}

// EngineConfig contains the tunables of the stateful components
type EngineConfig struct {
	CacheCapacity       int           `toml:"cache_capacity"`
	SpamWindow          time.Duration `toml:"spam_window"`
	SpamWarnAt          int           `toml:"spam_warn_at"`
	SpamBlockAt         int           `toml:"spam_block_at"`
	TrustPenalty        int           `toml:"trust_penalty"`
	TrustBlockThreshold int           `toml:"trust_block_threshold"`
	TypingMin           time.Duration `toml:"typing_min"`
	TypingMax           time.Duration `toml:"typing_max"`
	RecordingDuration   time.Duration `toml:"recording_duration"`
	MediaDir            string        `toml:"media_dir"`
	MediaSweepInterval  time.Duration `toml:"media_sweep_interval"`
	MediaMaxAge         time.Duration `toml:"media_max_age"`
	ActionTimeout       time.Duration `toml:"action_timeout"`
	NotifyTarget        string        `toml:"notify_target"`
	EnabledFeatures     []string      `toml:"enabled_features"`
	Workers             int           `toml:"workers"`
}

// APIConfig contains control API configuration
type APIConfig struct {
	Port int    `toml:"port"`
	URL  string `toml:"url"` // base URL used by the CLI and MCP clients
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

const defaultAPIPort = 9876

// Default returns the built-in configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".chatguard")

	return &Config{
		Feishu: FeishuConfig{
			SendRate:  10,
			DedupeTTL: 5 * time.Minute,
		},
		Chatbot: ChatbotConfig{
			BaseURL:     "https://api.moonshot.cn/v1",
			Model:       "moonshot-v1-8k",
			Timeout:     15 * time.Second,
			AutoDisable: time.Hour,
			HistorySize: 5,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(base, "chatguard.db"),
			Prefix: ".",
		},
		Engine: EngineConfig{
			CacheCapacity:       usecase.DefaultCacheCapacity,
			SpamWindow:          10 * time.Second,
			SpamWarnAt:          5,
			SpamBlockAt:         10,
			TrustPenalty:        domain.DefaultTrustPenalty,
			TrustBlockThreshold: domain.DefaultBlockThreshold,
			TypingMin:           7 * time.Second,
			TypingMax:           9 * time.Second,
			RecordingDuration:   8 * time.Second,
			MediaDir:            filepath.Join(base, "saved-media"),
			MediaSweepInterval:  2 * time.Hour,
			MediaMaxAge:         2 * time.Hour,
			ActionTimeout:       20 * time.Second,
			Workers:             64,
		},
		API: APIConfig{
			Port: defaultAPIPort,
			URL:  fmt.Sprintf("http://127.0.0.1:%d", defaultAPIPort),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(base, "chatguard.log"),
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by CONFIG_FILE, then environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	alerts, err := LoadAlertsConfig(os.Getenv("ALERTS_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	cfg.Alerts = alerts
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables on top of defaults
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	cfg.Alerts = DefaultAlertsConfig()
	return cfg
}

// LoadFile overlays the keys present in a TOML file
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return &ConfigError{Field: "CONFIG_FILE", Message: fmt.Sprintf("failed to parse %s: %v", path, err)}
	}
	return nil
}

func (c *Config) applyEnv() {
	envString("FEISHU_APP_ID", &c.Feishu.AppID)
	envString("FEISHU_APP_SECRET", &c.Feishu.AppSecret)
	envInt("FEISHU_SEND_RATE", &c.Feishu.SendRate)
	envDuration("FEISHU_DEDUPE_TTL", &c.Feishu.DedupeTTL)

	envString("CHATBOT_API_KEY", &c.Chatbot.APIKey)
	envString("CHATBOT_BASE_URL", &c.Chatbot.BaseURL)
	envString("CHATBOT_MODEL", &c.Chatbot.Model)
	envDuration("CHATBOT_TIMEOUT", &c.Chatbot.Timeout)
	envDuration("CHATBOT_AUTO_DISABLE", &c.Chatbot.AutoDisable)
	envInt("CHATBOT_HISTORY_SIZE", &c.Chatbot.HistorySize)

	envString("STORE_DB_PATH", &c.Store.DBPath)
	envString("COMMAND_PREFIX", &c.Store.Prefix)
	envString("OWNER_ID", &c.Store.Owner)

	envInt("MESSAGE_CACHE_CAPACITY", &c.Engine.CacheCapacity)
	envDuration("SPAM_WINDOW", &c.Engine.SpamWindow)
	envInt("SPAM_WARN_AT", &c.Engine.SpamWarnAt)
	envInt("SPAM_BLOCK_AT", &c.Engine.SpamBlockAt)
	envInt("TRUST_PENALTY", &c.Engine.TrustPenalty)
	envInt("TRUST_BLOCK_THRESHOLD", &c.Engine.TrustBlockThreshold)
	envDuration("TYPING_MIN", &c.Engine.TypingMin)
	envDuration("TYPING_MAX", &c.Engine.TypingMax)
	envDuration("RECORDING_DURATION", &c.Engine.RecordingDuration)
	envString("MEDIA_DIR", &c.Engine.MediaDir)
	envDuration("MEDIA_SWEEP_INTERVAL", &c.Engine.MediaSweepInterval)
	envDuration("MEDIA_MAX_AGE", &c.Engine.MediaMaxAge)
	envDuration("ACTION_TIMEOUT", &c.Engine.ActionTimeout)
	envString("NOTIFY_TARGET", &c.Engine.NotifyTarget)
	envInt("DISPATCH_WORKERS", &c.Engine.Workers)
	if val := os.Getenv("ENABLED_FEATURES"); val != "" {
		c.Engine.EnabledFeatures = splitList(val)
	}

	envInt("API_PORT", &c.API.Port)
	if val := os.Getenv("CHATGUARD_API_URL"); val != "" {
		c.API.URL = val
	} else if os.Getenv("API_PORT") != "" {
		c.API.URL = fmt.Sprintf("http://127.0.0.1:%d", c.API.Port)
	}

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FILE", &c.Log.File)

	if val := os.Getenv("DEBUG"); val != "" {
		c.Debug = val == "true"
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*dst = parsed
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ToBizConfig converts to the usecase layer configuration
func (c *Config) ToBizConfig() biz.Config {
	spam := usecase.DefaultSpamConfig()
	spam.Window = c.Engine.SpamWindow
	spam.WarnAt = c.Engine.SpamWarnAt
	spam.BlockAt = c.Engine.SpamBlockAt

	return biz.Config{
		CacheCapacity: c.Engine.CacheCapacity,
		Spam:          spam,
		Trust: usecase.TrustConfig{
			Penalty:        c.Engine.TrustPenalty,
			BlockThreshold: c.Engine.TrustBlockThreshold,
		},
		Vault: usecase.VaultConfig{
			Dir:           c.Engine.MediaDir,
			MaxAge:        c.Engine.MediaMaxAge,
			SweepInterval: c.Engine.MediaSweepInterval,
		},
		Presence: usecase.PresenceConfig{
			TypingMin: c.Engine.TypingMin,
			TypingMax: c.Engine.TypingMax,
			Recording: c.Engine.RecordingDuration,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return c.ValidateEngine()
}

// ValidateEngine validates the engine tunables only
func (c *Config) ValidateEngine() error {
	e := c.Engine
	if e.CacheCapacity <= 0 {
		return &ConfigError{Field: "MESSAGE_CACHE_CAPACITY", Message: "must be positive"}
	}
	if e.SpamWarnAt <= 0 || e.SpamBlockAt < e.SpamWarnAt {
		return &ConfigError{Field: "SPAM_WARN_AT/SPAM_BLOCK_AT", Message: "block threshold must be at least the warn threshold"}
	}
	if e.TrustPenalty < 0 || e.TrustBlockThreshold < 0 || e.TrustBlockThreshold > domain.InitialTrust {
		return &ConfigError{Field: "TRUST_PENALTY/TRUST_BLOCK_THRESHOLD", Message: "out of range"}
	}
	if e.TypingMax < e.TypingMin {
		return &ConfigError{Field: "TYPING_MIN/TYPING_MAX", Message: "max must not be below min"}
	}
	if e.MediaDir == "" {
		return &ConfigError{Field: "MEDIA_DIR", Message: "required"}
	}
	if e.MediaSweepInterval <= 0 {
		return &ConfigError{Field: "MEDIA_SWEEP_INTERVAL", Message: "must be positive"}
	}
	for _, name := range e.EnabledFeatures {
		if !isKnownFeature(name) {
			return &ConfigError{Field: "ENABLED_FEATURES", Message: "unknown feature " + name}
		}
	}
	return nil
}

func isKnownFeature(name string) bool {
	for _, f := range domain.AllFeatures {
		if string(f) == name {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
