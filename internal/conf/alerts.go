package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AlertsConfig contains every notification template loaded from YAML.
// Templates use {name} placeholders.
type AlertsConfig struct {
	Owner OwnerAlerts `yaml:"owner"`
	Chat  ChatAlerts  `yaml:"chat"`
}

// OwnerAlerts are sent to the notify target
type OwnerAlerts struct {
	Deleted         string `yaml:"deleted"`
	Edited          string `yaml:"edited"`
	CallDeclined    string `yaml:"call_declined"`
	DeletedStatus   string `yaml:"deleted_status"`
	SpamBlocked     string `yaml:"spam_blocked"`
	SuspiciousBlock string `yaml:"suspicious_blocked"`
	BotDemoted      string `yaml:"bot_demoted"`
	ViewOnceSaved   string `yaml:"view_once_saved"`
	ChatbotDisabled string `yaml:"chatbot_disabled"`
}

// ChatAlerts are posted in the chat where the event happened
type ChatAlerts struct {
	SpamWarning     string `yaml:"spam_warning"`
	DeleteNotice    string `yaml:"delete_notice"`
	LinkRemoved     string `yaml:"link_removed"`
	ChatbotFallback string `yaml:"chatbot_fallback"`
}

// LoadAlertsConfig loads alert templates from YAML file
func LoadAlertsConfig(configPath string) (*AlertsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/alerts.yaml",
			"/etc/chatguard/alerts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "alerts.yaml"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(homeDir, ".chatguard", "alerts.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read alerts config %s", configPath)
		}
		return DefaultAlertsConfig(), nil
	}

	var config AlertsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse alerts.yaml: %w", err)
	}

	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *AlertsConfig) fillDefaults() {
	d := DefaultAlertsConfig()

	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}

	fill(&c.Owner.Deleted, d.Owner.Deleted)
	fill(&c.Owner.Edited, d.Owner.Edited)
	fill(&c.Owner.CallDeclined, d.Owner.CallDeclined)
	fill(&c.Owner.DeletedStatus, d.Owner.DeletedStatus)
	fill(&c.Owner.SpamBlocked, d.Owner.SpamBlocked)
	fill(&c.Owner.SuspiciousBlock, d.Owner.SuspiciousBlock)
	fill(&c.Owner.BotDemoted, d.Owner.BotDemoted)
	fill(&c.Owner.ViewOnceSaved, d.Owner.ViewOnceSaved)
	fill(&c.Owner.ChatbotDisabled, d.Owner.ChatbotDisabled)

	fill(&c.Chat.SpamWarning, d.Chat.SpamWarning)
	fill(&c.Chat.DeleteNotice, d.Chat.DeleteNotice)
	fill(&c.Chat.LinkRemoved, d.Chat.LinkRemoved)
	fill(&c.Chat.ChatbotFallback, d.Chat.ChatbotFallback)
}

// Render replaces {key} placeholders in tmpl. Unknown placeholders are kept.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// DefaultAlertsConfig returns the built-in alert templates
func DefaultAlertsConfig() *AlertsConfig {
	return &AlertsConfig{
		Owner: OwnerAlerts{
			Deleted: `🚨 *MESSAGE DELETED* 🚨
━━━━━━━━━━━━━━━━━━━━
👤 *Deleted By:* {deleter}
💬 *Content:* {content}
📱 *Chat:* {chat}
⏰ *Time:* {time}`,
			Edited: `🚨 *MESSAGE EDITED* 🚨
━━━━━━━━━━━━━━━━━━━━
👤 *Edited By:* {editor}
📝 *Original:* {original}
✏️ *Edited:* {edited}
📱 *Chat:* {chat}
⏰ *Time:* {time}`,
			CallDeclined: `📞 *CALL DECLINED*

👤 From: {from}
⏰ Time: {time}`,
			DeletedStatus: `🗑️ *DELETED STATUS*

💬 Content: {content}
⏰ Time: {time}`,
			SpamBlocked: `🚫 *AUTO-BLOCKED SPAMMER*

👤 User: {user}
📊 Messages: {count}
🛡️ Reason: Spam detection
🔒 Action: {action}`,
			SuspiciousBlock: `🚨 *AUTO-BLOCKED SUSPICIOUS USER*

👤 User: {user}
🛡️ Reason: Suspicious activity detected
🔒 Action: {action}`,
			BotDemoted: `⚠️ *BOT DEMOTED*

🏷️ Group: {group}
🔧 Action: Bot was demoted from admin`,
			ViewOnceSaved: `👀 *VIEW-ONCE MEDIA SAVED*

📁 Type: {kind}
👤 From: {from}
💬 Chat: {chat}
⏰ Time: {time}`,
			ChatbotDisabled: "🤖 Chatbot has been automatically disabled.",
		},
		Chat: ChatAlerts{
			SpamWarning:     "⚠️ *SPAM DETECTED*\nPlease slow down your messages!",
			DeleteNotice:    "⚠️ @{deleter} deleted a message!",
			LinkRemoved:     "🔗 @{user} was removed for sharing a link.",
			ChatbotFallback: "🎯 Having some technical difficulties. Let's try that again!",
		},
	}
}
