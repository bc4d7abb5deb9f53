package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the process configuration for alphabot. The chat-editable bot
// settings live in their own document (see internal/settings).
type Config struct {
	General  GeneralConfig  `json:"general"`
	Settings SettingsConfig `json:"settings"`
	Feedback FeedbackConfig `json:"feedback"`
	Policy   PolicyConfig   `json:"policy"`
	Bridge   BridgeConfig   `json:"bridge"`
	Telegram TelegramConfig `json:"telegram"`
	Console  ConsoleConfig  `json:"console"`
	Admin    AdminConfig    `json:"admin"`
}

type GeneralConfig struct {
	LogLevel            string `json:"logLevel"`
	LogFormat           string `json:"logFormat"` // "text" | "json"
	LogFile             string `json:"logFile,omitempty"`
	MaxConcurrentEvents int    `json:"maxConcurrentEvents"`
	NotifyDelayMs       int    `json:"notifyDelayMs"` // delay before the connect notification
	DedupTTLSeconds     int    `json:"dedupTtlSeconds"`
	RepoURL             string `json:"repoUrl,omitempty"` // reply to the repo command
}

// SettingsConfig locates the bot settings document.
type SettingsConfig struct {
	Path          string         `json:"path"` // .json, .yaml or .yml
	Watch         bool           `json:"watch"`
	DefaultOwners FlexStringList `json:"defaultOwners,omitempty"` // first-run owners; built-in list when empty
}

type FeedbackConfig struct {
	Path string `json:"path"`
}

type PolicyConfig struct {
	ExtraLinkPatterns []string `json:"extraLinkPatterns,omitempty"`
	// Pacing of kickall/promoteall per-participant actions.
	ModerationPerMinute int `json:"moderationPerMinute"`
	ModerationBurst     int `json:"moderationBurst"`
}

// BridgeConfig connects to the external WhatsApp client over a websocket.
type BridgeConfig struct {
	Enabled          bool   `json:"enabled"`
	URL              string `json:"url"`
	Token            string `json:"token,omitempty"`
	ReconnectSeconds int    `json:"reconnectSeconds"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["254701", 254702] both become strings).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, n.String())
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type ConsoleConfig struct {
	Enabled bool `json:"enabled"`
	// Sender identity used for typed messages until changed with /as.
	SenderID string `json:"senderId,omitempty"`
}

// AdminConfig configures the local admin HTTP API.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Token         string `json:"token,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.alphabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alphabot"
	}
	return filepath.Join(home, ".alphabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Settings.Path = ExpandPath(cfg.Settings.Path)
	cfg.Feedback.Path = ExpandPath(cfg.Feedback.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(cfg.General.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if cfg.General.MaxConcurrentEvents < 1 || cfg.General.MaxConcurrentEvents > 100 {
		errs = append(errs, "general.maxConcurrentEvents must be between 1 and 100")
	}
	if cfg.General.NotifyDelayMs < 0 {
		errs = append(errs, "general.notifyDelayMs must be >= 0")
	}
	if cfg.General.DedupTTLSeconds < 1 {
		errs = append(errs, "general.dedupTtlSeconds must be >= 1")
	}

	if cfg.Settings.Path == "" {
		errs = append(errs, "settings.path is required")
	}
	if cfg.Feedback.Path == "" {
		errs = append(errs, "feedback.path is required")
	}
	for _, p := range cfg.Policy.ExtraLinkPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("policy.extraLinkPatterns: invalid pattern %q", p))
		}
	}
	if cfg.Policy.ModerationPerMinute < 1 {
		errs = append(errs, "policy.moderationPerMinute must be >= 1")
	}
	if cfg.Policy.ModerationBurst < 1 {
		errs = append(errs, "policy.moderationBurst must be >= 1")
	}

	if cfg.Bridge.Enabled {
		if !strings.HasPrefix(cfg.Bridge.URL, "ws://") && !strings.HasPrefix(cfg.Bridge.URL, "wss://") {
			errs = append(errs, "bridge.url must start with ws:// or wss://")
		}
		if cfg.Bridge.ReconnectSeconds < 1 {
			errs = append(errs, "bridge.reconnectSeconds must be >= 1")
		}
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required when telegram is enabled")
	}
	if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
		errs = append(errs, "admin.port must be between 0 and 65535")
	}
	if cfg.Admin.Enabled && !cfg.Admin.Authenticated() && !cfg.Admin.Loopback() {
		errs = append(errs, "admin.token or admin.webhookSecret is required when admin.host is not a loopback address")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Loopback reports whether the admin API only listens on a loopback address.
func (a AdminConfig) Loopback() bool {
	if strings.EqualFold(a.Host, "localhost") {
		return true
	}
	ip := net.ParseIP(a.Host)
	return ip != nil && ip.IsLoopback()
}

// Authenticated reports whether admin requests must carry a credential.
func (a AdminConfig) Authenticated() bool {
	return a.Token != "" || a.WebhookSecret != ""
}

// Addr returns the host:port the admin API listens on.
func (a AdminConfig) Addr() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}
