package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/chat-runtime/internal/pipeline"
)

type Config struct {
	Environment          string
	HTTPAddr             string
	DataDir              string
	DBPath               string
	ChatLogRoot          string
	HeartbeatIntervalSec int
	HeartbeatStaleSec    int
	HeartbeatNotifyAdmin bool
	AdminChatsCSV        string

	Prefix       string
	AutoRead     bool
	PresenceMode int
	AntiDelete   bool

	BridgeURL               string
	BridgeToken             string
	BridgeRequestTimeoutSec int

	PredicatesFile       string
	PredicatesURL        string
	PredicatesToken      string
	PredicatesTimeoutSec int

	CommandWorkers       int
	CommandQueueSize     int
	CommandTimeoutSec    int
	JournalRetentionDays int
	JournalPruneSchedule string
	EventBufferSize      int
	ActionTimeoutSec     int
}

func FromEnv() Config {
	dataDir := stringOrDefault("CHAT_RUNTIME_DATA_DIR", "/data")

	return Config{
		Environment:          stringOrDefault("CHAT_RUNTIME_ENV", "development"),
		HTTPAddr:             stringOrDefault("CHAT_RUNTIME_HTTP_ADDR", ":8080"),
		DataDir:              dataDir,
		DBPath:               stringOrDefault("CHAT_RUNTIME_DB_PATH", filepath.Join(dataDir, "chat-runtime", "meta.sqlite")),
		ChatLogRoot:          stringOrDefault("CHAT_RUNTIME_CHATLOG_ROOT", filepath.Join(dataDir, "chatlogs")),
		HeartbeatIntervalSec: intOrDefault("CHAT_RUNTIME_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("CHAT_RUNTIME_HEARTBEAT_STALE_SECONDS", 120),
		HeartbeatNotifyAdmin: boolOrDefault("CHAT_RUNTIME_HEARTBEAT_NOTIFY_ADMIN", true),
		AdminChatsCSV:        strings.TrimSpace(os.Getenv("CHAT_RUNTIME_ADMIN_CHATS")),

		Prefix:       prefixOrDefault("CHAT_RUNTIME_PREFIX", "."),
		AutoRead:     boolOrDefault("CHAT_RUNTIME_AUTO_READ_MESSAGES", false),
		PresenceMode: rangeOrDefault("CHAT_RUNTIME_PRESENCE_MODE", 0, 0, 3),
		AntiDelete:   boolOrDefault("CHAT_RUNTIME_ANTI_DELETE", false),

		BridgeURL:               stringOrDefault("CHAT_RUNTIME_BRIDGE_URL", "ws://127.0.0.1:8787/ws"),
		BridgeToken:             strings.TrimSpace(os.Getenv("CHAT_RUNTIME_BRIDGE_TOKEN")),
		BridgeRequestTimeoutSec: intOrDefault("CHAT_RUNTIME_BRIDGE_REQUEST_TIMEOUT_SECONDS", 10),

		PredicatesFile:       stringOrDefault("CHAT_RUNTIME_PREDICATES_FILE", filepath.Join(dataDir, "predicates.yaml")),
		PredicatesURL:        strings.TrimSpace(os.Getenv("CHAT_RUNTIME_PREDICATES_URL")),
		PredicatesToken:      strings.TrimSpace(os.Getenv("CHAT_RUNTIME_PREDICATES_TOKEN")),
		PredicatesTimeoutSec: intOrDefault("CHAT_RUNTIME_PREDICATES_TIMEOUT_SECONDS", 5),

		CommandWorkers:       intOrDefault("CHAT_RUNTIME_COMMAND_WORKERS", 4),
		CommandQueueSize:     intOrDefault("CHAT_RUNTIME_COMMAND_QUEUE_SIZE", 200),
		CommandTimeoutSec:    intOrDefault("CHAT_RUNTIME_COMMAND_TIMEOUT_SECONDS", 30),
		JournalRetentionDays: intOrDefault("CHAT_RUNTIME_JOURNAL_RETENTION_DAYS", 14),
		JournalPruneSchedule: stringOrDefault("CHAT_RUNTIME_JOURNAL_PRUNE_SCHEDULE", "0 3 * * *"),
		EventBufferSize:      intOrDefault("CHAT_RUNTIME_EVENT_BUFFER_SIZE", 256),
		ActionTimeoutSec:     intOrDefault("CHAT_RUNTIME_ACTION_TIMEOUT_SECONDS", 15),
	}
}

// PipelineSettings is the per-event view handed to the pipeline.
func (c Config) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		Prefix:       c.Prefix,
		AutoRead:     c.AutoRead,
		PresenceMode: c.PresenceMode,
		AntiDelete:   c.AntiDelete,
	}
}

func (c Config) JournalRetention() time.Duration {
	return time.Duration(c.JournalRetentionDays) * 24 * time.Hour
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func (c Config) BridgeRequestTimeout() time.Duration {
	return seconds(c.BridgeRequestTimeoutSec)
}

func (c Config) PredicatesTimeout() time.Duration {
	return seconds(c.PredicatesTimeoutSec)
}

func (c Config) CommandTimeout() time.Duration {
	return seconds(c.CommandTimeoutSec)
}

func (c Config) ActionTimeout() time.Duration {
	return seconds(c.ActionTimeoutSec)
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

// prefixOrDefault keeps the raw value: a prefix may be whitespace-sensitive.
func prefixOrDefault(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func rangeOrDefault(name string, fallback, low, high int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < low || parsed > high {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
