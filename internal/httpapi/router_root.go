package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/chat-runtime/internal/commands"
	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/store"
)

type Journal interface {
	Ping(ctx context.Context) error
	ListPipelineRuns(ctx context.Context, input store.ListPipelineRunsInput) ([]store.PipelineRun, error)
}

type CommandCatalog interface {
	List() []commands.Command
}

type TransportStatus interface {
	Connected() bool
	SelfJID() string
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Journal             Journal
	Commands            CommandCatalog
	Transport           TransportStatus
	MCP                 http.Handler
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/runs", rt.handleRuns)
	mux.HandleFunc("/api/v1/commands", rt.handleCommands)
	mux.HandleFunc("/api/v1/classify", rt.handleClassify)
	if deps.MCP != nil {
		mux.Handle("/mcp", deps.MCP)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
