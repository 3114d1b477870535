package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/chat-runtime/internal/commands"
	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/connectors"
	"github.com/dwizi/chat-runtime/internal/connectors/whatsapp"
	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
	"github.com/dwizi/chat-runtime/internal/scheduler"
	"github.com/dwizi/chat-runtime/internal/store"
	"github.com/dwizi/chat-runtime/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	events           chan message.Event
	connector        *whatsapp.Connector
	connectors       []connectors.Connector
	pipeline         *pipeline.Pipeline
	commands         *commands.Registry
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	httpServer       *http.Server
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
