package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dwizi/chat-runtime/internal/commands"
	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/connectors"
	"github.com/dwizi/chat-runtime/internal/connectors/whatsapp"
	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/httpapi"
	"github.com/dwizi/chat-runtime/internal/mcp"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
	"github.com/dwizi/chat-runtime/internal/scheduler"
	"github.com/dwizi/chat-runtime/internal/store"
	"github.com/dwizi/chat-runtime/internal/watcher"
)

func New(cfg config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ChatLogRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create chat log root: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	registry := heartbeat.NewRegistry()
	events := make(chan message.Event, cfg.EventBufferSize)
	connector := whatsapp.New(
		cfg.BridgeURL,
		cfg.BridgeToken,
		events,
		logger.With("component", "connector-whatsapp"),
		whatsapp.WithRequestTimeout(cfg.BridgeRequestTimeout()),
	)

	commandRegistry := commands.New(commands.Config{
		Workers:   cfg.CommandWorkers,
		QueueSize: cfg.CommandQueueSize,
		Timeout:   cfg.CommandTimeout(),
		Prefix:    cfg.Prefix,
	}, logger.With("component", "commands"))
	if err := commands.RegisterBuiltins(commandRegistry); err != nil {
		sqlStore.Close()
		return nil, err
	}

	predicateSource, predicateFile, err := buildPredicates(cfg, logger.With("component", "predicates"))
	if err != nil {
		sqlStore.Close()
		return nil, err
	}
	var fileWatcher *watcher.Service
	if predicateFile != nil {
		fileWatcher, err = watcher.New([]string{predicateFile.Path()}, logger.With("component", "watcher"), func(ctx context.Context, path string) {
			if err := predicateFile.Reload(); err != nil {
				logger.Error("predicates reload failed", "error", err, "path", path)
			}
		})
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	gate := pipeline.NewGate(predicateSource, commandRegistry, logger.With("component", "gate"))
	eventPipeline := pipeline.New(
		connector,
		connector,
		gate,
		cfg.PipelineSettings(),
		logger.With("component", "pipeline"),
		pipeline.WithJournal(sqlStore),
		pipeline.WithChatLog(cfg.ChatLogRoot),
		pipeline.WithActionTimeout(cfg.ActionTimeout()),
	)

	pruner, err := scheduler.New(sqlStore, cfg.JournalPruneSchedule, cfg.JournalRetention(), logger.With("component", "scheduler"))
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	mcpServer := mcp.NewServer(mcp.ServerConfig{
		Version: version,
		Prefix:  cfg.Prefix,
		Runs:    sqlStore,
		Catalog: commandRegistry,
	})
	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Version:             version,
		Journal:             sqlStore,
		Commands:            commandRegistry,
		Transport:           connector,
		MCP:                 mcp.NewHandler(mcpServer),
		Logger:              logger.With("component", "http"),
		Heartbeat:           registry,
		HeartbeatStaleAfter: staleAfter,
	})

	notifier := newHeartbeatNotifier(connector, parseCSVTrimList(cfg.AdminChatsCSV), cfg.ChatLogRoot, cfg.HeartbeatNotifyAdmin, logger.With("component", "heartbeat-notifier"))
	monitor := heartbeat.NewMonitor(registry, heartbeat.MonitorConfig{
		Interval:     time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		StaleAfter:   staleAfter,
		Logger:       logger.With("component", "heartbeat"),
		OnTransition: notifier.HandleTransition,
	})

	runtime := &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      sqlStore,
		events:     events,
		connector:  connector,
		connectors: []connectors.Connector{connector},
		pipeline:   eventPipeline,
		commands:   commandRegistry,
		watcher:    fileWatcher,
		scheduler:  pruner,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		heartbeat:        registry,
		heartbeatMonitor: monitor,
	}
	for _, component := range []heartbeatAware{connector, eventPipeline, commandRegistry, pruner} {
		component.SetHeartbeatReporter(registry)
	}
	if fileWatcher != nil {
		fileWatcher.SetHeartbeatReporter(registry)
	}
	return runtime, nil
}
