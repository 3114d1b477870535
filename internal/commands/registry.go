package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/pipeline"
)

var (
	ErrQueueFull      = errors.New("command queue is full")
	ErrUnknownCommand = errors.New("unknown command")
)

const componentName = "commands"

// Request is what a handler sees for one invocation.
type Request struct {
	RunID     string
	Transport pipeline.Transport
	Event     message.Event
	Context   pipeline.DispatchContext
}

// Reply sends text back to the chat the command came from.
func (r Request) Reply(ctx context.Context, text string, mentions ...string) error {
	if r.Transport == nil {
		return errors.New("reply: transport missing")
	}
	return r.Transport.SendText(ctx, r.Context.ChatID, text, mentions)
}

type Handler func(ctx context.Context, request Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	// GroupOnly commands are ignored in direct chats.
	GroupOnly bool
	Handler   Handler
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Prefix    string
}

type job struct {
	command Command
	request Request
}

// Registry maps command names to handlers and runs them on a bounded pool.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	aliases  map[string]string

	jobs      chan job
	workers   int64
	timeout   time.Duration
	prefix    string
	logger    *slog.Logger
	reporter  heartbeat.Reporter
	startOnce sync.Once
}

func New(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = cfg.Workers * 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Registry{
		commands: map[string]Command{},
		aliases:  map[string]string{},
		jobs:     make(chan job, cfg.QueueSize),
		workers:  int64(cfg.Workers),
		timeout:  cfg.Timeout,
		prefix:   cfg.Prefix,
		logger:   logger,
	}
}

func (r *Registry) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	r.reporter = reporter
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a command. Names and aliases share one namespace.
func (r *Registry) Register(command Command) error {
	name := normalize(command.Name)
	if name == "" {
		return errors.New("command name is required")
	}
	if command.Handler == nil {
		return fmt.Errorf("command %s: handler is required", name)
	}
	command.Name = name
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(name) {
		return fmt.Errorf("command %s already registered", name)
	}
	aliases := make([]string, 0, len(command.Aliases))
	for _, alias := range command.Aliases {
		alias = normalize(alias)
		if alias == "" || alias == name {
			continue
		}
		if r.taken(alias) {
			return fmt.Errorf("command %s: alias %s already registered", name, alias)
		}
		aliases = append(aliases, alias)
	}
	command.Aliases = aliases
	r.commands[name] = command
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	if _, ok := r.commands[name]; ok {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

func (r *Registry) Lookup(name string) (Command, error) {
	key := normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	command, ok := r.commands[key]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, key)
	}
	return command, nil
}

// List returns registered commands sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Command, 0, len(r.commands))
	for _, command := range r.commands {
		items = append(items, command)
	}
	sort.Slice(items, func(left, right int) bool {
		return items[left].Name < items[right].Name
	})
	return items
}

func (r *Registry) Prefix() string {
	return r.prefix
}

// Dispatch queues a command without waiting for it to run. Unknown
// commands are dropped silently.
func (r *Registry) Dispatch(ctx context.Context, transport pipeline.Transport, event message.Event, dispatch pipeline.DispatchContext) error {
	command, err := r.Lookup(dispatch.Command.Name)
	if err != nil {
		r.logger.Debug("command not registered", "command", dispatch.Command.Name, "run_id", dispatch.RunID, "chat_id", dispatch.ChatID)
		return nil
	}
	if command.GroupOnly && !dispatch.IsGroup {
		r.logger.Debug("group command used outside a group", "command", command.Name, "run_id", dispatch.RunID)
		return nil
	}
	item := job{
		command: command,
		request: Request{
			RunID:     dispatch.RunID,
			Transport: transport,
			Event:     event,
			Context:   dispatch,
		},
	}
	select {
	case r.jobs <- item:
		r.logger.Debug("command queued", "command", command.Name, "run_id", dispatch.RunID, "queued", len(r.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs queued commands until ctx ends, then waits for running
// handlers to return.
func (r *Registry) Start(ctx context.Context) error {
	started := false
	r.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("command registry already started")
	}
	if r.reporter != nil {
		r.reporter.Beat(componentName, fmt.Sprintf("%d workers ready", r.workers))
	}
	r.logger.Info("command workers started", "workers", r.workers, "queue_size", cap(r.jobs))

	slots := semaphore.NewWeighted(r.workers)
	defer func() {
		_ = slots.Acquire(context.Background(), r.workers)
		if r.reporter != nil {
			r.reporter.Stopped(componentName, "stopped")
		}
		r.logger.Info("command workers stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-r.jobs:
			if err := slots.Acquire(ctx, 1); err != nil {
				r.logger.Warn("command abandoned at shutdown", "command", item.command.Name, "run_id", item.request.RunID)
				return nil
			}
			go func() {
				defer slots.Release(1)
				r.execute(ctx, item)
			}()
		}
	}
}

func (r *Registry) execute(ctx context.Context, item job) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("command %s panicked: %v", item.command.Name, recovered)
			r.logger.Error("command handler panicked", "error", err, "run_id", item.request.RunID)
			if r.reporter != nil {
				r.reporter.Degrade(componentName, "handler panicked", err)
			}
		}
	}()
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := item.command.Handler(runCtx, item.request); err != nil {
		r.logger.Error("command failed", "error", err, "command", item.command.Name, "run_id", item.request.RunID, "chat_id", item.request.Context.ChatID)
		return
	}
	if r.reporter != nil {
		r.reporter.Beat(componentName, "command completed")
	}
	r.logger.Info("command completed", "command", item.command.Name, "run_id", item.request.RunID, "duration_ms", time.Since(started).Milliseconds())
}
