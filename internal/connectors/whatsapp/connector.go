package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/message"
)

const componentName = "connector:whatsapp"

var ErrNotConnected = errors.New("whatsapp bridge not connected")

// Connector keeps a session with the WhatsApp bridge, feeds inbound
// envelopes to the pipeline, and carries outbound actions back.
type Connector struct {
	url            string
	token          string
	requestTimeout time.Duration
	reconnectDelay time.Duration
	events         chan<- message.Event
	logger         *slog.Logger
	reporter       heartbeat.Reporter

	mu      sync.RWMutex
	current *session
	self    string
}

type Option func(*Connector)

func WithRequestTimeout(timeout time.Duration) Option {
	return func(connector *Connector) {
		if timeout > 0 {
			connector.requestTimeout = timeout
		}
	}
}

func WithReconnectDelay(delay time.Duration) Option {
	return func(connector *Connector) {
		if delay > 0 {
			connector.reconnectDelay = delay
		}
	}
}

func New(url, token string, events chan<- message.Event, logger *slog.Logger, opts ...Option) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		url:            strings.TrimSpace(url),
		token:          strings.TrimSpace(token),
		requestTimeout: 10 * time.Second,
		reconnectDelay: 2 * time.Second,
		events:         events,
		logger:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "whatsapp"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// Connected reports whether a bridge session is established.
func (c *Connector) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// SelfJID is the account address announced by the bridge, or "" before the
// first connection update.
func (c *Connector) SelfJID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// DecodeJID splits an address into its parts.
func (c *Connector) DecodeJID(jid string) (message.JID, error) {
	return message.ParseJID(jid)
}

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.url == "" {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "bridge url missing")
		}
		c.logger.Info("connector disabled, bridge url missing")
		<-ctx.Done()
		return nil
	}
	if c.events == nil {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "event sink missing")
		}
		c.logger.Info("connector disabled, event sink missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "bridge", c.url)
	for {
		if ctx.Err() != nil {
			return c.stopped()
		}
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return c.stopped()
		}
		if c.reporter != nil {
			c.reporter.Degrade(componentName, "bridge session error", err)
		}
		c.logger.Error("bridge session ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return c.stopped()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Connector) stopped() error {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) session() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, ErrNotConnected
	}
	return c.current, nil
}

func (c *Connector) attach(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s
}

func (c *Connector) detach(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
	}
}

func (c *Connector) setSelf(jid string) {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = jid
}
