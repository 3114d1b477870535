package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/memorylog"
)

type textSender interface {
	SendText(ctx context.Context, chatID, text string, mentions []string) error
}

// heartbeatNotifier pushes degraded and recovered transitions to the admin
// chats over the live connection.
type heartbeatNotifier struct {
	sender      textSender
	adminChats  []string
	chatLogRoot string
	enabled     bool
	logger      *slog.Logger
	now         func() time.Time
}

func newHeartbeatNotifier(sender textSender, adminChats []string, chatLogRoot string, enabled bool, logger *slog.Logger) *heartbeatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatNotifier{
		sender:      sender,
		adminChats:  adminChats,
		chatLogRoot: strings.TrimSpace(chatLogRoot),
		enabled:     enabled,
		logger:      logger,
		now:         time.Now,
	}
}

func (n *heartbeatNotifier) HandleTransition(ctx context.Context, transition heartbeat.Transition, snapshot heartbeat.Snapshot) {
	if n == nil || n.sender == nil || !n.enabled || len(n.adminChats) == 0 {
		return
	}
	eventType := heartbeatTransitionType(transition)
	if eventType == "" {
		return
	}
	// the connection itself cannot carry news of its own failure
	if strings.HasPrefix(strings.ToLower(transition.Component), "connector:") && eventType == "degraded" {
		return
	}
	text := buildHeartbeatTransitionMessage(eventType, transition, snapshot, n.now().UTC())
	for _, chatID := range n.adminChats {
		sendCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		err := n.sender.SendText(sendCtx, chatID, text, nil)
		cancel()
		if err != nil {
			n.logger.Error("heartbeat notify failed", "chat_id", chatID, "component", transition.Component, "error", err)
			continue
		}
		if err := memorylog.Append(memorylog.Entry{
			Root:      n.chatLogRoot,
			Connector: "whatsapp",
			ChatID:    chatID,
			Direction: "outbound",
			ActorID:   "chat-runtime",
			Text:      text,
			Timestamp: n.now().UTC(),
		}); err != nil {
			n.logger.Error("heartbeat chat log append failed", "chat_id", chatID, "error", err)
		}
	}
}

func heartbeatTransitionType(transition heartbeat.Transition) string {
	fromDegraded := heartbeat.IsDegradedState(transition.FromState)
	toDegraded := heartbeat.IsDegradedState(transition.ToState)
	switch {
	case !fromDegraded && toDegraded:
		return "degraded"
	case fromDegraded && strings.EqualFold(strings.TrimSpace(transition.ToState), heartbeat.StateHealthy):
		return "recovered"
	default:
		return ""
	}
}

func buildHeartbeatTransitionMessage(eventType string, transition heartbeat.Transition, snapshot heartbeat.Snapshot, at time.Time) string {
	title := "*Heartbeat recovered*"
	if eventType == "degraded" {
		title = "*Heartbeat degraded*"
	}
	builder := strings.Builder{}
	builder.WriteString(title)
	builder.WriteString("\n- component: ")
	builder.WriteString(strings.TrimSpace(transition.Component))
	builder.WriteString("\n- state: ")
	builder.WriteString(strings.TrimSpace(transition.FromState))
	builder.WriteString(" -> ")
	builder.WriteString(strings.TrimSpace(transition.ToState))
	builder.WriteString("\n- overall: ")
	builder.WriteString(strings.TrimSpace(snapshot.Overall))
	if detail := strings.TrimSpace(transition.Message); detail != "" {
		builder.WriteString("\n- detail: ")
		builder.WriteString(truncateSingleLine(detail, 500))
	}
	if errorText := strings.TrimSpace(transition.Error); errorText != "" {
		builder.WriteString("\n- error: ")
		builder.WriteString(truncateSingleLine(errorText, 500))
	}
	builder.WriteString("\n- at: ")
	builder.WriteString(at.Format(time.RFC3339))
	return compactLineBreaks(builder.String(), 1400)
}
