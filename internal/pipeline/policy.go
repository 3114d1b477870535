package pipeline

import (
	"context"
	"fmt"

	"github.com/dwizi/chat-runtime/internal/message"
)

// Settings is the read-only configuration consulted per event.
type Settings struct {
	Prefix       string
	AutoRead     bool
	PresenceMode int
	AntiDelete   bool
}

// PresenceFor translates the configured numeric mode.
func PresenceFor(mode int) message.Presence {
	switch mode {
	case 1:
		return message.PresenceAvailable
	case 2:
		return message.PresenceComposing
	case 3:
		return message.PresenceRecording
	default:
		return message.PresenceUnavailable
	}
}

type ActionKind string

const (
	ActionMarkRead ActionKind = "mark_read"
	ActionPresence ActionKind = "presence"
	ActionSendText ActionKind = "send_text"
)

// Action is an outbound side effect requested by the policy.
type Action struct {
	Kind     ActionKind
	ChatID   string
	Keys     []message.Key
	Presence message.Presence
	Text     string
	Mentions []string
}

// Perform executes the action against the transport.
func (a Action) Perform(ctx context.Context, transport Transport) error {
	if transport == nil {
		return fmt.Errorf("perform %s: transport missing", a.Kind)
	}
	switch a.Kind {
	case ActionMarkRead:
		return transport.MarkRead(ctx, a.Keys)
	case ActionPresence:
		return transport.UpdatePresence(ctx, a.ChatID, a.Presence)
	case ActionSendText:
		return transport.SendText(ctx, a.ChatID, a.Text, a.Mentions)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// SideEffectPolicy decides which advisory actions an event triggers.
type SideEffectPolicy struct {
	resolver IdentityResolver
}

func NewSideEffectPolicy(resolver IdentityResolver) SideEffectPolicy {
	return SideEffectPolicy{resolver: resolver}
}

func (p SideEffectPolicy) Evaluate(event message.Event, kind message.Kind, settings Settings) []Action {
	chatID := event.Key.RemoteJID
	actions := make([]Action, 0, 3)
	if settings.AutoRead && !event.Key.FromMe {
		actions = append(actions, Action{
			Kind:   ActionMarkRead,
			ChatID: chatID,
			Keys:   []message.Key{event.Key},
		})
	}
	actions = append(actions, Action{
		Kind:     ActionPresence,
		ChatID:   chatID,
		Presence: PresenceFor(settings.PresenceMode),
	})
	if settings.AntiDelete && kind == message.KindProtocolDelete {
		if notice, ok := p.antiDeleteNotice(event); ok {
			actions = append(actions, notice)
		}
	}
	return actions
}

// antiDeleteNotice names the participant recorded in the revoke marker's
// own key; the outer envelope author is not the deleter.
func (p SideEffectPolicy) antiDeleteNotice(event message.Event) (Action, bool) {
	if event.Message == nil || event.Message.ProtocolMessage == nil {
		return Action{}, false
	}
	deletedKey := event.Message.ProtocolMessage.Key
	if deletedKey == nil || deletedKey.Participant == "" {
		return Action{}, false
	}
	deleter := p.resolver.Resolve(deletedKey.Participant)
	return Action{
		Kind:     ActionSendText,
		ChatID:   event.Key.RemoteJID,
		Text:     fmt.Sprintf("Anti-delete: A message was deleted by @%s", message.UserPart(deleter)),
		Mentions: []string{deleter},
	}, true
}
