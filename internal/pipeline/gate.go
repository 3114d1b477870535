package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dwizi/chat-runtime/internal/agenterr"
	"github.com/dwizi/chat-runtime/internal/message"
)

// Predicates are the ban and restriction checks. Implementations may do I/O
// and must be safe for concurrent use.
type Predicates interface {
	IsAuthorBanned(ctx context.Context, author string) (bool, error)
	IsChatBanned(ctx context.Context, chatID string) (bool, error)
	IsAdminOnly(ctx context.Context, chatID string) (bool, error)
	IsAntiLinkActive(ctx context.Context, chatID string) (bool, error)
	IsAntiBotActive(ctx context.Context, chatID string) (bool, error)
}

// Registry receives permitted commands. Dispatch must not wait for the
// command to finish.
type Registry interface {
	Dispatch(ctx context.Context, transport Transport, event message.Event, dispatch DispatchContext) error
}

// DispatchContext is built once per event and read-only afterward.
type DispatchContext struct {
	RunID        string
	ChatID       string
	Author       string
	DisplayName  string
	Command      Command
	IsGroup      bool
	GroupSubject string
	// AuthorIsAdmin is only meaningful for groups whose metadata resolved.
	AuthorIsAdmin bool
	FromMe        bool
	Text          string
}

// Args returns the parsed argument list.
func (d DispatchContext) Args() []string {
	return d.Command.Args
}

type Decision struct {
	Allowed bool
	Reason  error
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason error) Decision {
	return Decision{Reason: reason}
}

var linkPattern = regexp.MustCompile(`(?i)(https?://|www\.|chat\.whatsapp\.com/)\S+`)

// Gate decides whether a parsed command reaches the registry.
//
// Checks run in a fixed order and stop at the first denial:
//  1. author ban (fail-closed)
//  2. chat ban, groups only (fail-closed)
//  3. anti-bot, only when the event id looks bot-generated (fail-open)
//  4. anti-link, only when the text carries a link (fail-open)
//  5. admin-only, groups only (fail-open)
//
// The local shape tests in 3 and 4 run before their predicate is queried.
type Gate struct {
	predicates Predicates
	registry   Registry
	logger     *slog.Logger
}

func NewGate(predicates Predicates, registry Registry, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		predicates: predicates,
		registry:   registry,
		logger:     logger,
	}
}

func (g *Gate) Check(ctx context.Context, event message.Event, dispatch DispatchContext) Decision {
	if g.predicates == nil {
		return allow()
	}
	if banned, err := g.predicates.IsAuthorBanned(ctx, dispatch.Author); err != nil {
		g.logger.Warn("author ban check failed, denying", "error", err, "author", dispatch.Author)
		return deny(fmt.Errorf("%w: %w", agenterr.ErrPredicateUnavailable, agenterr.ErrAuthorBanned))
	} else if banned {
		return deny(agenterr.ErrAuthorBanned)
	}
	if dispatch.IsGroup {
		if banned, err := g.predicates.IsChatBanned(ctx, dispatch.ChatID); err != nil {
			g.logger.Warn("chat ban check failed, denying", "error", err, "chat_id", dispatch.ChatID)
			return deny(fmt.Errorf("%w: %w", agenterr.ErrPredicateUnavailable, agenterr.ErrChatBanned))
		} else if banned {
			return deny(agenterr.ErrChatBanned)
		}
	}
	if !dispatch.FromMe && looksBotGenerated(event.Key.ID) {
		if g.toggle(ctx, "anti-bot", dispatch.ChatID, g.predicates.IsAntiBotActive) {
			return deny(agenterr.ErrAntiBot)
		}
	}
	if !dispatch.FromMe && linkPattern.MatchString(dispatch.Text) {
		if g.toggle(ctx, "anti-link", dispatch.ChatID, g.predicates.IsAntiLinkActive) {
			return deny(agenterr.ErrAntiLink)
		}
	}
	if dispatch.IsGroup && !dispatch.FromMe && !dispatch.AuthorIsAdmin {
		if g.toggle(ctx, "admin-only", dispatch.ChatID, g.predicates.IsAdminOnly) {
			return deny(agenterr.ErrAdminOnly)
		}
	}
	return allow()
}

// Dispatch checks the command and hands it to the registry when permitted.
func (g *Gate) Dispatch(ctx context.Context, transport Transport, event message.Event, dispatch DispatchContext) (Decision, error) {
	decision := g.Check(ctx, event, dispatch)
	if !decision.Allowed {
		return decision, nil
	}
	if g.registry == nil {
		return decision, errors.New("command registry missing")
	}
	if err := g.registry.Dispatch(ctx, transport, event, dispatch); err != nil {
		return decision, fmt.Errorf("dispatch %s: %w", dispatch.Command.Name, err)
	}
	return decision, nil
}

// toggle evaluates a feature predicate, treating failures as inactive.
func (g *Gate) toggle(ctx context.Context, name, chatID string, check func(context.Context, string) (bool, error)) bool {
	active, err := check(ctx, chatID)
	if err != nil {
		g.logger.Warn("predicate check failed, ignoring", "predicate", name, "error", err, "chat_id", chatID)
		return false
	}
	return active
}

// looksBotGenerated matches message ids minted by common automation
// libraries rather than official clients.
func looksBotGenerated(messageID string) bool {
	id := strings.TrimSpace(messageID)
	if strings.HasPrefix(id, "BAE5") && len(id) == 16 {
		return true
	}
	return strings.HasPrefix(id, "3EB0") && len(id) == 12
}
