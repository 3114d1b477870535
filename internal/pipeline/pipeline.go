package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
	"github.com/dwizi/chat-runtime/internal/memorylog"
	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/store"
)

const connectorName = "whatsapp"

// Transport is the outbound surface of the messaging connection.
type Transport interface {
	MarkRead(ctx context.Context, keys []message.Key) error
	SendText(ctx context.Context, chatID, text string, mentions []string) error
	UpdatePresence(ctx context.Context, chatID string, presence message.Presence) error
	GroupMetadata(ctx context.Context, chatID string) (message.GroupMetadata, error)
	SelfJID() string
}

type Journal interface {
	RecordPipelineRun(ctx context.Context, input store.RecordPipelineRunInput) (store.PipelineRun, error)
}

type State string

const (
	StateReceived      State = "received"
	StateClassified    State = "classified"
	StatePolicyApplied State = "policy_applied"
	StateTokenized     State = "tokenized"
	StateDispatched    State = "dispatched"
	StateDropped       State = "dropped"
	StateDone          State = "done"
)

type Outcome string

const (
	OutcomeIgnored    Outcome = "ignored"
	OutcomeDropped    Outcome = "dropped"
	OutcomeDenied     Outcome = "denied"
	OutcomeDispatched Outcome = "dispatched"
	OutcomeFailed     Outcome = "failed"
)

// Result describes one finished run.
type Result struct {
	RunID   string
	Trace   []State
	Kind    message.Kind
	Text    string
	Command *Command
	Outcome Outcome
	Err     error
}

func (r *Result) enter(state State) {
	r.Trace = append(r.Trace, state)
}

func (r *Result) State() State {
	if len(r.Trace) == 0 {
		return ""
	}
	return r.Trace[len(r.Trace)-1]
}

type Pipeline struct {
	transport     Transport
	resolver      IdentityResolver
	policy        policyEvaluator
	gate          *Gate
	settings      Settings
	journal       Journal
	chatLogRoot   string
	actionTimeout time.Duration
	logger        *slog.Logger
	reporter      heartbeat.Reporter
	inflight      sync.WaitGroup
}

type policyEvaluator interface {
	Evaluate(event message.Event, kind message.Kind, settings Settings) []Action
}

type Option func(*Pipeline)

func WithJournal(journal Journal) Option {
	return func(p *Pipeline) {
		p.journal = journal
	}
}

func WithChatLog(root string) Option {
	return func(p *Pipeline) {
		p.chatLogRoot = strings.TrimSpace(root)
	}
}

func WithActionTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		if timeout > 0 {
			p.actionTimeout = timeout
		}
	}
}

func New(transport Transport, decoder JIDDecoder, gate *Gate, settings Settings, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := NewIdentityResolver(decoder)
	p := &Pipeline{
		transport:     transport,
		resolver:      resolver,
		policy:        NewSideEffectPolicy(resolver),
		gate:          gate,
		settings:      settings,
		actionTimeout: 15 * time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Pipeline) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	p.reporter = reporter
}

// Run consumes the transport feed until the channel closes or ctx ends.
// Every event is handled on its own goroutine so intake never waits on a
// run. In-flight runs are drained before Run returns.
func (p *Pipeline) Run(ctx context.Context, events <-chan message.Event) error {
	if p.reporter != nil {
		p.reporter.Beat("pipeline", "accepting events")
	}
	defer p.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			p.Submit(ctx, event)
		}
	}
}

// Submit starts an independent run for one event and returns immediately.
func (p *Pipeline) Submit(ctx context.Context, event message.Event) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.Handle(ctx, event)
	}()
}

// Wait blocks until submitted runs have finished.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Handle runs one event through the pipeline. Outbound actions and command
// execution continue after it returns.
func (p *Pipeline) Handle(ctx context.Context, event message.Event) (result Result) {
	result = Result{RunID: uuid.NewString(), Kind: message.KindUnsupported}
	var author string
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Err = fmt.Errorf("pipeline: panic in %s: %v", result.State(), recovered)
			result.Outcome = OutcomeFailed
			p.logger.Error(
				"pipeline run failed",
				"error", result.Err,
				"run_id", result.RunID,
				"event_id", event.Key.ID,
				"chat_id", event.Key.RemoteJID,
				"participant", event.Key.Participant,
				"kind", result.Kind.String(),
			)
		}
		result.enter(StateDone)
		p.record(ctx, event, author, result)
	}()

	result.enter(StateReceived)
	if event.Message == nil {
		result.Outcome = OutcomeIgnored
		return result
	}

	chatID := event.Key.RemoteJID
	isGroup := message.IsGroupJID(chatID)
	author = p.author(event, isGroup)
	kind, text := Classify(event.Message)
	result.Kind, result.Text = kind, text
	result.enter(StateClassified)
	p.logger.Debug(
		"event classified",
		"run_id", result.RunID,
		"event_id", event.Key.ID,
		"chat_id", chatID,
		"author", author,
		"push_name", event.PushName,
		"kind", kind.String(),
		"unknown_variants", strings.Join(event.Message.Unknown, ","),
	)
	p.logInbound(event, author, text)

	p.applyPolicy(ctx, result.RunID, event, kind)
	result.enter(StatePolicyApplied)

	command, ok := Tokenize(text, p.settings.Prefix)
	result.enter(StateTokenized)
	if !ok {
		result.Outcome = OutcomeDropped
		result.enter(StateDropped)
		return result
	}
	result.Command = &command

	dispatch := p.dispatchContext(ctx, result.RunID, event, author, isGroup, command, text)
	result.enter(StateDispatched)
	if p.gate == nil {
		result.Outcome = OutcomeFailed
		result.Err = fmt.Errorf("dispatch gate missing")
		return result
	}
	decision, err := p.gate.Dispatch(ctx, p.transport, event, dispatch)
	switch {
	case !decision.Allowed:
		result.Outcome = OutcomeDenied
		result.Err = decision.Reason
		p.logger.Info("command denied", "run_id", result.RunID, "command", command.Name, "chat_id", chatID, "author", author, "reason", decision.Reason)
	case err != nil:
		result.Outcome = OutcomeFailed
		result.Err = err
		p.logger.Error("command dispatch failed", "error", err, "run_id", result.RunID, "command", command.Name, "chat_id", chatID)
	default:
		result.Outcome = OutcomeDispatched
		p.logger.Info("command dispatched", "run_id", result.RunID, "command", command.Name, "args", len(command.Args), "chat_id", chatID, "author", author)
	}
	return result
}

func (p *Pipeline) author(event message.Event, isGroup bool) string {
	switch {
	case event.Key.FromMe && p.transport != nil:
		return p.resolver.Resolve(p.transport.SelfJID())
	case isGroup:
		return p.resolver.Resolve(event.Key.Participant)
	default:
		return p.resolver.Resolve(event.Key.RemoteJID)
	}
}

// applyPolicy fires the advisory actions. Nothing in here may stop the run.
func (p *Pipeline) applyPolicy(ctx context.Context, runID string, event message.Event, kind message.Kind) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("side effect policy failed", "error", fmt.Sprint(recovered), "run_id", runID, "event_id", event.Key.ID)
		}
	}()
	for _, action := range p.policy.Evaluate(event, kind, p.settings) {
		if action.Kind == ActionSendText {
			p.logOutbound(action.ChatID, action.Text)
		}
		p.inflight.Add(1)
		go p.perform(ctx, runID, event.Key.ID, action)
	}
}

func (p *Pipeline) perform(ctx context.Context, runID, eventID string, action Action) {
	defer p.inflight.Done()
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("side effect panicked", "error", fmt.Sprint(recovered), "action", action.Kind, "run_id", runID, "event_id", eventID)
		}
	}()
	actionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.actionTimeout)
	defer cancel()
	if err := action.Perform(actionCtx, p.transport); err != nil {
		p.logger.Warn("side effect failed", "error", err, "action", action.Kind, "chat_id", action.ChatID, "run_id", runID, "event_id", eventID)
	}
}

func (p *Pipeline) dispatchContext(ctx context.Context, runID string, event message.Event, author string, isGroup bool, command Command, text string) DispatchContext {
	dispatch := DispatchContext{
		RunID:       runID,
		ChatID:      event.Key.RemoteJID,
		Author:      author,
		DisplayName: event.PushName,
		Command:     command,
		IsGroup:     isGroup,
		FromMe:      event.Key.FromMe,
		Text:        text,
	}
	if !isGroup || p.transport == nil {
		return dispatch
	}
	metadata, err := p.transport.GroupMetadata(ctx, dispatch.ChatID)
	if err != nil {
		p.logger.Warn("group metadata lookup failed", "error", err, "chat_id", dispatch.ChatID, "run_id", runID)
		return dispatch
	}
	dispatch.GroupSubject = metadata.Subject
	dispatch.AuthorIsAdmin = metadata.IsAdmin(author)
	return dispatch
}

func (p *Pipeline) record(ctx context.Context, event message.Event, author string, result Result) {
	if p.reporter != nil {
		p.reporter.Beat("pipeline", "event processed")
	}
	if p.journal == nil {
		return
	}
	input := store.RecordPipelineRunInput{
		RunID:   result.RunID,
		EventID: event.Key.ID,
		ChatID:  event.Key.RemoteJID,
		Author:  author,
		IsGroup: message.IsGroupJID(event.Key.RemoteJID),
		Kind:    result.Kind.String(),
		Outcome: string(result.Outcome),
	}
	if result.Command != nil {
		input.Command = result.Command.Name
		input.Args = result.Command.Args
	}
	if result.Err != nil {
		input.Reason = result.Err.Error()
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if _, err := p.journal.RecordPipelineRun(storeCtx, input); err != nil {
		p.logger.Error("journal append failed", "error", err, "run_id", result.RunID)
	}
}

func (p *Pipeline) logInbound(event message.Event, author, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := memorylog.Append(memorylog.Entry{
		Root:        p.chatLogRoot,
		Connector:   connectorName,
		ChatID:      event.Key.RemoteJID,
		Direction:   "inbound",
		ActorID:     author,
		DisplayName: event.PushName,
		Text:        text,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		p.logger.Error("inbound log append failed", "error", err, "chat_id", event.Key.RemoteJID)
	}
}

func (p *Pipeline) logOutbound(chatID, text string) {
	if err := memorylog.Append(memorylog.Entry{
		Root:      p.chatLogRoot,
		Connector: connectorName,
		ChatID:    chatID,
		Direction: "outbound",
		ActorID:   "chat-runtime",
		Text:      text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		p.logger.Error("outbound log append failed", "error", err, "chat_id", chatID)
	}
}
