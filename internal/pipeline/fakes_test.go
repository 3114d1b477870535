package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dwizi/chat-runtime/internal/message"
	"github.com/dwizi/chat-runtime/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	mu        sync.Mutex
	self      string
	groups    map[string]message.GroupMetadata
	read      [][]message.Key
	presence  []message.Presence
	sent      []string
	mentions  [][]string
	panicOnce bool
	panicked  bool
}

func (f *fakeTransport) MarkRead(ctx context.Context, keys []message.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, keys)
	return nil
}

func (f *fakeTransport) SendText(ctx context.Context, chatID, text string, mentions []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.mentions = append(f.mentions, mentions)
	return nil
}

func (f *fakeTransport) UpdatePresence(ctx context.Context, chatID string, presence message.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnce && !f.panicked {
		f.panicked = true
		panic("presence transport crashed")
	}
	f.presence = append(f.presence, presence)
	return nil
}

func (f *fakeTransport) GroupMetadata(ctx context.Context, chatID string) (message.GroupMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	metadata, ok := f.groups[chatID]
	if !ok {
		return message.GroupMetadata{}, errors.New("group not found")
	}
	return metadata, nil
}

func (f *fakeTransport) SelfJID() string {
	return f.self
}

func (f *fakeTransport) counts() (read, presence, sent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.read), len(f.presence), len(f.sent)
}

type fakePredicates struct {
	mu     sync.Mutex
	values map[string]bool
	errs   map[string]error
	calls  []string
}

func (f *fakePredicates) check(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return false, err
	}
	return f.values[name], nil
}

func (f *fakePredicates) IsAuthorBanned(ctx context.Context, author string) (bool, error) {
	return f.check("author_banned")
}

func (f *fakePredicates) IsChatBanned(ctx context.Context, chatID string) (bool, error) {
	return f.check("chat_banned")
}

func (f *fakePredicates) IsAdminOnly(ctx context.Context, chatID string) (bool, error) {
	return f.check("admin_only")
}

func (f *fakePredicates) IsAntiLinkActive(ctx context.Context, chatID string) (bool, error) {
	return f.check("antilink")
}

func (f *fakePredicates) IsAntiBotActive(ctx context.Context, chatID string) (bool, error) {
	return f.check("antibot")
}

func (f *fakePredicates) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRegistry struct {
	mu         sync.Mutex
	dispatched []DispatchContext
	err        error
}

func (f *fakeRegistry) Dispatch(ctx context.Context, transport Transport, event message.Event, dispatch DispatchContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, dispatch)
	return nil
}

func (f *fakeRegistry) commands() []DispatchContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DispatchContext(nil), f.dispatched...)
}

type fakeJournal struct {
	mu   sync.Mutex
	runs []store.RecordPipelineRunInput
}

func (f *fakeJournal) RecordPipelineRun(ctx context.Context, input store.RecordPipelineRunInput) (store.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, input)
	return store.PipelineRun{RunID: input.RunID, Outcome: input.Outcome}, nil
}

func (f *fakeJournal) recorded() []store.RecordPipelineRunInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.RecordPipelineRunInput(nil), f.runs...)
}
