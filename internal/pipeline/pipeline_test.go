package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/chat-runtime/internal/agenterr"
	"github.com/dwizi/chat-runtime/internal/message"
)

func plainEvent(chatID, id, body string) message.Event {
	return message.Event{
		Key:      message.Key{RemoteJID: chatID, ID: id},
		PushName: "Ana",
		Message:  &message.Content{Conversation: text(body)},
	}
}

func newTestPipeline(transport *fakeTransport, predicates Predicates, registry Registry, settings Settings, opts ...Option) *Pipeline {
	gate := NewGate(predicates, registry, testLogger())
	return New(transport, parseDecoder(), gate, settings, testLogger(), opts...)
}

func TestHandleIgnoresEventsWithoutContent(t *testing.T) {
	transport := &fakeTransport{}
	registry := &fakeRegistry{}
	journal := &fakeJournal{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: ".", AutoRead: true, PresenceMode: 2}, WithJournal(journal))

	result := p.Handle(context.Background(), message.Event{Key: message.Key{RemoteJID: "15550001111@s.whatsapp.net", ID: "E1"}})
	p.Wait()

	if result.State() != StateDone || result.Outcome != OutcomeIgnored {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !reflect.DeepEqual(result.Trace, []State{StateReceived, StateDone}) {
		t.Fatalf("unexpected trace: %v", result.Trace)
	}
	if read, presence, sent := transport.counts(); read+presence+sent != 0 {
		t.Fatalf("expected no side effects, got read=%d presence=%d sent=%d", read, presence, sent)
	}
	if len(registry.commands()) != 0 {
		t.Fatal("expected no dispatch")
	}
	runs := journal.recorded()
	if len(runs) != 1 || runs[0].Outcome != string(OutcomeIgnored) {
		t.Fatalf("expected ignored run in journal, got %+v", runs)
	}
}

func TestHandleDispatchesCommand(t *testing.T) {
	transport := &fakeTransport{}
	registry := &fakeRegistry{}
	journal := &fakeJournal{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: ".", AutoRead: true, PresenceMode: 2}, WithJournal(journal))

	result := p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E1", ".ping  extra  arg"))
	p.Wait()

	want := []State{StateReceived, StateClassified, StatePolicyApplied, StateTokenized, StateDispatched, StateDone}
	if !reflect.DeepEqual(result.Trace, want) {
		t.Fatalf("unexpected trace: %v", result.Trace)
	}
	if result.Outcome != OutcomeDispatched || result.Kind != message.KindPlainText {
		t.Fatalf("unexpected result: %+v", result)
	}
	commands := registry.commands()
	if len(commands) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(commands))
	}
	dispatch := commands[0]
	if dispatch.Command.Name != "ping" || !reflect.DeepEqual(dispatch.Args(), []string{"extra", "arg"}) {
		t.Fatalf("unexpected command: %+v", dispatch.Command)
	}
	if dispatch.Author != "15550001111@s.whatsapp.net" || dispatch.DisplayName != "Ana" || dispatch.RunID != result.RunID {
		t.Fatalf("unexpected dispatch context: %+v", dispatch)
	}
	if read, presence, _ := transport.counts(); read != 1 || presence != 1 {
		t.Fatalf("expected mark read and presence, got read=%d presence=%d", read, presence)
	}
	runs := journal.recorded()
	if len(runs) != 1 || runs[0].Command != "ping" || runs[0].Kind != "plain_text" {
		t.Fatalf("unexpected journal entries: %+v", runs)
	}
}

func TestHandleDropsNonCommands(t *testing.T) {
	transport := &fakeTransport{}
	registry := &fakeRegistry{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: "."})

	result := p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E1", "hello"))
	p.Wait()

	if result.Outcome != OutcomeDropped || result.Command != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	want := []State{StateReceived, StateClassified, StatePolicyApplied, StateTokenized, StateDropped, StateDone}
	if !reflect.DeepEqual(result.Trace, want) {
		t.Fatalf("unexpected trace: %v", result.Trace)
	}
	if _, presence, _ := transport.counts(); presence != 1 {
		t.Fatalf("expected presence even for non-commands, got %d", presence)
	}
}

func TestHandleIsIndependentPerEvent(t *testing.T) {
	transport := &fakeTransport{}
	registry := &fakeRegistry{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: "."})
	event := plainEvent("15550001111@s.whatsapp.net", "E1", ".menu")

	first := p.Handle(context.Background(), event)
	second := p.Handle(context.Background(), event)
	p.Wait()

	if first.RunID == second.RunID {
		t.Fatal("expected distinct run ids")
	}
	if !reflect.DeepEqual(first.Trace, second.Trace) || first.Outcome != second.Outcome {
		t.Fatalf("expected identical runs, got %+v and %+v", first, second)
	}
	if len(registry.commands()) != 2 {
		t.Fatalf("expected both events dispatched, got %d", len(registry.commands()))
	}
}

func TestTransportPanicDoesNotStopLaterEvents(t *testing.T) {
	transport := &fakeTransport{panicOnce: true}
	registry := &fakeRegistry{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: ".", PresenceMode: 1})

	events := make(chan message.Event, 2)
	events <- plainEvent("15550001111@s.whatsapp.net", "E1", ".ping")
	events <- plainEvent("15550001111@s.whatsapp.net", "E2", ".ping")
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx, events); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(registry.commands()) != 2 {
		t.Fatalf("expected both events dispatched, got %d", len(registry.commands()))
	}
	if _, presence, _ := transport.counts(); presence != 1 {
		t.Fatalf("expected one successful presence update, got %d", presence)
	}
}

type panicOncePolicy struct {
	next     SideEffectPolicy
	mu       sync.Mutex
	panicked bool
}

func (p *panicOncePolicy) Evaluate(event message.Event, kind message.Kind, settings Settings) []Action {
	p.mu.Lock()
	first := !p.panicked
	p.panicked = true
	p.mu.Unlock()
	if first {
		panic("policy evaluation crashed")
	}
	return p.next.Evaluate(event, kind, settings)
}

func TestPolicyPanicDoesNotStopLaterEvents(t *testing.T) {
	transport := &fakeTransport{}
	registry := &fakeRegistry{}
	journal := &fakeJournal{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: ".", PresenceMode: 2}, WithJournal(journal))
	p.policy = &panicOncePolicy{next: NewSideEffectPolicy(p.resolver)}

	first := p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E1", ".ping"))
	second := p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E2", ".ping"))
	p.Wait()

	want := []State{StateReceived, StateClassified, StatePolicyApplied, StateTokenized, StateDispatched, StateDone}
	for _, result := range []Result{first, second} {
		if !reflect.DeepEqual(result.Trace, want) || result.Outcome != OutcomeDispatched {
			t.Fatalf("unexpected run after policy panic: %+v", result)
		}
	}
	if len(registry.commands()) != 2 {
		t.Fatalf("expected both events dispatched, got %d", len(registry.commands()))
	}
	if _, presence, _ := transport.counts(); presence != 1 {
		t.Fatalf("expected presence only for the second event, got %d", presence)
	}
	if runs := journal.recorded(); len(runs) != 2 {
		t.Fatalf("expected two journal rows, got %+v", runs)
	}
}

func TestHandleGroupUsesParticipantAndAdminStatus(t *testing.T) {
	transport := &fakeTransport{groups: map[string]message.GroupMetadata{
		testGroup: {ID: testGroup, Subject: "Team", Admins: []string{"15551112222@s.whatsapp.net"}},
	}}
	registry := &fakeRegistry{}
	predicates := &fakePredicates{values: map[string]bool{"admin_only": true}}
	p := newTestPipeline(transport, predicates, registry, Settings{Prefix: "."})

	event := message.Event{
		Key:     message.Key{RemoteJID: testGroup, ID: "G1", Participant: "15551112222:4@s.whatsapp.net"},
		Message: &message.Content{ExtendedTextMessage: &message.ExtendedText{Text: text(".kick @someone")}},
	}
	result := p.Handle(context.Background(), event)
	p.Wait()

	if result.Outcome != OutcomeDispatched {
		t.Fatalf("expected admin to dispatch, got %+v", result)
	}
	dispatch := registry.commands()[0]
	if dispatch.Author != "15551112222@s.whatsapp.net" || !dispatch.AuthorIsAdmin || dispatch.GroupSubject != "Team" {
		t.Fatalf("unexpected dispatch context: %+v", dispatch)
	}

	event.Key.Participant = "15553334444@s.whatsapp.net"
	event.Key.ID = "G2"
	denied := p.Handle(context.Background(), event)
	p.Wait()
	if denied.Outcome != OutcomeDenied || !errors.Is(denied.Err, agenterr.ErrAdminOnly) {
		t.Fatalf("expected admin-only denial, got %+v", denied)
	}
	if denied.State() != StateDone {
		t.Fatalf("expected denied run to finish, got %s", denied.State())
	}
}

func TestHandleFromMeUsesSelfIdentity(t *testing.T) {
	transport := &fakeTransport{self: "15559990000:2@s.whatsapp.net"}
	registry := &fakeRegistry{}
	p := newTestPipeline(transport, nil, registry, Settings{Prefix: ".", AutoRead: true})

	event := plainEvent("15550001111@s.whatsapp.net", "E1", ".ping")
	event.Key.FromMe = true
	p.Handle(context.Background(), event)
	p.Wait()

	dispatch := registry.commands()[0]
	if dispatch.Author != "15559990000@s.whatsapp.net" || !dispatch.FromMe {
		t.Fatalf("unexpected dispatch context: %+v", dispatch)
	}
	if read, _, _ := transport.counts(); read != 0 {
		t.Fatal("own messages must not be marked read")
	}
}

func TestHandleWritesChatLog(t *testing.T) {
	root := t.TempDir()
	transport := &fakeTransport{}
	p := newTestPipeline(transport, nil, &fakeRegistry{}, Settings{Prefix: "."}, WithChatLog(root))

	p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E1", "hello there"))
	p.Wait()

	matches, err := filepath.Glob(filepath.Join(root, "logs", "chats", "whatsapp", "*.md"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one chat log, got %v (%v)", matches, err)
	}
	body, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read chat log: %v", err)
	}
	if !strings.Contains(string(body), "hello there") || !strings.Contains(string(body), "`INBOUND`") {
		t.Fatalf("unexpected chat log contents: %s", body)
	}
}

func TestHandleWithoutGateFails(t *testing.T) {
	p := New(&fakeTransport{}, parseDecoder(), nil, Settings{Prefix: "."}, testLogger())
	result := p.Handle(context.Background(), plainEvent("15550001111@s.whatsapp.net", "E1", ".ping"))
	p.Wait()
	if result.Outcome != OutcomeFailed || result.Err == nil || result.State() != StateDone {
		t.Fatalf("unexpected result: %+v", result)
	}
}
