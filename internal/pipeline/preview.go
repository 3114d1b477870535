package pipeline

import "github.com/dwizi/chat-runtime/internal/message"

// Preview is the side-effect free part of a run: classification and
// tokenization of one envelope.
type Preview struct {
	EventID  string   `json:"event_id"`
	ChatID   string   `json:"chat_id"`
	Kind     string   `json:"kind"`
	Text     string   `json:"text"`
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	IsGroup  bool     `json:"is_group"`
	Unknown  []string `json:"unknown_variants,omitempty"`
	Accepted bool     `json:"is_command"`
}

func PreviewEvent(event message.Event, prefix string) Preview {
	kind, text := Classify(event.Message)
	preview := Preview{
		EventID: event.Key.ID,
		ChatID:  event.Key.RemoteJID,
		Kind:    kind.String(),
		Text:    text,
		IsGroup: message.IsGroupJID(event.Key.RemoteJID),
	}
	if event.Message != nil {
		preview.Unknown = event.Message.Unknown
	}
	if command, ok := Tokenize(text, prefix); ok {
		preview.Accepted = true
		preview.Command = command.Name
		preview.Args = command.Args
	}
	return preview
}
