package pipeline

import (
	"testing"

	"github.com/dwizi/chat-runtime/internal/message"
)

func text(value string) *string {
	return &value
}

func TestClassifyVariants(t *testing.T) {
	cases := []struct {
		name    string
		content *message.Content
		kind    message.Kind
		text    string
	}{
		{"nil", nil, message.KindUnsupported, ""},
		{"empty", &message.Content{}, message.KindUnsupported, ""},
		{"conversation", &message.Content{Conversation: text(".ping")}, message.KindPlainText, ".ping"},
		{"image caption", &message.Content{ImageMessage: &message.MediaMessage{Caption: text("look")}}, message.KindImageCaption, "look"},
		{"image without caption", &message.Content{ImageMessage: &message.MediaMessage{Mimetype: "image/jpeg"}}, message.KindImageCaption, ""},
		{"video caption", &message.Content{VideoMessage: &message.MediaMessage{Caption: text("clip")}}, message.KindVideoCaption, "clip"},
		{"extended text", &message.Content{ExtendedTextMessage: &message.ExtendedText{Text: text("quoted reply")}}, message.KindExtendedText, "quoted reply"},
		{"button reply", &message.Content{ButtonsResponseMessage: &message.ButtonsResponse{SelectedButtonID: text(".menu"), SelectedDisplayText: "Menu"}}, message.KindButtonReply, ".menu"},
		{"list reply", &message.Content{ListResponseMessage: &message.ListResponse{Title: "Options", SingleSelectReply: &message.SingleSelectReply{SelectedRowID: text(".help")}}}, message.KindListReply, ".help"},
		{"list reply without selection", &message.Content{ListResponseMessage: &message.ListResponse{Title: "Options"}}, message.KindListReply, ""},
		{"revoke", &message.Content{ProtocolMessage: &message.ProtocolMessage{Type: message.ProtocolRevoke}}, message.KindProtocolDelete, ""},
		{"edit", &message.Content{ProtocolMessage: &message.ProtocolMessage{Type: message.ProtocolMessageEdit}}, message.KindUnsupported, ""},
		{"unrecognized protocol type", &message.Content{ProtocolMessage: &message.ProtocolMessage{Type: message.ProtocolUnknown}}, message.KindUnsupported, ""},
		{"degraded content", &message.Content{Unknown: []string{"imageMessage"}}, message.KindUnsupported, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, got := Classify(tc.content)
			if kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, kind)
			}
			if got != tc.text {
				t.Fatalf("expected text %q, got %q", tc.text, got)
			}
		})
	}
}

func TestClassifyPrefersConversation(t *testing.T) {
	content := &message.Content{
		Conversation:        text("plain"),
		ExtendedTextMessage: &message.ExtendedText{Text: text("extended")},
	}
	kind, got := Classify(content)
	if kind != message.KindPlainText || got != "plain" {
		t.Fatalf("unexpected classification %s %q", kind, got)
	}
}
