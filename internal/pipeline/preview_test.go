package pipeline

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/dwizi/chat-runtime/internal/message"
)

func TestPreviewEventFromWireJSON(t *testing.T) {
	raw := `{
		"key": {"remoteJid": "120363000000000001@g.us", "fromMe": false, "id": "M1", "participant": "15551112222@s.whatsapp.net"},
		"pushName": "Ana",
		"message": {"imageMessage": {"caption": ".Sticker crop  round", "mimetype": "image/jpeg"}, "reactionMessage": {"text": "x"}}
	}`
	var event message.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}

	preview := PreviewEvent(event, ".")
	if preview.Kind != "image_caption" || !preview.IsGroup || !preview.Accepted {
		t.Fatalf("unexpected preview: %+v", preview)
	}
	if preview.Command != "sticker" || !reflect.DeepEqual(preview.Args, []string{"crop", "round"}) {
		t.Fatalf("unexpected command: %s %v", preview.Command, preview.Args)
	}
	if !reflect.DeepEqual(preview.Unknown, []string{"reactionMessage"}) {
		t.Fatalf("unexpected unknown variants: %v", preview.Unknown)
	}
}

func TestPreviewEventWithoutContent(t *testing.T) {
	preview := PreviewEvent(message.Event{Key: message.Key{RemoteJID: "15551112222@s.whatsapp.net"}}, ".")
	if preview.Kind != "unsupported" || preview.Accepted || preview.Text != "" {
		t.Fatalf("unexpected preview: %+v", preview)
	}
}
