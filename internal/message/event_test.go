package message

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestContentUnmarshalTracksUnknownVariants(t *testing.T) {
	var content Content
	payload := `{"stickerMessage":{"url":"x"},"messageContextInfo":{},"audioMessage":{"seconds":3}}`
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if len(content.Unknown) != 2 || content.Unknown[0] != "audioMessage" || content.Unknown[1] != "stickerMessage" {
		t.Fatalf("unexpected unknown variants: %v", content.Unknown)
	}
	if content.Conversation != nil {
		t.Fatal("expected no conversation")
	}
}

func TestProtocolTypeAcceptsNamesAndNumbers(t *testing.T) {
	cases := map[string]ProtocolType{
		`{"type":0}`:              ProtocolRevoke,
		`{"type":"REVOKE"}`:       ProtocolRevoke,
		`{"type":14}`:             ProtocolMessageEdit,
		`{"type":"message_edit"}`: ProtocolMessageEdit,
		`{}`:                      ProtocolRevoke,
	}
	for payload, expected := range cases {
		var protocol ProtocolMessage
		if err := json.Unmarshal([]byte(payload), &protocol); err != nil {
			t.Fatalf("unmarshal %s: %v", payload, err)
		}
		if protocol.Type != expected {
			t.Fatalf("payload %s: expected %d, got %d", payload, expected, protocol.Type)
		}
	}
}

func TestProtocolTypeDecodesUnknownNamesAsSentinel(t *testing.T) {
	for _, payload := range []string{
		`{"type":"EPHEMERAL_SYNC_RESPONSE"}`,
		`{"type":"APP_STATE_SYNC_KEY_REQUEST"}`,
		`{"type":"SHARE_PHONE_NUMBER"}`,
		`{"type":true}`,
	} {
		var protocol ProtocolMessage
		if err := json.Unmarshal([]byte(payload), &protocol); err != nil {
			t.Fatalf("unmarshal %s: %v", payload, err)
		}
		if protocol.Type != ProtocolUnknown {
			t.Fatalf("payload %s: expected unknown sentinel, got %d", payload, protocol.Type)
		}
	}
}

func TestDecodeEventDegradesMalformedContent(t *testing.T) {
	payload := `{"key":{"remoteJid":"15551112222@s.whatsapp.net","id":"M2"},"pushName":"Ana","message":{"imageMessage":{"caption":5}},"messageTimestamp":1700000000}`
	event, err := DecodeEvent([]byte(payload))
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed envelope error, got %v", err)
	}
	if event.Key.ID != "M2" || event.PushName != "Ana" || event.Timestamp != 1700000000 {
		t.Fatalf("unexpected envelope fields: %+v", event)
	}
	if event.Message == nil || event.Message.ImageMessage != nil || len(event.Message.Unknown) != 1 || event.Message.Unknown[0] != "imageMessage" {
		t.Fatalf("unexpected degraded content: %+v", event.Message)
	}
}

func TestDecodeEventRejectsUnreadableKey(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"key":5,"message":{"conversation":".ping"}}`))
	if err == nil || errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected hard decode error, got %v", err)
	}
}

func TestDecodeEventPassesWellFormedEnvelope(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"key":{"remoteJid":"15551112222@s.whatsapp.net","id":"M4"},"message":{"conversation":".ping"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Message == nil || event.Message.Conversation == nil || *event.Message.Conversation != ".ping" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestEventDecodesBridgePayload(t *testing.T) {
	payload := `{
		"key":{"remoteJid":"120363@g.us","fromMe":false,"id":"ABC","participant":"555:3@s.whatsapp.net"},
		"pushName":"Ana",
		"message":{"extendedTextMessage":{"text":".ping"}},
		"messageTimestamp":1700000000
	}`
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Key.Participant != "555:3@s.whatsapp.net" || event.PushName != "Ana" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Message == nil || event.Message.ExtendedTextMessage == nil || *event.Message.ExtendedTextMessage.Text != ".ping" {
		t.Fatalf("unexpected content: %+v", event.Message)
	}
}
