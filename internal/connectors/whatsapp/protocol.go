package whatsapp

import (
	"encoding/json"

	"github.com/dwizi/chat-runtime/internal/message"
)

const (
	frameRequest  = "req"
	frameResponse = "res"
	frameEvent    = "event"

	methodConnect       = "connect"
	methodMarkRead      = "messages.read"
	methodPresence      = "presence.update"
	methodSendMessage   = "message.send"
	methodGroupMetadata = "group.metadata"
	eventConnection     = "connection.update"
	eventMessagesUpsert = "messages.upsert"
	roleRuntime         = "runtime"
	upsertTypeAppend    = "append"
)

// Frame is the bridge wire format. Requests flow from the runtime to the
// bridge; responses and events flow back.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int             `json:"seq,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type connectParams struct {
	Role  string `json:"role"`
	Token string `json:"token,omitempty"`
}

type connectionUpdate struct {
	Connection string `json:"connection,omitempty"`
	Me         *struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	} `json:"me,omitempty"`
}

// messagesUpsert keeps envelopes raw so one bad envelope cannot sink the
// whole batch.
type messagesUpsert struct {
	Type     string            `json:"type"`
	Messages []json.RawMessage `json:"messages"`
}

type markReadParams struct {
	Keys []message.Key `json:"keys"`
}

type presenceParams struct {
	ChatID   string           `json:"chatId"`
	Presence message.Presence `json:"presence"`
}

type sendMessageParams struct {
	ChatID   string   `json:"chatId"`
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
}

type sendMessageResult struct {
	Key message.Key `json:"key"`
}

type groupMetadataParams struct {
	ChatID string `json:"chatId"`
}

type groupMetadataResult struct {
	ID           string `json:"id"`
	Subject      string `json:"subject"`
	Participants []struct {
		ID    string `json:"id"`
		Admin string `json:"admin,omitempty"`
	} `json:"participants"`
}

func (g groupMetadataResult) metadata() message.GroupMetadata {
	out := message.GroupMetadata{ID: g.ID, Subject: g.Subject}
	for _, participant := range g.Participants {
		if participant.Admin == "admin" || participant.Admin == "superadmin" {
			out.Admins = append(out.Admins, participant.ID)
		}
	}
	return out
}
