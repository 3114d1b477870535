package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key identifies a message inside a chat.
type Key struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

// Event is one inbound envelope as delivered by the bridge.
type Event struct {
	Key       Key      `json:"key"`
	PushName  string   `json:"pushName,omitempty"`
	Message   *Content `json:"message,omitempty"`
	Timestamp int64    `json:"messageTimestamp,omitempty"`
}

// ErrMalformedEnvelope marks an envelope whose content could not be decoded.
// DecodeEvent still returns a usable event alongside it.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// DecodeEvent decodes one envelope. When only parts of it are malformed the
// readable fields are kept and the content is reduced to the names of its
// variants, which classifies as unsupported. An error without
// ErrMalformedEnvelope means not even the key could be read.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	if err == nil {
		return event, nil
	}
	var shell struct {
		Key       Key             `json:"key"`
		PushName  json.RawMessage `json:"pushName"`
		Message   json.RawMessage `json:"message"`
		Timestamp json.RawMessage `json:"messageTimestamp"`
	}
	if shellErr := json.Unmarshal(data, &shell); shellErr != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", shellErr)
	}
	event = Event{Key: shell.Key}
	_ = json.Unmarshal(shell.PushName, &event.PushName)
	_ = json.Unmarshal(shell.Timestamp, &event.Timestamp)
	if raw := strings.TrimSpace(string(shell.Message)); raw != "" && raw != "null" {
		var content Content
		if json.Unmarshal(shell.Message, &content) == nil {
			event.Message = &content
		} else {
			event.Message = &Content{Unknown: variantNames(shell.Message)}
		}
	}
	return event, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
}

func variantNames(data json.RawMessage) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return []string{"message"}
	}
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if strings.TrimSpace(string(value)) == "null" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Content is the content union of an envelope. The bridge populates one
// variant per message; variants this runtime does not understand are kept
// by name in Unknown for logging.
type Content struct {
	Conversation           *string          `json:"conversation,omitempty"`
	ImageMessage           *MediaMessage    `json:"imageMessage,omitempty"`
	VideoMessage           *MediaMessage    `json:"videoMessage,omitempty"`
	ExtendedTextMessage    *ExtendedText    `json:"extendedTextMessage,omitempty"`
	ButtonsResponseMessage *ButtonsResponse `json:"buttonsResponseMessage,omitempty"`
	ListResponseMessage    *ListResponse    `json:"listResponseMessage,omitempty"`
	ProtocolMessage        *ProtocolMessage `json:"protocolMessage,omitempty"`

	Unknown []string `json:"-"`
}

type MediaMessage struct {
	Caption  *string `json:"caption,omitempty"`
	Mimetype string  `json:"mimetype,omitempty"`
}

type ExtendedText struct {
	Text *string `json:"text,omitempty"`
}

type ButtonsResponse struct {
	SelectedButtonID    *string `json:"selectedButtonId,omitempty"`
	SelectedDisplayText string  `json:"selectedDisplayText,omitempty"`
}

type ListResponse struct {
	Title             string             `json:"title,omitempty"`
	SingleSelectReply *SingleSelectReply `json:"singleSelectReply,omitempty"`
}

type SingleSelectReply struct {
	SelectedRowID *string `json:"selectedRowId,omitempty"`
}

// ProtocolMessage carries protocol-level actions such as revokes. Key points
// at the message the action applies to.
type ProtocolMessage struct {
	Key  *Key         `json:"key,omitempty"`
	Type ProtocolType `json:"type"`
}

// ProtocolType follows the wire enum, where REVOKE is zero. An absent type
// therefore decodes as a revoke, matching protobuf default semantics.
// Names outside the table decode as ProtocolUnknown, never as a revoke.
type ProtocolType int

const (
	ProtocolUnknown              ProtocolType = -1
	ProtocolRevoke               ProtocolType = 0
	ProtocolEphemeralSetting     ProtocolType = 3
	ProtocolHistorySyncNotify    ProtocolType = 5
	ProtocolAppStateSyncKeyShare ProtocolType = 6
	ProtocolMessageEdit          ProtocolType = 14
)

var protocolTypeNames = map[string]ProtocolType{
	"REVOKE":                    ProtocolRevoke,
	"EPHEMERAL_SETTING":         ProtocolEphemeralSetting,
	"HISTORY_SYNC_NOTIFICATION": ProtocolHistorySyncNotify,
	"APP_STATE_SYNC_KEY_SHARE":  ProtocolAppStateSyncKeyShare,
	"MESSAGE_EDIT":              ProtocolMessageEdit,
}

// UnmarshalJSON accepts both the numeric and the named form of the enum.
func (t *ProtocolType) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*t = ProtocolRevoke
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if value, ok := protocolTypeNames[name]; ok {
			*t = value
			return nil
		}
		if number, err := strconv.Atoi(name); err == nil {
			*t = ProtocolType(number)
			return nil
		}
		*t = ProtocolUnknown
		return nil
	}
	number, err := strconv.Atoi(raw)
	if err != nil {
		*t = ProtocolUnknown
		return nil
	}
	*t = ProtocolType(number)
	return nil
}

var knownContentFields = map[string]struct{}{
	"conversation":           {},
	"imageMessage":           {},
	"videoMessage":           {},
	"extendedTextMessage":    {},
	"buttonsResponseMessage": {},
	"listResponseMessage":    {},
	"protocolMessage":        {},
	// bookkeeping fields that never carry user content
	"messageContextInfo":           {},
	"senderKeyDistributionMessage": {},
}

func (c *Content) UnmarshalJSON(data []byte) error {
	type plain Content
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	unknown := make([]string, 0)
	for name, value := range fields {
		if _, ok := knownContentFields[name]; ok {
			continue
		}
		if strings.TrimSpace(string(value)) == "null" {
			continue
		}
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	*c = Content(decoded)
	if len(unknown) > 0 {
		c.Unknown = unknown
	}
	return nil
}
