package message

// Kind is the content classification of an envelope.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPlainText
	KindImageCaption
	KindVideoCaption
	KindExtendedText
	KindButtonReply
	KindListReply
	KindProtocolDelete
)

func (k Kind) String() string {
	switch k {
	case KindPlainText:
		return "plain_text"
	case KindImageCaption:
		return "image_caption"
	case KindVideoCaption:
		return "video_caption"
	case KindExtendedText:
		return "extended_text"
	case KindButtonReply:
		return "button_reply"
	case KindListReply:
		return "list_reply"
	case KindProtocolDelete:
		return "protocol_delete"
	default:
		return "unsupported"
	}
}

// Presence is a chat-visible status signal.
type Presence string

const (
	PresenceAvailable   Presence = "available"
	PresenceComposing   Presence = "composing"
	PresenceRecording   Presence = "recording"
	PresenceUnavailable Presence = "unavailable"
)

// GroupMetadata is the subset of group information the runtime consumes.
type GroupMetadata struct {
	ID      string
	Subject string
	Admins  []string
}

func (g GroupMetadata) IsAdmin(jid string) bool {
	target := Canonical(jid)
	for _, admin := range g.Admins {
		if Canonical(admin) == target {
			return true
		}
	}
	return false
}
