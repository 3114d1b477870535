package pipeline

import "github.com/dwizi/chat-runtime/internal/message"

// Classify maps a content union to exactly one kind and its user-authored
// text. Variants without text, and unknown variants, yield "".
func Classify(content *message.Content) (message.Kind, string) {
	if content == nil {
		return message.KindUnsupported, ""
	}
	switch {
	case content.Conversation != nil:
		return message.KindPlainText, *content.Conversation
	case content.ImageMessage != nil:
		return message.KindImageCaption, deref(content.ImageMessage.Caption)
	case content.VideoMessage != nil:
		return message.KindVideoCaption, deref(content.VideoMessage.Caption)
	case content.ExtendedTextMessage != nil:
		return message.KindExtendedText, deref(content.ExtendedTextMessage.Text)
	case content.ButtonsResponseMessage != nil:
		return message.KindButtonReply, deref(content.ButtonsResponseMessage.SelectedButtonID)
	case content.ListResponseMessage != nil:
		reply := content.ListResponseMessage.SingleSelectReply
		if reply == nil {
			return message.KindListReply, ""
		}
		return message.KindListReply, deref(reply.SelectedRowID)
	case content.ProtocolMessage != nil && content.ProtocolMessage.Type == message.ProtocolRevoke:
		return message.KindProtocolDelete, ""
	default:
		return message.KindUnsupported, ""
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
