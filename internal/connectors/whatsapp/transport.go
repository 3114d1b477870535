package whatsapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwizi/chat-runtime/internal/message"
)

func (c *Connector) call(ctx context.Context, method string, params, out any) error {
	s, err := c.session()
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	return s.call(ctx, method, params, out)
}

func (c *Connector) MarkRead(ctx context.Context, keys []message.Key) error {
	if len(keys) == 0 {
		return nil
	}
	return c.call(ctx, methodMarkRead, markReadParams{Keys: keys}, nil)
}

func (c *Connector) UpdatePresence(ctx context.Context, chatID string, presence message.Presence) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("presence chat id is required")
	}
	return c.call(ctx, methodPresence, presenceParams{ChatID: chatID, Presence: presence}, nil)
}

func (c *Connector) SendText(ctx context.Context, chatID, text string, mentions []string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("send chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var result sendMessageResult
	if err := c.call(ctx, methodSendMessage, sendMessageParams{ChatID: chatID, Text: text, Mentions: mentions}, &result); err != nil {
		return err
	}
	c.logger.Debug("message sent", "chat_id", chatID, "message_id", result.Key.ID)
	return nil
}

func (c *Connector) GroupMetadata(ctx context.Context, chatID string) (message.GroupMetadata, error) {
	chatID = strings.TrimSpace(chatID)
	if !message.IsGroupJID(chatID) {
		return message.GroupMetadata{}, fmt.Errorf("%s is not a group", chatID)
	}
	var result groupMetadataResult
	if err := c.call(ctx, methodGroupMetadata, groupMetadataParams{ChatID: chatID}, &result); err != nil {
		return message.GroupMetadata{}, err
	}
	metadata := result.metadata()
	if metadata.ID == "" {
		metadata.ID = chatID
	}
	return metadata, nil
}
