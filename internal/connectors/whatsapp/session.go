package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dwizi/chat-runtime/internal/message"
)

// session is one websocket connection to the bridge. Requests are
// correlated with responses by frame id.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	closed  bool
	done    chan struct{}
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:    conn,
		pending: map[string]chan Frame{},
		done:    make(chan struct{}),
	}
}

func (s *session) write(frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// call sends a request and waits for its response.
func (s *session) call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	id := uuid.NewString()
	reply := make(chan Frame, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.pending[id] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(Frame{Type: frameRequest, ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-s.done:
		return ErrNotConnected
	case frame := <-reply:
		return decodeResponse(method, frame, out)
	}
}

func decodeResponse(method string, frame Frame, out any) error {
	if frame.OK == nil || !*frame.OK {
		if frame.Error != nil {
			return fmt.Errorf("%s failed: %s: %s", method, frame.Error.Code, frame.Error.Message)
		}
		return fmt.Errorf("%s failed", method)
	}
	if out == nil || len(frame.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(frame.Payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// resolve hands a response frame to its waiting caller.
func (s *session) resolve(frame Frame) bool {
	s.mu.Lock()
	reply, ok := s.pending[frame.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case reply <- frame:
	default:
	}
	return true
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (c *Connector) runSession(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge: %w", err)
	}
	s := newSession(conn)
	defer s.close()

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	if err := c.handshake(ctx, s); err != nil {
		return err
	}
	c.attach(s)
	defer c.detach(s)
	if c.reporter != nil {
		c.reporter.Beat(componentName, "bridge session established")
	}
	c.logger.Info("bridge session established")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read bridge frame: %w", err)
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Error("decode bridge frame failed", "error", err)
			continue
		}
		switch frame.Type {
		case frameResponse:
			if !s.resolve(frame) {
				c.logger.Debug("response without caller", "id", frame.ID)
			}
		case frameEvent:
			if err := c.handleEvent(ctx, frame); err != nil {
				c.logger.Error("handle bridge event failed", "error", err, "event", frame.Event, "seq", frame.Seq)
			}
		default:
			c.logger.Debug("unexpected bridge frame", "type", frame.Type)
		}
	}
}

// handshake sends the connect request and reads frames until its response
// arrives. The read loop is not running yet, so events seen here are
// processed inline.
func (c *Connector) handshake(ctx context.Context, s *session) error {
	raw, err := json.Marshal(connectParams{Role: roleRuntime, Token: c.token})
	if err != nil {
		return fmt.Errorf("encode connect params: %w", err)
	}
	id := uuid.NewString()
	if err := s.write(Frame{Type: frameRequest, ID: id, Method: methodConnect, Params: raw}); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read connect response: %w", err)
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("decode connect response: %w", err)
		}
		if frame.Type == frameEvent {
			if err := c.handleEvent(ctx, frame); err != nil {
				c.logger.Error("handle bridge event failed", "error", err, "event", frame.Event)
			}
			continue
		}
		if frame.Type != frameResponse || frame.ID != id {
			continue
		}
		var result connectionUpdate
		if err := decodeResponse(methodConnect, frame, &result); err != nil {
			return err
		}
		if result.Me != nil {
			c.setSelf(result.Me.ID)
		}
		return nil
	}
}

func (c *Connector) handleEvent(ctx context.Context, frame Frame) error {
	if c.reporter != nil {
		c.reporter.Beat(componentName, "bridge event received")
	}
	switch frame.Event {
	case eventConnection:
		var update connectionUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			return fmt.Errorf("decode connection update: %w", err)
		}
		if update.Me != nil {
			c.setSelf(update.Me.ID)
		}
		if update.Connection != "" {
			c.logger.Info("bridge connection update", "connection", update.Connection)
		}
		return nil
	case eventMessagesUpsert:
		var upsert messagesUpsert
		if err := json.Unmarshal(frame.Payload, &upsert); err != nil {
			return fmt.Errorf("decode messages upsert: %w", err)
		}
		if upsert.Type == upsertTypeAppend {
			c.logger.Debug("skipping history append", "count", len(upsert.Messages))
			return nil
		}
		for index, raw := range upsert.Messages {
			event, err := message.DecodeEvent(raw)
			if err != nil {
				if !errors.Is(err, message.ErrMalformedEnvelope) {
					c.logger.Warn("skipping undecodable envelope", "error", err, "index", index)
					continue
				}
				c.logger.Warn("forwarding malformed envelope as unsupported", "error", err, "event_id", event.Key.ID, "chat_id", event.Key.RemoteJID)
			}
			select {
			case c.events <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	default:
		c.logger.Debug("ignoring bridge event", "event", frame.Event)
		return nil
	}
}
