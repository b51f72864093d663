// Package channel wraps the bidirectional websocket channel a bot platform
// exposes per session: send a structured message, receive the next structured
// reply, close.
package channel

import (
	"fmt"

	"github.com/botceptor/botceptor/logger"
	"github.com/gorilla/websocket"
)

const (
	EventStart    = "start"
	EventGenerate = "generate"

	MimeTypeText = "text/plain"
	ChannelChat  = "chat"
)

// Message is the platform's reply shape. Payload.Text carries the bot's
// answer; Event distinguishes a normal reply from e.g. a call transfer.
type Message struct {
	Event   string `json:"event"`
	Payload struct {
		Text string `json:"text"`
	} `json:"payload"`
}

// StartMetadata carries the call-repetition tracking fields the platform
// expects on session start.
type StartMetadata struct {
	RepeatedCallCount            int     `json:"repeated_call_count"`
	RepeatedCallLookBackInterval int     `json:"repeated_call_look_back_interval"`
	RepeatedCallTimestamps       []int64 `json:"repeated_call_timestamps"`
}

type StartPayload struct {
	Metadata StartMetadata     `json:"metadata"`
	Entities map[string]string `json:"entities"`
}

// StartMessage opens a session with metadata and seed entities.
type StartMessage struct {
	Event     string       `json:"event"`
	SessionID string       `json:"session_id"`
	MimeType  string       `json:"mime_type"`
	Payload   StartPayload `json:"payload"`
}

type GeneratePayload struct {
	Text string `json:"text"`
}

// GenerateMessage asks the bot to answer one question.
type GenerateMessage struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Channel   string          `json:"channel"`
	MimeType  string          `json:"mime_type"`
	Payload   GeneratePayload `json:"payload"`
}

// Client is a thin adapter over one websocket connection to a named session
// endpoint. It is not safe for concurrent use; each session owns its own
// client and round-trips strictly sequentially.
type Client struct {
	URL  string
	conn *websocket.Conn
}

func NewClient(socketURL string) *Client {
	return &Client{URL: socketURL}
}

// Connect dials the session endpoint. On failure the client stays unusable;
// there are no retries.
func (c *Client) Connect() error {
	logger.Logger.Debug("Connecting to session channel", "url", c.URL)

	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.URL, err)
	}

	c.conn = conn
	logger.Logger.Info("Session channel established", "url", c.URL)
	return nil
}

func (c *Client) Connected() bool {
	return c.conn != nil
}

// Send writes one JSON message on the channel.
func (c *Client) Send(msg any) error {
	if c.conn == nil {
		return fmt.Errorf("channel is not connected")
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive blocks until the next reply arrives and decodes it.
func (c *Client) Receive() (*Message, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("channel is not connected")
	}

	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	return &msg, nil
}

// Close shuts the channel down. Safe to call on a client that never
// connected, and safe to call twice.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		logger.Logger.Warn("Error closing session channel", "error", err)
	} else {
		logger.Logger.Debug("Session channel closed", "url", c.URL)
	}
	c.conn = nil
}
