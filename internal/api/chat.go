package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reportview/internal/assistant"
	"reportview/internal/logging"
)

const (
	chatReadLimit    = 16 * 1024
	chatWriteTimeout = 10 * time.Second
)

// clientFrame is a message from the browser
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// serverFrame is a message to the browser. Message frames carry the text
// both raw and formatted for display.
type serverFrame struct {
	Type   string           `json:"type"`
	ID     string           `json:"id,omitempty"`
	Sender assistant.Sender `json:"sender,omitempty"`
	Text   string           `json:"text,omitempty"`
	HTML   string           `json:"html,omitempty"`
	At     *time.Time       `json:"at,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

// chatConn forwards session events to one websocket. Writes are serialized.
type chatConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *logging.Logger
}

func (c *chatConn) write(f serverFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
	if err := c.conn.WriteJSON(f); err != nil {
		c.logger.WithContext("error", err.Error()).Debug("chat write failed")
	}
}

func (c *chatConn) MessageAppended(m assistant.Message) {
	at := m.At
	f := serverFrame{Type: "message", ID: m.ID, Sender: m.Sender, Text: m.Text, At: &at}
	if m.Sender == assistant.SenderAssistant {
		f.HTML = string(assistant.FormatReply(m.Text))
	}
	c.write(f)
}

func (c *chatConn) ThinkingChanged(active bool) {
	c.write(serverFrame{Type: "thinking", Active: &active})
}

// handleChat upgrades to a websocket and runs one assistant session for the
// lifetime of the connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	v, ok := s.views.Get(r.PathValue("viewID"))
	if !ok {
		http.Error(w, "view not found", http.StatusNotFound)
		return
	}
	logger := s.logger.WithFields(map[string]interface{}{
		"view":   v.ID,
		"report": v.Report.Record.ID,
	})

	// A nil interface, never a typed nil, marks the assistant unavailable.
	var gen assistant.Generator
	if v.Report.APIKey != "" && s.newGenerator != nil {
		g, err := s.newGenerator(v.Report.APIKey)
		if err != nil {
			logger.WithContext("error", err.Error()).Warn("assistant provider unavailable")
		} else if g != nil {
			gen = g
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithContext("error", err.Error()).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(chatReadLimit)

	client := &chatConn{conn: conn, logger: logger}
	session := assistant.NewSession(assistant.SessionConfig{
		Context:   v.Context,
		Generator: gen,
		Listener:  client,
		Timeout:   s.config.ChatTimeout,
		Logger:    logger,
	})
	defer session.Close()

	logger.WithContext("assistant", session.Available()).Debug("chat connected")
	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithContext("error", err.Error()).Debug("chat read failed")
			}
			return
		}
		if f.Type != "ask" {
			continue
		}
		if !session.Ask(f.Text) {
			logger.Debug("question ignored")
		}
	}
}
