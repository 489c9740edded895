package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kamillle/rag-sample/internal/models"
)

const (
	MessageAsk      = "ask"
	MessageStatus   = "status"
	MessageResponse = "response"
	MessageNoAnswer = "no_answer"
	MessageError    = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Source is the JSON form of a retrieved node.
type Source struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

func toSources(nodes []models.ScoredNode) []Source {
	sources := make([]Source, 0, len(nodes))
	for _, n := range nodes {
		sources = append(sources, Source{
			ID:       n.ID,
			Source:   n.Source,
			Position: n.Position,
			Text:     n.Text,
			Score:    n.Score,
		})
	}
	return sources
}

// handleWebSocket answers ask messages one at a time over a single
// connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBytes)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, Message{Type: MessageError, Content: "invalid message"})
			continue
		}
		if msg.Type != "" && msg.Type != MessageAsk {
			s.sendMessage(conn, Message{Type: MessageError, Content: "unsupported message type: " + msg.Type})
			continue
		}

		s.handleAskMessage(r, conn, msg)
	}
}

func (s *Server) handleAskMessage(r *http.Request, conn *websocket.Conn, msg Message) {
	s.sendMessage(conn, Message{Type: MessageStatus, Content: "searching"})

	resp, err := s.asker.Ask(r.Context(), msg.Content)
	if err != nil {
		status := StatusFor(err)
		s.logger.Error("ask failed", zap.Int("status", status), zap.Error(err))
		s.sendMessage(conn, Message{Type: MessageError, Content: userMessage(status), Data: map[string]int{"status": status}})
		return
	}

	msgType := MessageResponse
	if !resp.Found {
		msgType = MessageNoAnswer
	}
	s.sendMessage(conn, Message{
		Type:    msgType,
		Content: resp.Answer,
		Data:    toSources(resp.Sources),
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", zap.Error(err))
	}
}
