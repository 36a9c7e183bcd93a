package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgMatchState     MessageType = "match_state"
	MsgCountdown      MessageType = "countdown"
	MsgAnswerRecorded MessageType = "answer_recorded"
	MsgQuestionsReady MessageType = "questions_ready"
	MsgError          MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages the per-match WebSocket connections of both players.
type Hub struct {
	// matchID -> userID -> conn
	conns map[string]map[string]*Connection

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage

	log *logrus.Logger
}

// Connection represents one player's WebSocket connection to a match.
type Connection struct {
	MatchID string
	UserID  string
	Send    chan []byte
	Hub     *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	MatchID string
	ToUser  string // Empty means both players
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub(log *logrus.Logger) *Hub {
	h := &Hub{
		conns:      make(map[string]map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.MatchID] == nil {
				h.conns[conn.MatchID] = make(map[string]*Connection)
			}
			if existing, ok := h.conns[conn.MatchID][conn.UserID]; ok && existing != conn {
				close(existing.Send)
			}
			h.conns[conn.MatchID][conn.UserID] = conn
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{
				"matchId": conn.MatchID,
				"userId":  conn.UserID,
			}).Info("player connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if players, ok := h.conns[conn.MatchID]; ok {
				if existing, ok := players[conn.UserID]; ok && existing == conn {
					delete(players, conn.UserID)
					close(conn.Send)
					if len(players) == 0 {
						delete(h.conns, conn.MatchID)
					}
				}
			}
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{
				"matchId": conn.MatchID,
				"userId":  conn.UserID,
			}).Info("player disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)
			if players, ok := h.conns[msg.MatchID]; ok {
				for uid, conn := range players {
					if msg.ToUser != "" && msg.ToUser != uid {
						continue
					}
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// ToPlayer sends a message to one player of a match (implements service.Broadcaster)
func (h *Hub) ToPlayer(matchID, userID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		MatchID: matchID,
		ToUser:  userID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// ToMatch sends a message to both players of a match (implements service.Broadcaster)
func (h *Hub) ToMatch(matchID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		MatchID: matchID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}
