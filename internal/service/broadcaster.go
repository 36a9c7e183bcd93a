package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	ToPlayer(matchID, userID string, msgType string, payload interface{})
	ToMatch(matchID string, msgType string, payload interface{})
}
