package server

import (
	"encoding/json"
	"time"

	"github.com/tablewire/rummy/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type CreateRoomData struct {
	MaxPlayers int `json:"maxPlayers"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type JoinQueueData struct {
	Name     string `json:"name"`
	GameSize int    `json:"gameSize"`
}

type StartGameData struct {
	RoomID string `json:"roomId"`
}

type DrawCardData struct {
	RoomID      string `json:"roomId"`
	FromDiscard bool   `json:"fromDiscard"`
}

type DiscardCardData struct {
	RoomID string `json:"roomId"`
	CardID string `json:"cardId"`
}

type RearrangeHandData struct {
	RoomID   string   `json:"roomId"`
	OrderIDs []string `json:"newOrderIds"`
}

type DeclareData struct {
	RoomID    string     `json:"roomId"`
	DiscardID string     `json:"discardId"`
	Groups    [][]string `json:"groups"`
}

type DebugWinData struct {
	RoomID string `json:"roomId"`
}

// Server → Client Messages

type RoomCreatedData struct {
	RoomID string `json:"roomId"`
}

type PlayerJoinedData struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

type GameStartedData struct {
	RoomID string `json:"roomId"`
}

type PlayerLeftData struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type GameEndedData struct {
	RoomID   string `json:"roomId"`
	WinnerID string `json:"winnerId"`
	Reason   string `json:"reason"`
}

type QueueJoinedData struct {
	GameSize     int `json:"gameSize"`
	CurrentCount int `json:"currentCount"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GameUpdateData is the full per-viewer session state. Alias of the
// game view: broadcasts push complete state, never deltas.
type GameUpdateData = game.View
