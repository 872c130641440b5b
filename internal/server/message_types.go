package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants. Client requests use snake_case
// verbs; server events use dashed names, matching the wire protocol the
// web client speaks.
const (
	// Client to server messages
	MessageTypeCreateRoom    MessageType = "create_room"
	MessageTypeJoinRoom      MessageType = "join_room"
	MessageTypeJoinQueue     MessageType = "join_queue"
	MessageTypeStartGame     MessageType = "start_game"
	MessageTypeDrawCard      MessageType = "draw_card"
	MessageTypeDiscardCard   MessageType = "discard_card"
	MessageTypeRearrangeHand MessageType = "rearrange_hand"
	MessageTypeDeclare       MessageType = "declare"
	MessageTypeDebugWin      MessageType = "debug_win"

	// Server to client messages
	MessageTypeRoomCreated  MessageType = "room-created"
	MessageTypePlayerJoined MessageType = "player-joined"
	MessageTypeGameStarted  MessageType = "game-started"
	MessageTypeGameUpdate   MessageType = "game-update"
	MessageTypePlayerLeft   MessageType = "player-left"
	MessageTypeGameEnded    MessageType = "game-ended"
	MessageTypeQueueJoined  MessageType = "queue-joined"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
