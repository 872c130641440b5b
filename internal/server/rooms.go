package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tablewire/rummy/internal/game"
	"github.com/tablewire/rummy/internal/matchmaking"
	"github.com/tablewire/rummy/internal/roomid"
	"github.com/tablewire/rummy/internal/store"
)

var (
	// ErrRoomNotFound means no live session record exists for the code.
	ErrRoomNotFound = errors.New("room not found")

	// ErrBadMaxPlayers rejects room creation outside the supported range.
	ErrBadMaxPlayers = errors.New("unsupported player count")
)

// Transport is what the room manager needs from the connection layer:
// resolve an opaque player id to its live channel, and fan a message
// out to a room. Injected so the orchestration is testable without a
// real socket registry.
type Transport interface {
	Resolve(playerID string) (Channel, bool)
	BroadcastToRoom(roomID string, msg *Message)
}

// RoomManager is the single entry point for every player action. Each
// operation is one load-mutate-save cycle against the store, serialized
// per room by a keyed mutex, followed by a full-state broadcast to the
// session's participants.
type RoomManager struct {
	store     store.Store
	queue     *matchmaking.Queue
	transport Transport
	cfg       game.Config
	locks     *keyedMutex
	logger    *log.Logger
}

// NewRoomManager creates the orchestrator over its collaborators
func NewRoomManager(st store.Store, queue *matchmaking.Queue, transport Transport, cfg game.Config, logger *log.Logger) *RoomManager {
	return &RoomManager{
		store:     st,
		queue:     queue,
		transport: transport,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		logger:    logger.WithPrefix("rooms"),
	}
}

// withSession runs one serialized state transition: lock the room, load
// the session, apply fn, persist. fn returning an error abandons the
// cycle with nothing written.
func (m *RoomManager) withSession(ctx context.Context, roomID string, fn func(*game.Session) error) (*game.Session, error) {
	unlock := m.locks.Lock(roomID)
	defer unlock()

	rec, version, err := m.store.GetSession(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	sess, err := game.FromRecord(rec, m.cfg)
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	if _, err := m.store.PutSession(ctx, sess.Record(), version); err != nil {
		return nil, err
	}
	return sess, nil
}

// CreateRoom allocates a fresh waiting session and returns its code
func (m *RoomManager) CreateRoom(ctx context.Context, ch Channel, maxPlayers int) (string, error) {
	if maxPlayers < matchmaking.MinGameSize || maxPlayers > matchmaking.MaxGameSize {
		return "", fmt.Errorf("%w: %d", ErrBadMaxPlayers, maxPlayers)
	}

	roomID, err := m.createRoom(ctx, maxPlayers)
	if err != nil {
		return "", err
	}

	m.logger.Info("Room created", "roomId", roomID, "maxPlayers", maxPlayers, "creator", ch.ID())
	return roomID, nil
}

func (m *RoomManager) createRoom(ctx context.Context, maxPlayers int) (string, error) {
	// Short codes collide eventually; losing the create CAS just means
	// another roll of the dice
	for attempt := 0; attempt < 5; attempt++ {
		code := roomid.Generate()
		sess := game.New(code, maxPlayers, m.cfg, nil)
		_, err := m.store.PutSession(ctx, sess.Record(), 0)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", errors.New("could not allocate a room code")
}

// JoinRoom adds the channel's player to a session, or re-attaches a
// returning player to their game in progress.
func (m *RoomManager) JoinRoom(ctx context.Context, ch Channel, roomID, name string) error {
	roomID = roomid.Normalize(roomID)

	var rejoined bool
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		var err error
		rejoined, err = s.Join(ch.ID(), name)
		return err
	})
	if err != nil {
		return err
	}

	ch.SetName(name)
	ch.SetRoom(roomID)
	if err := m.store.SetRoomFor(ctx, ch.ID(), roomID); err != nil {
		m.logger.Warn("Failed to index socket room", "socket", ch.ID(), "error", err)
	}

	if rejoined {
		m.logger.Info("Player rejoined", "roomId", roomID, "player", ch.ID())
		m.sendView(ch, sess)
		return nil
	}

	m.logger.Info("Player joined", "roomId", roomID, "player", ch.ID(), "name", name)
	m.broadcast(roomID, MessageTypePlayerJoined, PlayerJoinedData{
		RoomID:      roomID,
		PlayerID:    ch.ID(),
		PlayerName:  name,
		PlayerCount: len(sess.Players),
		MaxPlayers:  sess.MaxPlayers,
	})
	m.pushState(sess)
	return nil
}

// StartGame deals the hands and opens play
func (m *RoomManager) StartGame(ctx context.Context, ch Channel, roomID string) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.Start()
	})
	if err != nil {
		return err
	}

	m.logger.Info("Game started", "roomId", roomID, "players", len(sess.Players))
	m.broadcast(roomID, MessageTypeGameStarted, GameStartedData{RoomID: roomID})
	m.pushState(sess)
	return nil
}

// DrawCard draws from the stock or the discard pile into the acting
// player's hand
func (m *RoomManager) DrawCard(ctx context.Context, ch Channel, roomID string, fromDiscard bool) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		_, err := s.Draw(ch.ID(), fromDiscard)
		return err
	})
	if err != nil {
		return err
	}

	m.pushState(sess)
	return nil
}

// DiscardCard discards the named card and passes the turn
func (m *RoomManager) DiscardCard(ctx context.Context, ch Channel, roomID, cardID string) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.Discard(ch.ID(), cardID)
	})
	if err != nil {
		return err
	}

	m.pushState(sess)
	return nil
}

// RearrangeHand reorders the player's own hand for presentation
func (m *RoomManager) RearrangeHand(ctx context.Context, ch Channel, roomID string, orderIDs []string) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.Rearrange(ch.ID(), orderIDs)
	})
	if err != nil {
		return err
	}

	m.sendView(ch, sess)
	return nil
}

// Declare validates the acting player's melds and, if legal, ends the
// game with them as winner
func (m *RoomManager) Declare(ctx context.Context, ch Channel, roomID, discardID string, groups [][]string) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.Declare(ch.ID(), discardID, groups)
	})
	if err != nil {
		return err
	}

	m.logger.Info("Declare accepted", "roomId", roomID, "winner", ch.ID())
	m.broadcast(roomID, MessageTypeGameEnded, GameEndedData{
		RoomID:   roomID,
		WinnerID: sess.WinnerID,
		Reason:   "declared",
	})
	m.pushState(sess)
	return nil
}

// DebugWin ends the game immediately. Development aid; no validation.
func (m *RoomManager) DebugWin(ctx context.Context, ch Channel, roomID string) error {
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.DebugWin(ch.ID())
	})
	if err != nil {
		return err
	}

	m.logger.Info("Debug win", "roomId", roomID, "winner", ch.ID())
	m.broadcast(roomID, MessageTypeGameEnded, GameEndedData{
		RoomID:   roomID,
		WinnerID: sess.WinnerID,
		Reason:   "debug win",
	})
	m.pushState(sess)
	return nil
}

// JoinQueue puts the player in a matchmaking bucket and, when that fills
// the bucket, spins the matched batch up into a new session.
func (m *RoomManager) JoinQueue(ctx context.Context, ch Channel, name string, gameSize int) error {
	ch.SetName(name)

	match, count, err := m.queue.Join(ctx, store.QueueEntry{
		PlayerID:   ch.ID(),
		PlayerName: name,
		GameSize:   gameSize,
	})
	if err != nil {
		return err
	}

	ack, _ := NewMessage(MessageTypeQueueJoined, QueueJoinedData{
		GameSize:     gameSize,
		CurrentCount: count,
	})
	_ = ch.SendMessage(ack) // Ignore send errors

	if match != nil {
		m.startMatch(ctx, match)
	}
	return nil
}

// startMatch creates a session for a matched batch and joins every
// entry whose channel still resolves. Players who dropped between match
// formation and resolution are simply omitted; if that leaves too few
// to start, the room stays in waiting for its members to bail or
// recruit.
func (m *RoomManager) startMatch(ctx context.Context, match *matchmaking.Match) {
	roomID, err := m.createRoom(ctx, match.Size)
	if err != nil {
		m.logger.Error("Failed to create room for match", "error", err)
		return
	}

	for _, e := range match.Entries {
		ch, ok := m.transport.Resolve(e.PlayerID)
		if !ok {
			m.logger.Warn("Matched player no longer connected", "player", e.PlayerID)
			continue
		}
		if err := m.JoinRoom(ctx, ch, roomID, e.PlayerName); err != nil {
			m.logger.Warn("Matched player failed to join", "player", e.PlayerID, "error", err)
		}
	}

	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		return s.Start()
	})
	if err != nil {
		m.logger.Warn("Matched room could not start", "roomId", roomID, "error", err)
		return
	}

	m.logger.Info("Matched game started", "roomId", roomID, "players", len(sess.Players))
	m.broadcast(roomID, MessageTypeGameStarted, GameStartedData{RoomID: roomID})
	m.pushState(sess)
}

// Disconnect tears down everything the socket's player was part of:
// queue membership, then session roster per the in-game leave rules.
func (m *RoomManager) Disconnect(ctx context.Context, ch Channel) {
	if err := m.queue.Cancel(ctx, ch.ID()); err != nil {
		m.logger.Warn("Queue cancel failed on disconnect", "player", ch.ID(), "error", err)
	}

	roomID := ch.Room()
	if roomID == "" {
		if r, err := m.store.RoomFor(ctx, ch.ID()); err == nil {
			roomID = r
		}
	}
	if roomID == "" {
		return
	}

	var ended bool
	var name string
	sess, err := m.withSession(ctx, roomID, func(s *game.Session) error {
		if p := s.Player(ch.ID()); p != nil {
			name = p.Name
		}
		var err error
		ended, err = s.RemovePlayer(ch.ID())
		return err
	})
	if err != nil {
		if !errors.Is(err, game.ErrUnknownPlayer) && !errors.Is(err, ErrRoomNotFound) {
			m.logger.Error("Failed to remove disconnected player", "roomId", roomID, "error", err)
		}
		_ = m.store.ClearRoomFor(ctx, ch.ID())
		return
	}

	m.logger.Info("Player left", "roomId", roomID, "player", ch.ID(), "gameEnded", ended)
	m.broadcast(roomID, MessageTypePlayerLeft, PlayerLeftData{
		RoomID:     roomID,
		PlayerID:   ch.ID(),
		PlayerName: name,
	})
	if ended {
		m.broadcast(roomID, MessageTypeGameEnded, GameEndedData{
			RoomID:   roomID,
			WinnerID: sess.WinnerID,
			Reason:   "opponents disconnected",
		})
	}
	m.pushState(sess)

	_ = m.store.ClearRoomFor(ctx, ch.ID())
}

// pushState sends each participant their own view of the session
func (m *RoomManager) pushState(sess *game.Session) {
	for _, p := range sess.Players {
		ch, ok := m.transport.Resolve(p.ID)
		if !ok {
			continue
		}
		msg, err := NewMessage(MessageTypeGameUpdate, sess.ViewFor(p.ID))
		if err != nil {
			m.logger.Error("Failed to build game update", "error", err)
			continue
		}
		_ = ch.SendMessage(msg) // Ignore send errors
	}
}

// sendView unicasts the session state to one channel
func (m *RoomManager) sendView(ch Channel, sess *game.Session) {
	msg, err := NewMessage(MessageTypeGameUpdate, sess.ViewFor(ch.ID()))
	if err != nil {
		m.logger.Error("Failed to build game update", "error", err)
		return
	}
	_ = ch.SendMessage(msg) // Ignore send errors
}

// broadcast wraps a payload and fans it out to a room
func (m *RoomManager) broadcast(roomID string, mt MessageType, data interface{}) {
	msg, err := NewMessage(mt, data)
	if err != nil {
		m.logger.Error("Failed to build broadcast", "type", mt, "error", err)
		return
	}
	m.transport.BroadcastToRoom(roomID, msg)
}
