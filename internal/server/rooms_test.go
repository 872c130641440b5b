package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewire/rummy/internal/game"
	"github.com/tablewire/rummy/internal/matchmaking"
	"github.com/tablewire/rummy/internal/meld"
	"github.com/tablewire/rummy/internal/store"
)

// fakeChannel is an in-memory Channel capturing everything sent to it
type fakeChannel struct {
	mu   sync.Mutex
	id   string
	name string
	room string
	msgs []*Message
}

func (c *fakeChannel) ID() string   { return c.id }
func (c *fakeChannel) Name() string { c.mu.Lock(); defer c.mu.Unlock(); return c.name }
func (c *fakeChannel) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}
func (c *fakeChannel) Room() string { c.mu.Lock(); defer c.mu.Unlock(); return c.room }
func (c *fakeChannel) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = roomID
}
func (c *fakeChannel) SendMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

// lastOfType returns the most recent message of the given type, or nil
func (c *fakeChannel) lastOfType(mt MessageType) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == mt {
			return c.msgs[i]
		}
	}
	return nil
}

func (c *fakeChannel) countOfType(mt MessageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == mt {
			n++
		}
	}
	return n
}

// fakeTransport resolves fake channels and fans broadcasts out by room
type fakeTransport struct {
	mu       sync.Mutex
	channels map[string]*fakeChannel
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]*fakeChannel)}
}

func (t *fakeTransport) channel(id string) *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[id]
	if !ok {
		ch = &fakeChannel{id: id}
		t.channels[id] = ch
	}
	return ch
}

func (t *fakeTransport) Resolve(playerID string) (Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[playerID]
	return ch, ok
}

func (t *fakeTransport) BroadcastToRoom(roomID string, msg *Message) {
	t.mu.Lock()
	targets := make([]*fakeChannel, 0, len(t.channels))
	for _, ch := range t.channels {
		targets = append(targets, ch)
	}
	t.mu.Unlock()

	for _, ch := range targets {
		if ch.Room() == roomID {
			_ = ch.SendMessage(msg)
		}
	}
}

func newTestManager(t *testing.T) (*RoomManager, *fakeTransport) {
	t.Helper()
	st := store.NewMemory(store.DefaultTTLs(), nil)
	logger := log.New(io.Discard)
	tr := newFakeTransport()
	m := NewRoomManager(st, matchmaking.New(st, logger), tr, game.DefaultConfig(), logger)
	return m, tr
}

func decodeData[T any](t *testing.T, msg *Message) T {
	t.Helper()
	require.NotNil(t, msg)
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func latestView(t *testing.T, ch *fakeChannel) GameUpdateData {
	t.Helper()
	return decodeData[GameUpdateData](t, ch.lastOfType(MessageTypeGameUpdate))
}

// setupGame creates a room, joins n players and starts play. The first
// joiner holds the opening turn.
func setupGame(t *testing.T, m *RoomManager, tr *fakeTransport, n int) (string, []*fakeChannel) {
	t.Helper()
	ctx := context.Background()

	chs := make([]*fakeChannel, n)
	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank"}
	for i := range chs {
		chs[i] = tr.channel(names[i])
	}

	roomID, err := m.CreateRoom(ctx, chs[0], n)
	require.NoError(t, err)
	for i, ch := range chs {
		require.NoError(t, m.JoinRoom(ctx, ch, roomID, names[i]))
	}
	require.NoError(t, m.StartGame(ctx, chs[0], roomID))
	return roomID, chs
}

func TestCreateRoomValidation(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	ch := tr.channel("Alice")

	for _, n := range []int{0, 1, 7} {
		_, err := m.CreateRoom(ctx, ch, n)
		assert.ErrorIs(t, err, ErrBadMaxPlayers, "maxPlayers %d", n)
	}

	roomID, err := m.CreateRoom(ctx, ch, 4)
	require.NoError(t, err)
	assert.Len(t, roomID, 6)
}

func TestJoinRoomNotFound(t *testing.T) {
	m, tr := newTestManager(t)

	err := m.JoinRoom(context.Background(), tr.channel("Alice"), "zzzzzz", "Alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomNormalizesCode(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	ch := tr.channel("Alice")

	roomID, err := m.CreateRoom(ctx, ch, 2)
	require.NoError(t, err)

	// Codes are case-insensitive on the way in
	require.NoError(t, m.JoinRoom(ctx, ch, strings.ToUpper(roomID), "Alice"))
	assert.Equal(t, roomID, ch.Room())
}

func TestJoinBroadcastsAndPushesState(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	alice := tr.channel("Alice")
	bob := tr.channel("Bob")

	roomID, err := m.CreateRoom(ctx, alice, 2)
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, alice, roomID, "Alice"))
	require.NoError(t, m.JoinRoom(ctx, bob, roomID, "Bob"))

	joined := decodeData[PlayerJoinedData](t, alice.lastOfType(MessageTypePlayerJoined))
	assert.Equal(t, "Bob", joined.PlayerID)
	assert.Equal(t, 2, joined.PlayerCount)

	view := latestView(t, bob)
	assert.Equal(t, roomID, view.RoomID)
	assert.Equal(t, game.StatusWaiting, view.Status)
	assert.Len(t, view.Players, 2)
}

func TestJoinFullRoom(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.CreateRoom(ctx, tr.channel("Alice"), 2)
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, tr.channel("Alice"), roomID, "Alice"))
	require.NoError(t, m.JoinRoom(ctx, tr.channel("Bob"), roomID, "Bob"))

	err = m.JoinRoom(ctx, tr.channel("Carol"), roomID, "Carol")
	assert.ErrorIs(t, err, game.ErrRoomFull)
}

func TestRejoinSendsViewWithoutBroadcast(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	_, chs := setupGame(t, m, tr, 2)
	alice, bob := chs[0], chs[1]

	joinedBefore := bob.countOfType(MessageTypePlayerJoined)

	require.NoError(t, m.JoinRoom(ctx, alice, alice.Room(), "Alice"))

	assert.Equal(t, joinedBefore, bob.countOfType(MessageTypePlayerJoined),
		"rejoin must not announce a new player")
	view := latestView(t, alice)
	assert.Equal(t, game.StatusPlaying, view.Status)
}

func TestStartGameRedactsHands(t *testing.T) {
	m, tr := newTestManager(t)
	_, chs := setupGame(t, m, tr, 3)

	for _, ch := range chs {
		require.NotNil(t, ch.lastOfType(MessageTypeGameStarted))

		view := latestView(t, ch)
		assert.Equal(t, game.StatusPlaying, view.Status)
		for _, pv := range view.Players {
			assert.Equal(t, 13, pv.HandCount)
			if pv.ID == ch.ID() {
				assert.Len(t, pv.Hand, 13, "own hand visible")
			} else {
				assert.Nil(t, pv.Hand, "opponent hand %s leaked to %s", pv.ID, ch.ID())
			}
		}
	}
}

func TestDrawAndDiscardFlow(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	roomID, chs := setupGame(t, m, tr, 2)
	alice, bob := chs[0], chs[1]

	require.NoError(t, m.DrawCard(ctx, alice, roomID, false))
	view := latestView(t, alice)
	hand := view.Players[0].Hand
	require.Len(t, hand, 14)

	require.NoError(t, m.DiscardCard(ctx, alice, roomID, hand[0].ID))
	view = latestView(t, bob)
	assert.Equal(t, bob.ID(), view.CurrentTurnPlayerID, "turn passed on discard")
	assert.Equal(t, 2, view.DiscardCount)
}

func TestOutOfTurnActionsRejected(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	roomID, chs := setupGame(t, m, tr, 2)
	bob := chs[1]

	err := m.DrawCard(ctx, bob, roomID, false)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	view := latestView(t, bob)
	assert.Equal(t, chs[0].ID(), view.CurrentTurnPlayerID, "rejected draw must not move state")
}

func TestRearrangeUnicastsToActorOnly(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	roomID, chs := setupGame(t, m, tr, 2)
	alice, bob := chs[0], chs[1]

	view := latestView(t, bob)
	var hand []string
	for _, pv := range view.Players {
		if pv.ID == bob.ID() {
			for i := len(pv.Hand) - 1; i >= 0; i-- {
				hand = append(hand, pv.Hand[i].ID)
			}
		}
	}
	require.Len(t, hand, 13)

	aliceUpdates := alice.countOfType(MessageTypeGameUpdate)
	require.NoError(t, m.RearrangeHand(ctx, bob, roomID, hand))

	assert.Equal(t, aliceUpdates, alice.countOfType(MessageTypeGameUpdate),
		"a cosmetic reorder must not wake the other players")

	view = latestView(t, bob)
	for _, pv := range view.Players {
		if pv.ID == bob.ID() {
			assert.Equal(t, hand[0], pv.Hand[0].ID)
		}
	}
}

func TestDeclareInvalidRejected(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	roomID, chs := setupGame(t, m, tr, 2)
	alice := chs[0]

	require.NoError(t, m.DrawCard(ctx, alice, roomID, false))
	view := latestView(t, alice)
	hand := view.Players[0].Hand
	require.Len(t, hand, 14)

	// A random dealt hand lumped into arbitrary groups will not declare
	var groups [][]string
	for i := 1; i < len(hand); i += 4 {
		end := i + 4
		if end > len(hand) {
			end = len(hand)
		}
		g := make([]string, 0, end-i)
		for _, c := range hand[i:end] {
			g = append(g, c.ID)
		}
		groups = append(groups, g)
	}

	err := m.Declare(ctx, alice, roomID, hand[0].ID, groups)
	require.Error(t, err)
	assert.Equal(t, "invalid_declare", errorCode(err))

	view = latestView(t, alice)
	assert.Equal(t, game.StatusPlaying, view.Status, "failed declare leaves the game running")
}

func TestDebugWinEndsGame(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	roomID, chs := setupGame(t, m, tr, 2)
	alice, bob := chs[0], chs[1]

	require.NoError(t, m.DebugWin(ctx, bob, roomID))

	ended := decodeData[GameEndedData](t, alice.lastOfType(MessageTypeGameEnded))
	assert.Equal(t, bob.ID(), ended.WinnerID)
	assert.Equal(t, "debug win", ended.Reason)

	err := m.DrawCard(ctx, alice, roomID, false)
	assert.ErrorIs(t, err, game.ErrNotPlaying)
}

func TestJoinQueueFormsAndStartsMatch(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	alice := tr.channel("Alice")
	bob := tr.channel("Bob")

	require.NoError(t, m.JoinQueue(ctx, alice, "Alice", 2))
	ack := decodeData[QueueJoinedData](t, alice.lastOfType(MessageTypeQueueJoined))
	assert.Equal(t, 1, ack.CurrentCount)

	require.NoError(t, m.JoinQueue(ctx, bob, "Bob", 2))

	require.NotEmpty(t, alice.Room(), "matched player should land in a room")
	assert.Equal(t, alice.Room(), bob.Room())

	for _, ch := range []*fakeChannel{alice, bob} {
		require.NotNil(t, ch.lastOfType(MessageTypeGameStarted))
		view := latestView(t, ch)
		assert.Equal(t, game.StatusPlaying, view.Status)
		assert.Len(t, view.Players, 2)
	}
}

func TestJoinQueueBadSize(t *testing.T) {
	m, tr := newTestManager(t)

	err := m.JoinQueue(context.Background(), tr.channel("Alice"), "Alice", 9)
	assert.ErrorIs(t, err, matchmaking.ErrBadGameSize)
}

func TestDisconnectFromWaitingRoom(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	alice := tr.channel("Alice")
	bob := tr.channel("Bob")

	roomID, err := m.CreateRoom(ctx, alice, 3)
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, alice, roomID, "Alice"))
	require.NoError(t, m.JoinRoom(ctx, bob, roomID, "Bob"))

	m.Disconnect(ctx, bob)

	left := decodeData[PlayerLeftData](t, alice.lastOfType(MessageTypePlayerLeft))
	assert.Equal(t, bob.ID(), left.PlayerID)
	assert.Equal(t, "Bob", left.PlayerName)
	assert.Nil(t, alice.lastOfType(MessageTypeGameEnded), "waiting-room leave ends nothing")

	view := latestView(t, alice)
	assert.Len(t, view.Players, 1)
}

func TestDisconnectEndsTwoPlayerGame(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	_, chs := setupGame(t, m, tr, 2)
	alice, bob := chs[0], chs[1]

	m.Disconnect(ctx, bob)

	ended := decodeData[GameEndedData](t, alice.lastOfType(MessageTypeGameEnded))
	assert.Equal(t, alice.ID(), ended.WinnerID)
	assert.Equal(t, "opponents disconnected", ended.Reason)

	view := latestView(t, alice)
	assert.Equal(t, game.StatusEnded, view.Status)
}

func TestDisconnectPassesTurn(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	_, chs := setupGame(t, m, tr, 3)
	alice, bob := chs[0], chs[1]

	// Alice holds the opening turn; her leave hands it to Bob
	m.Disconnect(ctx, alice)

	view := latestView(t, bob)
	assert.Equal(t, game.StatusPlaying, view.Status)
	assert.Equal(t, bob.ID(), view.CurrentTurnPlayerID)
	assert.Len(t, view.Players, 2)
}

func TestDisconnectWhileQueued(t *testing.T) {
	m, tr := newTestManager(t)
	ctx := context.Background()
	alice := tr.channel("Alice")

	require.NoError(t, m.JoinQueue(ctx, alice, "Alice", 2))
	m.Disconnect(ctx, alice)

	// The vacated slot must not count toward the next match
	bob := tr.channel("Bob")
	require.NoError(t, m.JoinQueue(ctx, bob, "Bob", 2))
	ack := decodeData[QueueJoinedData](t, bob.lastOfType(MessageTypeQueueJoined))
	assert.Equal(t, 1, ack.CurrentCount)
	assert.Empty(t, bob.Room())
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrRoomNotFound, "room_not_found"},
		{ErrBadMaxPlayers, "bad_max_players"},
		{game.ErrRoomFull, "room_full"},
		{game.ErrNotYourTurn, "not_your_turn"},
		{game.ErrWrongHandSize, "wrong_hand_size"},
		{game.ErrCardNotFound, "card_not_found"},
		{game.ErrBadRearrange, "bad_rearrange"},
		{game.ErrDeckExhausted, "deck_exhausted"},
		{game.ErrDiscardEmpty, "discard_empty"},
		{game.ErrUnknownPlayer, "not_in_room"},
		{matchmaking.ErrBadGameSize, "bad_game_size"},
		{meld.ErrPureSequenceRequired, "invalid_declare"},
		{meld.ErrInvalidMeld, "invalid_declare"},
		{store.ErrCorrupt, "corrupt_session"},
		{errors.New("boom"), "internal_error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, errorCode(tt.err), "%v", tt.err)
	}
}
