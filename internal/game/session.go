// Package game holds the authoritative per-session state machine:
// roster, hands, deck, discard pile and turn order, with one method per
// player-visible transition. Methods either apply fully or reject with a
// typed error; a session is never left half-mutated.
package game

import (
	"errors"
	rand "math/rand/v2"

	"github.com/tablewire/rummy/internal/deck"
	"github.com/tablewire/rummy/internal/meld"
)

// Status is the session lifecycle state
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNotPlaying       = errors.New("game is not in progress")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrWrongHandSize    = errors.New("wrong hand size for this action")
	ErrUnknownPlayer    = errors.New("player not in session")
	ErrCardNotFound     = errors.New("card not in hand")
	ErrBadRearrange     = errors.New("reorder is not a permutation of the hand")
	ErrDeckExhausted    = errors.New("deck exhausted")
	ErrDiscardEmpty     = errors.New("discard pile is empty")
	ErrShortDeck        = errors.New("deck too small for player count")
	ErrCorruptRecord    = errors.New("corrupt session record")
)

// Config holds the per-session game parameters
type Config struct {
	NumDecks     int
	NumJokers    int
	CardsPerHand int
	MinPlayers   int

	// RecycleDiscards folds the discard pile (minus its top card) back
	// into a freshly shuffled stock when the deck runs out mid-draw.
	// With it off an empty stock fails the draw with ErrDeckExhausted.
	RecycleDiscards bool

	Meld meld.Rules
}

// DefaultConfig returns the standard two-deck game: 13-card hands,
// two printed jokers, discard recycling on.
func DefaultConfig() Config {
	return Config{
		NumDecks:        2,
		NumJokers:       2,
		CardsPerHand:    13,
		MinPlayers:      2,
		RecycleDiscards: true,
		Meld:            meld.DefaultRules(),
	}
}

// PlayerState is one participant's slice of the session
type PlayerState struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Hand       []deck.Card `json:"hand"`
	IsMyTurn   bool        `json:"isMyTurn"`
	HasDropped bool        `json:"hasDropped"`
}

// Session is the aggregate root for one match. Player order is fixed at
// join time and defines the turn rotation. The deck and the session are
// one unit of persistence; they are only ever saved and loaded together.
type Session struct {
	RoomID              string
	Players             []*PlayerState
	CurrentTurnPlayerID string
	Deck                *deck.Deck
	DiscardPile         []deck.Card
	Status              Status
	MaxPlayers          int
	WinnerID            string

	cfg Config
}

// New creates a waiting session with a fresh shuffled deck. rng may be
// nil for a time-seeded shuffle.
func New(roomID string, maxPlayers int, cfg Config, rng *rand.Rand) *Session {
	return &Session{
		RoomID:     roomID,
		Players:    []*PlayerState{},
		Deck:       deck.New(cfg.NumDecks, cfg.NumJokers, rng),
		Status:     StatusWaiting,
		MaxPlayers: maxPlayers,
		cfg:        cfg,
	}
}

// Config returns the session's game parameters
func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) indexOf(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns the state for a participant, or nil if absent
func (s *Session) Player(playerID string) *PlayerState {
	if i := s.indexOf(playerID); i >= 0 {
		return s.Players[i]
	}
	return nil
}

// turnPlayer validates the acting player holds the turn with the
// expected hand size; every mid-game action gates through here.
func (s *Session) turnPlayer(playerID string, handSize int) (*PlayerState, error) {
	if s.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	p := s.Player(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if !p.IsMyTurn {
		return nil, ErrNotYourTurn
	}
	if len(p.Hand) != handSize {
		return nil, ErrWrongHandSize
	}
	return p, nil
}
