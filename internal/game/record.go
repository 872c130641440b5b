package game

import (
	"fmt"

	"github.com/tablewire/rummy/internal/deck"
)

// SessionRecord is the persisted shape of a session plus its deck
// snapshot: one unit of persistence, always read and written together.
// DeckCount is stored redundantly and checked on load so a truncated or
// hand-edited record fails loudly instead of producing a short deck.
type SessionRecord struct {
	RoomID              string        `json:"roomId"`
	Players             []PlayerState `json:"players"`
	CurrentTurnPlayerID string        `json:"currentTurnPlayerId,omitempty"`
	Deck                []deck.Card   `json:"deck"`
	DeckCount           int           `json:"deckCount"`
	DiscardPile         []deck.Card   `json:"discardPile"`
	Status              Status        `json:"status"`
	MaxPlayers          int           `json:"maxPlayers"`
	WinnerID            string        `json:"winner,omitempty"`
}

// Record snapshots the session for persistence
func (s *Session) Record() *SessionRecord {
	players := make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
		players[i].Hand = append([]deck.Card(nil), p.Hand...)
	}

	snapshot := s.Deck.Snapshot()
	return &SessionRecord{
		RoomID:              s.RoomID,
		Players:             players,
		CurrentTurnPlayerID: s.CurrentTurnPlayerID,
		Deck:                snapshot,
		DeckCount:           len(snapshot),
		DiscardPile:         append([]deck.Card(nil), s.DiscardPile...),
		Status:              s.Status,
		MaxPlayers:          s.MaxPlayers,
		WinnerID:            s.WinnerID,
	}
}

// FromRecord rehydrates a session from its persisted record
func FromRecord(rec *SessionRecord, cfg Config) (*Session, error) {
	if rec.RoomID == "" {
		return nil, fmt.Errorf("%w: missing room id", ErrCorruptRecord)
	}
	switch rec.Status {
	case StatusWaiting, StatusPlaying, StatusEnded:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrCorruptRecord, rec.Status)
	}
	if rec.DeckCount != len(rec.Deck) {
		return nil, fmt.Errorf("%w: deck count %d does not match %d stored cards",
			ErrCorruptRecord, rec.DeckCount, len(rec.Deck))
	}

	turns := 0
	players := make([]*PlayerState, len(rec.Players))
	for i := range rec.Players {
		p := rec.Players[i]
		p.Hand = append([]deck.Card(nil), p.Hand...)
		players[i] = &p
		if p.IsMyTurn {
			turns++
		}
	}
	if rec.Status == StatusPlaying && turns != 1 {
		return nil, fmt.Errorf("%w: %d players hold the turn", ErrCorruptRecord, turns)
	}

	return &Session{
		RoomID:              rec.RoomID,
		Players:             players,
		CurrentTurnPlayerID: rec.CurrentTurnPlayerID,
		Deck:                deck.Restore(rec.Deck),
		DiscardPile:         append([]deck.Card(nil), rec.DiscardPile...),
		Status:              rec.Status,
		MaxPlayers:          rec.MaxPlayers,
		WinnerID:            rec.WinnerID,
		cfg:                 cfg,
	}, nil
}
