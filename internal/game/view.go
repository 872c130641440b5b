package game

import "github.com/tablewire/rummy/internal/deck"

// PlayerView is one participant as broadcast to clients. Only the
// viewer's own hand carries cards; everyone else shows a count.
type PlayerView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	HandCount  int         `json:"handCount"`
	Hand       []deck.Card `json:"hand,omitempty"`
	IsMyTurn   bool        `json:"isMyTurn"`
	HasDropped bool        `json:"hasDropped"`
}

// View is the full public session state pushed to clients after every
// transition. Full-state push, not deltas: a reconnecting client is
// current after one message.
type View struct {
	RoomID              string       `json:"roomId"`
	Players             []PlayerView `json:"players"`
	CurrentTurnPlayerID string       `json:"currentTurnPlayerId,omitempty"`
	DeckCount           int          `json:"deckCount"`
	DiscardCount        int          `json:"discardCount"`
	DiscardTop          *deck.Card   `json:"discardTop,omitempty"`
	Status              Status       `json:"status"`
	MaxPlayers          int          `json:"maxPlayers"`
	WinnerID            string       `json:"winner,omitempty"`
}

// ViewFor renders the session as seen by one participant
func (s *Session) ViewFor(viewerID string) View {
	players := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		pv := PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			HandCount:  len(p.Hand),
			IsMyTurn:   p.IsMyTurn,
			HasDropped: p.HasDropped,
		}
		if p.ID == viewerID {
			pv.Hand = append([]deck.Card(nil), p.Hand...)
		}
		players[i] = pv
	}

	v := View{
		RoomID:              s.RoomID,
		Players:             players,
		CurrentTurnPlayerID: s.CurrentTurnPlayerID,
		DeckCount:           s.Deck.Len(),
		DiscardCount:        len(s.DiscardPile),
		Status:              s.Status,
		MaxPlayers:          s.MaxPlayers,
		WinnerID:            s.WinnerID,
	}
	if n := len(s.DiscardPile); n > 0 {
		top := s.DiscardPile[n-1]
		v.DiscardTop = &top
	}
	return v
}
