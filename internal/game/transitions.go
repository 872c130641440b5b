package game

import (
	"github.com/tablewire/rummy/internal/deck"
	"github.com/tablewire/rummy/internal/meld"
)

// Join adds a player to a waiting session. Joining a session you already
// belong to is a no-op that reports rejoined=true, which is how a client
// reconnects to a game in progress.
func (s *Session) Join(playerID, name string) (rejoined bool, err error) {
	if s.indexOf(playerID) >= 0 {
		return true, nil
	}
	if s.Status != StatusWaiting {
		return false, ErrAlreadyStarted
	}
	if len(s.Players) >= s.MaxPlayers {
		return false, ErrRoomFull
	}

	s.Players = append(s.Players, &PlayerState{
		ID:   playerID,
		Name: name,
		Hand: []deck.Card{},
	})
	return false, nil
}

// Start deals the opening hands, seeds the discard pile and hands the
// turn to the first joined player. Two decks plus jokers cover 13 cards
// each up to 6 players; a short deal means the session was configured
// with an impossible player count and is rejected outright.
func (s *Session) Start() error {
	if s.Status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(s.Players) < s.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}
	if s.Deck.Len() < s.cfg.CardsPerHand*len(s.Players)+1 {
		return ErrShortDeck
	}

	for _, p := range s.Players {
		p.Hand = s.Deck.Deal(s.cfg.CardsPerHand)
		deck.SortForDisplay(p.Hand)
	}

	seed, _ := s.Deck.Draw()
	s.DiscardPile = append(s.DiscardPile, seed)

	s.Status = StatusPlaying
	s.Players[0].IsMyTurn = true
	s.CurrentTurnPlayerID = s.Players[0].ID
	return nil
}

// Draw takes one card into the acting player's hand, from the discard
// pile top or the stock. The 13-card gate enforces one draw per turn.
func (s *Session) Draw(playerID string, fromDiscard bool) (deck.Card, error) {
	p, err := s.turnPlayer(playerID, s.cfg.CardsPerHand)
	if err != nil {
		return deck.Card{}, err
	}

	var card deck.Card
	if fromDiscard {
		if len(s.DiscardPile) == 0 {
			return deck.Card{}, ErrDiscardEmpty
		}
		card = s.DiscardPile[len(s.DiscardPile)-1]
		s.DiscardPile = s.DiscardPile[:len(s.DiscardPile)-1]
	} else {
		var ok bool
		card, ok = s.Deck.Draw()
		if !ok {
			if err := s.recycleStock(); err != nil {
				return deck.Card{}, err
			}
			card, ok = s.Deck.Draw()
			if !ok {
				return deck.Card{}, ErrDeckExhausted
			}
		}
	}

	p.Hand = append(p.Hand, card)
	return card, nil
}

// recycleStock folds the discard pile below its top card back into a
// freshly shuffled stock.
func (s *Session) recycleStock() error {
	if !s.cfg.RecycleDiscards || len(s.DiscardPile) < 2 {
		return ErrDeckExhausted
	}

	top := s.DiscardPile[len(s.DiscardPile)-1]
	s.Deck.Recycle(s.DiscardPile[:len(s.DiscardPile)-1])
	s.DiscardPile = []deck.Card{top}
	return nil
}

// Discard moves the named card from the acting player's hand to the top
// of the discard pile and passes the turn. This is the sole
// turn-advance trigger. Naming a card the player does not hold rejects
// the whole action; nothing else may be silently discarded instead.
func (s *Session) Discard(playerID, cardID string) error {
	p, err := s.turnPlayer(playerID, s.cfg.CardsPerHand+1)
	if err != nil {
		return err
	}

	card, ok := removeCard(&p.Hand, cardID)
	if !ok {
		return ErrCardNotFound
	}

	s.DiscardPile = append(s.DiscardPile, card)
	s.advanceTurn()
	return nil
}

// advanceTurn moves the turn flag to the next player in join order
func (s *Session) advanceTurn() {
	cur := s.indexOf(s.CurrentTurnPlayerID)
	if cur < 0 {
		return
	}
	s.Players[cur].IsMyTurn = false
	next := s.Players[(cur+1)%len(s.Players)]
	next.IsMyTurn = true
	s.CurrentTurnPlayerID = next.ID
}

// Rearrange reorders a player's own hand to match orderIDs exactly.
// Purely a presentation aid: no turn gate, no engine effect. Anything
// other than a permutation of the current hand is rejected untouched.
func (s *Session) Rearrange(playerID string, orderIDs []string) error {
	p := s.Player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if len(orderIDs) != len(p.Hand) {
		return ErrBadRearrange
	}

	byID := make(map[string]deck.Card, len(p.Hand))
	for _, c := range p.Hand {
		byID[c.ID] = c
	}

	next := make([]deck.Card, 0, len(orderIDs))
	for _, id := range orderIDs {
		c, ok := byID[id]
		if !ok {
			return ErrBadRearrange
		}
		delete(byID, id)
		next = append(next, c)
	}

	p.Hand = next
	return nil
}

// Declare is the winning claim: the acting player discards one nominated
// card, and the remaining hand must partition into valid melds under the
// session's rules. An invalid declare rejects without touching the hand.
func (s *Session) Declare(playerID, discardID string, groups [][]string) error {
	p, err := s.turnPlayer(playerID, s.cfg.CardsPerHand+1)
	if err != nil {
		return err
	}

	di := -1
	for i, c := range p.Hand {
		if c.ID == discardID {
			di = i
			break
		}
	}
	if di < 0 {
		return ErrCardNotFound
	}

	rest := make([]deck.Card, 0, len(p.Hand)-1)
	rest = append(rest, p.Hand[:di]...)
	rest = append(rest, p.Hand[di+1:]...)

	if err := meld.ValidateDeclare(rest, groups, s.cfg.Meld); err != nil {
		return err
	}

	card, _ := removeCard(&p.Hand, discardID)
	s.DiscardPile = append(s.DiscardPile, card)
	s.end(playerID)
	return nil
}

// DebugWin ends the game immediately with the acting player as winner,
// bypassing declare validation. Development aid only.
func (s *Session) DebugWin(playerID string) error {
	if s.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if s.Player(playerID) == nil {
		return ErrUnknownPlayer
	}

	s.end(playerID)
	return nil
}

// RemovePlayer drops a participant from the roster. During waiting the
// player just leaves. During play, the turn flag (if held) passes to
// whoever now occupies the vacated roster slot, wrapping to the first
// player when the leaver was last; a session down to one player ends
// with that player as winner. Returns whether the game ended.
func (s *Session) RemovePlayer(playerID string) (ended bool, err error) {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return false, ErrUnknownPlayer
	}

	hadTurn := s.Players[idx].IsMyTurn
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)

	if s.Status != StatusPlaying {
		return false, nil
	}

	if len(s.Players) == 1 {
		s.end(s.Players[0].ID)
		return true, nil
	}

	if hadTurn {
		next := s.Players[idx%len(s.Players)]
		next.IsMyTurn = true
		s.CurrentTurnPlayerID = next.ID
	}
	return false, nil
}

// end marks the session finished with the given winner
func (s *Session) end(winnerID string) {
	s.Status = StatusEnded
	s.WinnerID = winnerID
	for _, p := range s.Players {
		p.IsMyTurn = false
	}
	s.CurrentTurnPlayerID = ""
}

func removeCard(hand *[]deck.Card, cardID string) (deck.Card, bool) {
	for i, c := range *hand {
		if c.ID == cardID {
			*hand = append((*hand)[:i], (*hand)[i+1:]...)
			return c, true
		}
	}
	return deck.Card{}, false
}
