package deck

import (
	rand "math/rand/v2"
	"sort"
	"time"

	"github.com/tablewire/rummy/internal/randutil"
)

// Deck is an ordered stack of cards, front = next to draw. A session
// builds its deck once (two decks plus jokers by convention) and never
// regenerates it; restores rebuild the exact remaining draw order.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a deck of numDecks full 52-card sets plus numJokers printed
// jokers, shuffled once. Every card gets a fresh unique id.
func New(numDecks, numJokers int, rng *rand.Rand) *Deck {
	if rng == nil {
		rng = randutil.New(time.Now().UnixNano())
	}

	d := &Deck{
		cards: make([]Card, 0, numDecks*52+numJokers),
		rng:   rng,
	}

	for i := 0; i < numDecks; i++ {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Ace; rank <= King; rank++ {
				d.cards = append(d.cards, NewCard(suit, rank))
			}
		}
	}
	for i := 0; i < numJokers; i++ {
		d.cards = append(d.cards, NewJoker())
	}

	d.shuffle()
	return d
}

// Restore rebuilds a deck from a persisted snapshot, preserving draw order.
func Restore(cards []Card) *Deck {
	d := &Deck{
		cards: make([]Card, len(cards)),
		rng:   randutil.New(time.Now().UnixNano()),
	}
	copy(d.cards, cards)
	return d
}

// shuffle randomizes the card order (Fisher-Yates)
func (d *Deck) shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the first n cards. A short deal returns
// whatever remains; callers must check the returned length.
func (d *Deck) Deal(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}

	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards
}

// Draw removes and returns the front card
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}

	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Recycle adds the given cards back as the new stock and reshuffles.
// Used when the stock runs out and the discard pile is folded back in.
func (d *Deck) Recycle(cards []Card) {
	d.cards = append(d.cards, cards...)
	d.shuffle()
}

// Len returns the number of cards left in the deck
func (d *Deck) Len() int {
	return len(d.cards)
}

// Empty returns true if the deck has no cards left
func (d *Deck) Empty() bool {
	return len(d.cards) == 0
}

// Snapshot returns a copy of the remaining card sequence for persistence
func (d *Deck) Snapshot() []Card {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	return cards
}

// SortForDisplay orders a hand by suit then rank, jokers last. Dealt
// hands are sorted once so clients see a stable initial layout.
func SortForDisplay(hand []Card) {
	sort.SliceStable(hand, func(i, j int) bool {
		a, b := hand[i], hand[j]
		if a.Joker != b.Joker {
			return !a.Joker
		}
		if a.Suit != b.Suit {
			return a.Suit < b.Suit
		}
		return a.Rank < b.Rank
	})
}
