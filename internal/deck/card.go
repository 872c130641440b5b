package deck

import (
	"fmt"

	"github.com/google/uuid"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. Aces are low: A=1 through K=13,
// the ordering rummy sequences are built on.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return "?"
	}
}

// Card represents a single card in a session's card pool. ID is unique
// within the pool so the same rank and suit from different decks stay
// distinguishable. Printed jokers carry a zero suit and rank; game logic
// must key off Joker, never off those fields.
type Card struct {
	Suit  Suit   `json:"suit"`
	Rank  Rank   `json:"rank"`
	Joker bool   `json:"joker,omitempty"`
	ID    string `json:"id"`
}

// NewCard creates a new suited card with a fresh unique id
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank, ID: uuid.NewString()}
}

// NewJoker creates a new printed joker with a fresh unique id
func NewJoker() Card {
	return Card{Joker: true, ID: uuid.NewString()}
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	if c.Joker {
		return "JK"
	}
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Value returns the numeric rank value used for sequence ordering (A=1)
func (c Card) Value() int {
	return int(c.Rank)
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return !c.Joker && c.Suit.IsRed()
}
