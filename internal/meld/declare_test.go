package meld

import (
	"errors"
	"testing"

	"github.com/tablewire/rummy/internal/deck"
)

// winningHand builds a 13-card hand that partitions into two pure
// sequences and two sets, returning the hand and the id groups.
func winningHand() ([]deck.Card, [][]string) {
	groups := [][]deck.Card{
		{card(deck.Spades, 2), card(deck.Spades, 3), card(deck.Spades, 4)},
		{card(deck.Hearts, 5), card(deck.Hearts, 6), card(deck.Hearts, 7)},
		{card(deck.Spades, 9), card(deck.Hearts, 9), card(deck.Diamonds, 9)},
		{card(deck.Spades, deck.Jack), card(deck.Hearts, deck.Jack), card(deck.Diamonds, deck.Jack), card(deck.Clubs, deck.Jack)},
	}

	var hand []deck.Card
	ids := make([][]string, len(groups))
	for i, g := range groups {
		for _, c := range g {
			hand = append(hand, c)
			ids[i] = append(ids[i], c.ID)
		}
	}
	return hand, ids
}

func TestValidateDeclareLegal(t *testing.T) {
	hand, groups := winningHand()
	if err := ValidateDeclare(hand, groups, DefaultRules()); err != nil {
		t.Errorf("legal declare rejected: %v", err)
	}
}

func TestValidateDeclareMissingPureSequence(t *testing.T) {
	// Three sets and an impure sequence: no pure sequence anywhere
	j1, j2 := joker(), joker()
	groups := [][]deck.Card{
		{card(deck.Spades, 2), card(deck.Spades, 4), j1},
		{card(deck.Hearts, 5), card(deck.Diamonds, 5), card(deck.Clubs, 5)},
		{card(deck.Spades, 9), card(deck.Hearts, 9), card(deck.Diamonds, 9)},
		{card(deck.Spades, deck.Jack), card(deck.Hearts, deck.Jack), card(deck.Diamonds, deck.Jack), j2},
	}

	var hand []deck.Card
	ids := make([][]string, len(groups))
	for i, g := range groups {
		for _, c := range g {
			hand = append(hand, c)
			ids[i] = append(ids[i], c.ID)
		}
	}

	err := ValidateDeclare(hand, ids, DefaultRules())
	if !errors.Is(err, ErrPureSequenceRequired) {
		t.Errorf("error = %v, want ErrPureSequenceRequired", err)
	}
}

func TestValidateDeclareTwoPureSequencesVariant(t *testing.T) {
	hand, groups := winningHand()

	rules := DefaultRules()
	rules.RequiredPureSequences = 2
	if err := ValidateDeclare(hand, groups, rules); err != nil {
		t.Errorf("hand with two pure sequences rejected under stricter variant: %v", err)
	}

	rules.RequiredPureSequences = 3
	if err := ValidateDeclare(hand, groups, rules); !errors.Is(err, ErrPureSequenceRequired) {
		t.Errorf("error = %v, want ErrPureSequenceRequired", err)
	}
}

func TestValidateDeclareIncomplete(t *testing.T) {
	hand, groups := winningHand()

	err := ValidateDeclare(hand, groups[:3], DefaultRules())
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("error = %v, want ErrIncomplete", err)
	}
}

func TestValidateDeclareUnknownCard(t *testing.T) {
	hand, groups := winningHand()
	groups[0][0] = "not-a-card"

	err := ValidateDeclare(hand, groups, DefaultRules())
	if !errors.Is(err, ErrUnknownCard) {
		t.Errorf("error = %v, want ErrUnknownCard", err)
	}
}

func TestValidateDeclareDuplicateCard(t *testing.T) {
	hand, groups := winningHand()
	groups[2][0] = groups[0][0]

	err := ValidateDeclare(hand, groups, DefaultRules())
	if !errors.Is(err, ErrDuplicateCard) {
		t.Errorf("error = %v, want ErrDuplicateCard", err)
	}
}

func TestValidateDeclareInvalidGroup(t *testing.T) {
	hand, groups := winningHand()
	// Swap two cards between groups so both become nonsense
	groups[0][0], groups[2][0] = groups[2][0], groups[0][0]

	err := ValidateDeclare(hand, groups, DefaultRules())
	if !errors.Is(err, ErrInvalidMeld) {
		t.Errorf("error = %v, want ErrInvalidMeld", err)
	}
}
