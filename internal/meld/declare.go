package meld

import (
	"errors"
	"fmt"

	"github.com/tablewire/rummy/internal/deck"
)

var (
	// ErrUnknownCard means a declared group names a card id the player
	// does not hold.
	ErrUnknownCard = errors.New("card not in hand")

	// ErrDuplicateCard means the same card id appears in more than one
	// group.
	ErrDuplicateCard = errors.New("card declared twice")

	// ErrIncomplete means the groups do not cover the player's full hand.
	ErrIncomplete = errors.New("groups do not cover the full hand")

	// ErrInvalidMeld means some group is neither a sequence nor a set.
	ErrInvalidMeld = errors.New("group is not a valid meld")

	// ErrPureSequenceRequired means the declare lacks the required number
	// of pure sequences.
	ErrPureSequenceRequired = errors.New("declare needs a pure sequence")
)

// ValidateDeclare judges whether groups of card ids form a winning hand.
// A declare is legal iff the groups exactly partition the hand (no card
// missing, none used twice, none unknown), every group classifies as a
// sequence or set, and at least Rules.RequiredPureSequences of them are
// pure sequences.
func ValidateDeclare(hand []deck.Card, groups [][]string, rules Rules) error {
	byID := make(map[string]deck.Card, len(hand))
	for _, c := range hand {
		byID[c.ID] = c
	}

	used := make(map[string]bool, len(hand))
	pure := 0
	for i, ids := range groups {
		cards := make([]deck.Card, 0, len(ids))
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				return fmt.Errorf("group %d: %w", i, ErrUnknownCard)
			}
			if used[id] {
				return fmt.Errorf("group %d: %w", i, ErrDuplicateCard)
			}
			used[id] = true
			cards = append(cards, c)
		}

		switch Classify(cards, rules) {
		case PureSequence:
			pure++
		case ImpureSequence, Set:
		default:
			return fmt.Errorf("group %d: %w", i, ErrInvalidMeld)
		}
	}

	if len(used) != len(hand) {
		return ErrIncomplete
	}
	if pure < rules.RequiredPureSequences {
		return ErrPureSequenceRequired
	}
	return nil
}
