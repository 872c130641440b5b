// Package meld classifies groups of cards into rummy melds and judges
// whether a full hand is a legal declare. Everything here is pure: no
// state, no transport, just card math over the session's card pool.
package meld

import (
	"sort"

	"github.com/tablewire/rummy/internal/deck"
)

// Kind is the classification of a card group
type Kind int

const (
	Invalid Kind = iota
	PureSequence
	ImpureSequence
	Set
)

// String returns the string representation of a meld kind
func (k Kind) String() string {
	switch k {
	case PureSequence:
		return "pure_sequence"
	case ImpureSequence:
		return "impure_sequence"
	case Set:
		return "set"
	default:
		return "invalid"
	}
}

// Rules holds the variant knobs for classification and declares.
//
// WildRank designates a rank (independent of printed jokers) whose cards
// substitute for anything in sets and impure sequences; zero means no
// wildcard this round. AllowWrapAround permits Q-K-A as a run; the
// conventional game forbids it, so it defaults off. RequiredPureSequences
// is how many groups of a declare must be pure; rule books disagree
// between one and two, so it's a knob rather than a guess.
type Rules struct {
	WildRank              deck.Rank
	AllowWrapAround       bool
	RequiredPureSequences int
}

// DefaultRules returns the default variant: no wildcard, no wraparound,
// one pure sequence required to declare.
func DefaultRules() Rules {
	return Rules{RequiredPureSequences: 1}
}

// IsWild reports whether a card substitutes freely under these rules
func (r Rules) IsWild(c deck.Card) bool {
	if c.Joker {
		return true
	}
	return r.WildRank != 0 && c.Rank == r.WildRank
}

// Classify determines what kind of meld a group of cards forms.
// Pure sequences admit no jokers or wildcards at all; sets and impure
// sequences let them stand in for missing cards.
func Classify(group []deck.Card, rules Rules) Kind {
	if len(group) < 3 {
		return Invalid
	}

	var naturals []deck.Card
	wilds := 0
	for _, c := range group {
		if rules.IsWild(c) {
			wilds++
		} else {
			naturals = append(naturals, c)
		}
	}

	if wilds == 0 && isPureSequence(naturals, rules) {
		return PureSequence
	}
	if isSet(naturals, len(group)) {
		return Set
	}
	if isImpureSequence(naturals, wilds, rules) {
		return ImpureSequence
	}
	return Invalid
}

func isPureSequence(cards []deck.Card, rules Rules) bool {
	if !sameSuit(cards) {
		return false
	}
	if consecutive(values(cards, false)) {
		return true
	}
	// Q-K-A reads as consecutive only with the ace counted high
	return rules.AllowWrapAround && hasAce(cards) && consecutive(values(cards, true))
}

func isSet(naturals []deck.Card, total int) bool {
	if total != 3 && total != 4 {
		return false
	}
	// With at most one real card nothing can conflict
	if len(naturals) <= 1 {
		return true
	}

	seen := map[deck.Suit]bool{}
	for _, c := range naturals {
		if c.Rank != naturals[0].Rank {
			return false
		}
		if seen[c.Suit] {
			return false
		}
		seen[c.Suit] = true
	}
	return true
}

func isImpureSequence(naturals []deck.Card, wilds int, rules Rules) bool {
	// A run needs at least one real card to anchor it
	if len(naturals) == 0 || wilds == 0 {
		return false
	}
	if !sameSuit(naturals) {
		return false
	}

	if runFeasible(values(naturals, false), wilds, int(deck.Ace), int(deck.King)) {
		return true
	}
	if rules.AllowWrapAround && hasAce(naturals) {
		// Ace high: runs live on 2..14
		return runFeasible(values(naturals, true), wilds, int(deck.Two), int(deck.King)+1)
	}
	return false
}

// runFeasible reports whether the sorted natural ranks plus the available
// wilds can form one contiguous run within [lo, hi]. The wilds must cover
// every internal gap exactly; any left over have to fit on the ends.
func runFeasible(vals []int, wilds, lo, hi int) bool {
	sort.Ints(vals)
	gaps := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] == vals[i-1] {
			return false
		}
		gaps += vals[i] - vals[i-1] - 1
	}

	if gaps > wilds {
		return false
	}
	spare := wilds - gaps
	room := (vals[0] - lo) + (hi - vals[len(vals)-1])
	return spare <= room
}

func sameSuit(cards []deck.Card) bool {
	for _, c := range cards {
		if c.Suit != cards[0].Suit {
			return false
		}
	}
	return len(cards) > 0
}

func hasAce(cards []deck.Card) bool {
	for _, c := range cards {
		if c.Rank == deck.Ace {
			return true
		}
	}
	return false
}

func values(cards []deck.Card, aceHigh bool) []int {
	vals := make([]int, len(cards))
	for i, c := range cards {
		vals[i] = c.Value()
		if aceHigh && c.Rank == deck.Ace {
			vals[i] = int(deck.King) + 1
		}
	}
	return vals
}

func consecutive(vals []int) bool {
	sort.Ints(vals)
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			return false
		}
	}
	return true
}
