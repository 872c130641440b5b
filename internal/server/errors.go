package server

import (
	"errors"

	"github.com/tablewire/rummy/internal/game"
	"github.com/tablewire/rummy/internal/matchmaking"
	"github.com/tablewire/rummy/internal/meld"
	"github.com/tablewire/rummy/internal/store"
)

// errorCode maps a transition failure onto the wire error code clients
// key their UI off. Validation failures never mutate state, so every
// code here is safe to surface and retry.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrBadMaxPlayers):
		return "bad_max_players"
	case errors.Is(err, game.ErrRoomFull):
		return "room_full"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrNotPlaying):
		return "not_playing"
	case errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrWrongHandSize):
		return "wrong_hand_size"
	case errors.Is(err, game.ErrCardNotFound):
		return "card_not_found"
	case errors.Is(err, game.ErrBadRearrange):
		return "bad_rearrange"
	case errors.Is(err, game.ErrDeckExhausted):
		return "deck_exhausted"
	case errors.Is(err, game.ErrDiscardEmpty):
		return "discard_empty"
	case errors.Is(err, game.ErrUnknownPlayer):
		return "not_in_room"
	case errors.Is(err, matchmaking.ErrBadGameSize):
		return "bad_game_size"
	case errors.Is(err, meld.ErrInvalidMeld),
		errors.Is(err, meld.ErrIncomplete),
		errors.Is(err, meld.ErrUnknownCard),
		errors.Is(err, meld.ErrDuplicateCard),
		errors.Is(err, meld.ErrPureSequenceRequired):
		return "invalid_declare"
	case errors.Is(err, game.ErrCorruptRecord), errors.Is(err, store.ErrCorrupt):
		return "corrupt_session"
	default:
		return "internal_error"
	}
}
