package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them so callers
// can branch with errors.Is on the class alone.
var (
	ErrNotFound      = errors.New("not-found")
	ErrAlreadyExists = errors.New("already-exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrExhausted     = errors.New("exhausted")
)

var (
	ErrRoomNotFound   = fmt.Errorf("room-%w", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("player-%w", ErrNotFound)
	ErrTopicNotFound  = fmt.Errorf("topic-%w", ErrNotFound)
	ErrCardNotHeld    = fmt.Errorf("card-%w", ErrNotFound)
	ErrNotPlaced      = fmt.Errorf("placement-%w", ErrNotFound)
)

var (
	ErrRoomAlreadyExists  = fmt.Errorf("room-%w", ErrAlreadyExists)
	ErrTopicAlreadyExists = fmt.Errorf("topic-%w", ErrAlreadyExists)
)

var (
	ErrNotHost       = fmt.Errorf("%w-not-host", ErrUnauthorized)
	ErrForeignToken  = fmt.Errorf("%w-foreign-token", ErrUnauthorized)
	ErrDeckExhausted = fmt.Errorf("deck-%w", ErrExhausted)
)

// Logical violations. These are rejected calls that never touch shared state.
var (
	ErrWrongPhase         = errors.New("wrong-phase")
	ErrTopicAlreadyChosen = errors.New("topic-already-chosen")
	ErrAlreadyPlaced      = errors.New("card-already-placed")
	ErrInvalidIndex       = errors.New("invalid-index")
	ErrInvalidLevel       = errors.New("invalid-level")
	ErrInvalidTitle       = errors.New("invalid-title")
	ErrInvalidTiebreak    = errors.New("invalid-tiebreak-method")
	ErrNotEnoughPlayers   = errors.New("not-enough-players")
)

// ErrStore marks failures coming from the remote store (network loss, timeouts).
// They are surfaced as-is and never retried here.
var ErrStore = errors.New("store-error")

var ErrInvalidPath = errors.New("invalid-path")
