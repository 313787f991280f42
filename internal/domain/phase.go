package domain

import "slices"

type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseChooseTopic Phase = "chooseTopic"
	PhaseDealCards   Phase = "dealCards"
	PhasePlaceCards  Phase = "placeCards"
	PhaseRevealCards Phase = "revealCards"
)

// transitions is the whole round state machine. revealCards -> waiting is the
// only backwards edge and it is only taken by an explicit host reset.
var transitions = map[Phase][]Phase{
	PhaseWaiting:     {PhaseChooseTopic},
	PhaseChooseTopic: {PhaseDealCards},
	PhaseDealCards:   {PhasePlaceCards},
	PhasePlaceCards:  {PhaseRevealCards},
	PhaseRevealCards: {PhaseWaiting},
}

func (p Phase) String() string {
	return string(p)
}

func (p Phase) Valid() bool {
	_, ok := transitions[p]
	return ok
}

func (p Phase) CanTransitionTo(target Phase) bool {
	return slices.Contains(transitions[p], target)
}

// Require returns ErrWrongPhase unless p is one of the allowed phases.
func (p Phase) Require(allowed ...Phase) error {
	if slices.Contains(allowed, p) {
		return nil
	}
	return ErrWrongPhase
}

type TiebreakMethod string

const (
	TiebreakRandom TiebreakMethod = "random"
	TiebreakHost   TiebreakMethod = "host"
)

func (m TiebreakMethod) Valid() bool {
	return m == TiebreakRandom || m == TiebreakHost
}

type Verdict string

const (
	VerdictPending Verdict = ""
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
)
