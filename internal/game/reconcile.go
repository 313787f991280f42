package game

import (
	"context"
	"ito/internal/domain"
)

// Reconcile runs whichever automatic step the room's current phase is waiting
// for: topic resolution, the move to reveal, or the verdict. Every step
// re-reads the room and is a no-op when its condition does not hold, so any
// number of clients may call it on every snapshot.
func (g *Game) Reconcile(ctx context.Context, roomID string) error {
	room, err := g.core.load(ctx, roomID)
	if err != nil {
		return err
	}
	switch room.Phase {
	case domain.PhaseChooseTopic:
		_, err = g.Topics.Resolve(ctx, roomID)
	case domain.PhasePlaceCards:
		_, err = g.Sequencer.Advance(ctx, roomID)
	case domain.PhaseRevealCards:
		_, err = g.Revealer.Judge(ctx, roomID)
	}
	return err
}

// Room reads the current state of a room.
func (g *Game) Room(ctx context.Context, roomID string) (domain.Room, error) {
	return g.core.load(ctx, roomID)
}
