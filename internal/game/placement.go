package game

import (
	"context"
	"ito/internal/domain"
	"slices"
	"strconv"
)

// Sequencer maintains the shared card order during the placement phase.
//
// Every write re-reads the order and splices into the fresh copy, so a stale
// client view can never resurrect or drop entries it did not see. Two splices
// racing on the same path can still lose one of them: the store has no
// compare-and-swap and last write wins.
type Sequencer struct {
	*core
}

// InsertAt returns a copy of order with p spliced in at index, 0..len(order).
func InsertAt(order []domain.Placement, p domain.Placement, index int) ([]domain.Placement, error) {
	if index < 0 || index > len(order) {
		return nil, domain.ErrInvalidIndex
	}
	out := make([]domain.Placement, 0, len(order)+1)
	out = append(out, order[:index]...)
	out = append(out, p)
	out = append(out, order[index:]...)
	return out, nil
}

// RemoveOwner returns a copy of order without playerID's entries.
func RemoveOwner(order []domain.Placement, playerID string) []domain.Placement {
	out := make([]domain.Placement, 0, len(order))
	for _, p := range order {
		if p.PlayerID != playerID {
			out = append(out, p)
		}
	}
	return out
}

// PlaceCard puts one of playerID's cards at index in the current order. A card
// can only be placed once per round. Entries are owned per card, so above level
// 1 a player appears once for every card they hold.
func (s *Sequencer) PlaceCard(ctx context.Context, roomID, playerID string, value, index int) ([]domain.Placement, error) {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := room.Phase.Require(domain.PhasePlaceCards); err != nil {
		return nil, err
	}
	if !room.HasPlayer(playerID) {
		return nil, domain.ErrPlayerNotFound
	}
	if !room.Holds(playerID, value) {
		return nil, domain.ErrCardNotHeld
	}
	if slices.ContainsFunc(room.CardOrder, func(p domain.Placement) bool {
		return p.PlayerID == playerID && p.Value == value
	}) {
		return nil, domain.ErrAlreadyPlaced
	}

	order, err := InsertAt(room.CardOrder, domain.Placement{PlayerID: playerID, Value: value}, index)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"cardOrder": order}
	room.CardOrder = order
	if placementComplete(room) {
		if err := advance(room, domain.PhaseRevealCards, fields); err != nil {
			return nil, err
		}
	}
	if err := s.write(ctx, roomID, fields); err != nil {
		return nil, err
	}
	s.log.Debug().Str("room_id", roomID).Str("player_id", playerID).Int("index", index).Int("placed", len(order)).Msg("card placed")
	return order, nil
}

// WithdrawCard takes playerID's entries back out of the order so they can be
// placed again.
func (s *Sequencer) WithdrawCard(ctx context.Context, roomID, playerID string) ([]domain.Placement, error) {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := room.Phase.Require(domain.PhasePlaceCards); err != nil {
		return nil, err
	}
	order := RemoveOwner(room.CardOrder, playerID)
	if len(order) == len(room.CardOrder) {
		return nil, domain.ErrNotPlaced
	}
	if err := s.write(ctx, roomID, map[string]any{"cardOrder": order}); err != nil {
		return nil, err
	}
	return order, nil
}

// Advance moves placeCards -> revealCards when every dealt card still held by
// a roster member is in the order. It reports whether it advanced.
func (s *Sequencer) Advance(ctx context.Context, roomID string) (bool, error) {
	room, err := s.load(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Phase != domain.PhasePlaceCards || !placementComplete(room) {
		return false, nil
	}
	fields := map[string]any{}
	if err := advance(room, domain.PhaseRevealCards, fields); err != nil {
		return false, err
	}
	if err := s.write(ctx, roomID, fields); err != nil {
		return false, err
	}
	return true, nil
}

func placementComplete(room domain.Room) bool {
	want := room.ActiveCardCount()
	if want == 0 {
		return false
	}
	placed := 0
	for _, p := range room.CardOrder {
		if room.HasPlayer(p.PlayerID) && room.Holds(p.PlayerID, p.Value) {
			placed++
		}
	}
	return placed >= want
}

func orderPath(i int, field string) string {
	return "cardOrder/" + strconv.Itoa(i) + "/" + field
}
