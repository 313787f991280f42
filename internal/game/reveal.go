package game

import (
	"context"
	"ito/internal/domain"
	"slices"
)

// Revealer flips placed cards and judges the order once all are face up.
type Revealer struct {
	*core
}

// Evaluate reports success iff the placed values are in ascending order.
// Dealt values are distinct, so non-decreasing and ascending coincide.
func Evaluate(order []domain.Placement) domain.Verdict {
	values := make([]int, len(order))
	for i, p := range order {
		values[i] = p.Value
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if slices.Equal(values, sorted) {
		return domain.VerdictSuccess
	}
	return domain.VerdictFailure
}

// RevealCard turns playerID's placed cards face up. Revealing twice changes
// nothing. When it uncovers the last card the verdict is written.
func (r *Revealer) RevealCard(ctx context.Context, roomID, playerID string) (domain.Verdict, error) {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return domain.VerdictPending, err
	}
	if err := room.Phase.Require(domain.PhaseRevealCards); err != nil {
		return domain.VerdictPending, err
	}

	owned := false
	fields := map[string]any{}
	for i, p := range room.CardOrder {
		if p.PlayerID != playerID {
			continue
		}
		owned = true
		if !p.Revealed {
			fields[orderPath(i, "revealed")] = true
		}
	}
	if !owned {
		return domain.VerdictPending, domain.ErrNotPlaced
	}
	if len(fields) > 0 {
		if err := r.write(ctx, roomID, fields); err != nil {
			return domain.VerdictPending, err
		}
	}
	return r.Judge(ctx, roomID)
}

// Judge writes the verdict once every entry is revealed and records a new best
// level on success. The best level only ever grows.
func (r *Revealer) Judge(ctx context.Context, roomID string) (domain.Verdict, error) {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return domain.VerdictPending, err
	}
	if room.Verdict != domain.VerdictPending {
		return room.Verdict, nil
	}
	if room.Phase != domain.PhaseRevealCards || !room.AllRevealed() {
		return domain.VerdictPending, nil
	}

	verdict := Evaluate(room.CardOrder)
	fields := map[string]any{"verdict": verdict}
	if verdict == domain.VerdictSuccess && room.Level > room.MaxClearLevel {
		fields["maxClearLevel"] = room.Level
	}
	if err := r.write(ctx, roomID, fields); err != nil {
		return domain.VerdictPending, err
	}
	r.log.Info().Str("room_id", roomID).Str("verdict", string(verdict)).Int("level", room.Level).Msg("round judged")
	return verdict, nil
}

// ResetRound returns the room to waiting for another round. Roster, used
// titles and the best cleared level survive.
func (r *Revealer) ResetRound(ctx context.Context, token HostToken) error {
	room, err := r.loadAsHost(ctx, token)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"cards":        nil,
		"cardOrder":    nil,
		"topic":        nil,
		"topicOptions": nil,
		"votes":        nil,
		"customTopics": nil,
		"verdict":      nil,
		"level":        nil,
	}
	if err := advance(room, domain.PhaseWaiting, fields); err != nil {
		return err
	}
	if err := r.write(ctx, token.roomID, fields); err != nil {
		return err
	}
	r.log.Info().Str("room_id", token.roomID).Msg("round reset")
	return nil
}

// ResetUsedTitles forgets every played title so they can come up again.
func (r *Revealer) ResetUsedTitles(ctx context.Context, token HostToken) error {
	room, err := r.loadAsHost(ctx, token)
	if err != nil {
		return err
	}
	if err := room.Phase.Require(domain.PhaseWaiting); err != nil {
		return err
	}
	return r.write(ctx, token.roomID, map[string]any{"usedTitles": nil})
}
