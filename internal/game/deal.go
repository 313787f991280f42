package game

import (
	"context"
	"ito/internal/domain"
	"slices"
)

// Dealer hands out the cards of a round.
type Dealer struct {
	*core
}

// DealCards draws players+(level-1) distinct values from 1..100 and spreads
// them over the players: one each in a shuffled seat order, then the extra
// cards round-robin over the same order. Each hand comes back sorted.
func DealCards(playerIDs []string, level int, rnd Random) (map[string][]domain.Card, error) {
	if level < 1 {
		return nil, domain.ErrInvalidLevel
	}
	if len(playerIDs) == 0 {
		return nil, domain.ErrNotEnoughPlayers
	}
	if level > domain.DeckSize-len(playerIDs)+1 {
		return nil, domain.ErrDeckExhausted
	}
	total := len(playerIDs) + level - 1

	values := rnd.Perm(domain.DeckSize)[:total]
	seats := rnd.Perm(len(playerIDs))

	hands := make(map[string][]domain.Card, len(playerIDs))
	for i, v := range values {
		id := playerIDs[seats[i%len(seats)]]
		hands[id] = append(hands[id], domain.Card{Value: v + domain.MinCardValue})
	}
	for _, hand := range hands {
		slices.SortFunc(hand, func(a, b domain.Card) int { return a.Value - b.Value })
	}
	return hands, nil
}

// Deal deals the round and moves dealCards -> placeCards in one write.
func (d *Dealer) Deal(ctx context.Context, token HostToken, level int) (map[string][]domain.Card, error) {
	room, err := d.loadAsHost(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := room.Phase.Require(domain.PhaseDealCards); err != nil {
		return nil, err
	}
	hands, err := DealCards(room.PlayerIDs(), level, d.rnd)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"cards":     hands,
		"level":     level,
		"cardOrder": nil,
		"verdict":   nil,
	}
	if err := advance(room, domain.PhasePlaceCards, fields); err != nil {
		return nil, err
	}
	if err := d.write(ctx, token.roomID, fields); err != nil {
		return nil, err
	}
	d.log.Info().Str("room_id", token.roomID).Int("players", len(hands)).Int("level", level).Msg("cards dealt")
	return hands, nil
}
