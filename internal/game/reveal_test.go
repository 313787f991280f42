package game

import (
	"context"
	"ito/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(values ...int) []domain.Placement {
	out := make([]domain.Placement, len(values))
	for i, v := range values {
		out[i] = domain.Placement{PlayerID: "p", Value: v}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name     string
		order    []domain.Placement
		expected domain.Verdict
	}{
		{"ascending", order(3, 8, 17, 42), domain.VerdictSuccess},
		{"one out of place", order(3, 17, 42, 8), domain.VerdictFailure},
		{"descending", order(90, 50, 10), domain.VerdictFailure},
		{"single card", order(55), domain.VerdictSuccess},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Evaluate(tc.order))
		})
	}
}

// placeAll deals the given hands and places them in the listed order.
func placeAll(t *testing.T, env *testEnv, token HostToken, level int, hands map[string][]int, sequence []domain.Placement) {
	t.Helper()
	ctx := context.Background()
	env.toPlacing(ctx, token, level)
	env.setCards(ctx, token.RoomID(), hands)
	for i, p := range sequence {
		_, err := env.game.Sequencer.PlaceCard(ctx, token.RoomID(), p.PlayerID, p.Value, i)
		require.NoError(t, err)
	}
	require.Equal(t, domain.PhaseRevealCards, env.load(ctx, token.RoomID()).Phase)
}

func TestRevealCard(t *testing.T) {
	ctx := context.Background()
	hands := map[string][]int{"ann": {3}, "bob": {17}, "cat": {42}, "dan": {8}}

	testCases := []struct {
		name     string
		sequence []domain.Placement
		expected domain.Verdict
	}{
		{
			name: "out of order fails",
			sequence: []domain.Placement{
				{PlayerID: "ann", Value: 3}, {PlayerID: "bob", Value: 17},
				{PlayerID: "cat", Value: 42}, {PlayerID: "dan", Value: 8},
			},
			expected: domain.VerdictFailure,
		},
		{
			name: "ascending succeeds",
			sequence: []domain.Placement{
				{PlayerID: "ann", Value: 3}, {PlayerID: "dan", Value: 8},
				{PlayerID: "bob", Value: 17}, {PlayerID: "cat", Value: 42},
			},
			expected: domain.VerdictSuccess,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			token := env.room(ctx, "ROOM01", "ann", "bob", "cat", "dan")
			placeAll(t, env, token, 1, hands, tc.sequence)

			for i, p := range tc.sequence {
				verdict, err := env.game.Revealer.RevealCard(ctx, "ROOM01", p.PlayerID)
				require.NoError(t, err)
				if i < len(tc.sequence)-1 {
					assert.Equal(t, domain.VerdictPending, verdict)
				} else {
					assert.Equal(t, tc.expected, verdict)
				}
			}

			room := env.load(ctx, "ROOM01")
			assert.True(t, room.AllRevealed())
			assert.Equal(t, tc.expected, room.Verdict)
			assert.Equal(t, domain.PhaseRevealCards, room.Phase)
		})
	}
}

func TestRevealCard_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")
	placeAll(t, env, token, 1, map[string][]int{"ann": {10}, "bob": {20}}, []domain.Placement{
		{PlayerID: "ann", Value: 10}, {PlayerID: "bob", Value: 20},
	})

	_, err := env.game.Revealer.RevealCard(ctx, "ROOM01", "ann")
	require.NoError(t, err)
	before := env.load(ctx, "ROOM01")

	verdict, err := env.game.Revealer.RevealCard(ctx, "ROOM01", "ann")
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPending, verdict)
	after := env.load(ctx, "ROOM01")
	assert.Equal(t, before.CardOrder, after.CardOrder)
	assert.Equal(t, before.LastUpdated, after.LastUpdated, "nothing was written")

	_, err = env.game.Revealer.RevealCard(ctx, "ROOM01", "zed")
	assert.ErrorIs(t, err, domain.ErrNotPlaced)
}

func TestRevealCard_WrongPhase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.room(ctx, "ROOM01", "ann")
	_, err := env.game.Revealer.RevealCard(ctx, "ROOM01", "ann")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
}

func TestMaxClearLevel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	play := func(level int, hands map[string][]int, sequence []domain.Placement) domain.Room {
		placeAll(t, env, token, level, hands, sequence)
		for _, id := range []string{"ann", "bob"} {
			_, err := env.game.Revealer.RevealCard(ctx, "ROOM01", id)
			require.NoError(t, err)
		}
		room := env.load(ctx, "ROOM01")
		require.NoError(t, env.game.Revealer.ResetRound(ctx, token))
		return room
	}

	room := play(2, map[string][]int{"ann": {10, 50}, "bob": {30}}, []domain.Placement{
		{PlayerID: "ann", Value: 10}, {PlayerID: "bob", Value: 30}, {PlayerID: "ann", Value: 50},
	})
	assert.Equal(t, domain.VerdictSuccess, room.Verdict)
	assert.Equal(t, 2, room.MaxClearLevel)

	room = play(1, map[string][]int{"ann": {10}, "bob": {30}}, []domain.Placement{
		{PlayerID: "ann", Value: 10}, {PlayerID: "bob", Value: 30},
	})
	assert.Equal(t, domain.VerdictSuccess, room.Verdict)
	assert.Equal(t, 2, room.MaxClearLevel, "a lower clear never lowers the best")

	room = play(3, map[string][]int{"ann": {10, 50}, "bob": {30, 40}}, []domain.Placement{
		{PlayerID: "bob", Value: 40}, {PlayerID: "ann", Value: 10},
		{PlayerID: "bob", Value: 30}, {PlayerID: "ann", Value: 50},
	})
	assert.Equal(t, domain.VerdictFailure, room.Verdict)
	assert.Equal(t, 2, room.MaxClearLevel)
}

func TestResetRound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	err := env.game.Revealer.ResetRound(ctx, token)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	placeAll(t, env, token, 1, map[string][]int{"ann": {10}, "bob": {20}}, []domain.Placement{
		{PlayerID: "ann", Value: 10}, {PlayerID: "bob", Value: 20},
	})
	topic := env.load(ctx, "ROOM01").Topic
	require.NotNil(t, topic)

	err = env.game.Revealer.ResetUsedTitles(ctx, token)
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	require.NoError(t, env.game.Revealer.ResetRound(ctx, token))
	room := env.load(ctx, "ROOM01")
	assert.Equal(t, domain.PhaseWaiting, room.Phase)
	assert.Nil(t, room.Topic)
	assert.Empty(t, room.Cards)
	assert.Empty(t, room.CardOrder)
	assert.Empty(t, room.TopicOptions)
	assert.Empty(t, room.Votes)
	assert.Zero(t, room.Level)
	assert.Equal(t, []string{"ann", "bob"}, room.PlayerIDs())
	assert.True(t, room.IsTitleUsed(topic.Title))

	// The played title does not come back in the next round.
	options, err := env.game.Topics.StartTopicSelection(ctx, token)
	require.NoError(t, err)
	assert.NotContains(t, titles(options), topic.Title)

	_, err = env.game.Topics.ForceChoose(ctx, token, options[0].Title)
	require.NoError(t, err)
	_, err = env.game.Dealer.Deal(ctx, token, 1)
	require.NoError(t, err)
}

func TestResetUsedTitles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann")
	require.NoError(t, env.game.core.write(ctx, "ROOM01", map[string]any{"usedTitles/Alpha": true}))

	require.NoError(t, env.game.Revealer.ResetUsedTitles(ctx, token))
	assert.Empty(t, env.load(ctx, "ROOM01").UsedTitles)
}
