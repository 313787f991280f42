package game

import (
	"context"
	"ito/internal/domain"
	"ito/internal/store"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	phases []domain.Phase
	tied   [][]string
	hands  map[string][]domain.Card
	order  []domain.Placement
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, event)
}

func (r *recorder) lastPhase() domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.phases) == 0 {
		return ""
	}
	return r.phases[len(r.phases)-1]
}

func (r *recorder) listener() Listener {
	return ListenerFuncs{
		PhaseChanged: func(p domain.Phase) {
			r.mu.Lock()
			r.phases = append(r.phases, p)
			r.mu.Unlock()
			r.add("phase")
		},
		RosterChanged: func(map[string]domain.Player) { r.add("roster") },
		CardsDealt: func(cards map[string][]domain.Card) {
			r.mu.Lock()
			r.hands = cards
			r.mu.Unlock()
			r.add("cards")
		},
		OrderChanged: func(order []domain.Placement) {
			r.mu.Lock()
			r.order = order
			r.mu.Unlock()
			r.add("order")
		},
		Verdict: func(success bool) {
			if success {
				r.add("success")
			} else {
				r.add("failure")
			}
		},
		AwaitingHostDecision: func(tied []string) {
			r.mu.Lock()
			r.tied = append(r.tied, tied)
			r.mu.Unlock()
			r.add("awaiting-host")
		},
		Evicted:    func() { r.add("evicted") },
		RoomClosed: func() { r.add("closed") },
	}
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestSession_FollowsTheRound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	rec := &recorder{}
	session, err := env.game.Open(ctx, "ROOM01", "bob", rec.listener())
	require.NoError(t, err)
	defer session.Close()

	require.Eventually(t, func() bool { return rec.has("phase") && rec.has("roster") }, waitFor, tick)
	assert.Equal(t, domain.PhaseWaiting, rec.lastPhase())

	hands := env.toPlacing(ctx, token, 1)
	require.Eventually(t, func() bool { return rec.lastPhase() == domain.PhasePlaceCards && rec.has("cards") }, waitFor, tick)
	rec.mu.Lock()
	assert.Equal(t, hands, rec.hands)
	rec.mu.Unlock()

	_, err = env.game.Sequencer.PlaceCard(ctx, "ROOM01", "bob", hands["bob"][0].Value, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.has("order") }, waitFor, tick)

	current, ok := session.Room()
	require.True(t, ok)
	assert.True(t, current.HasPlayer("bob"))
}

func TestSession_MidRoundJoinerSeesCurrentPhase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")
	env.toPlacing(ctx, token, 1)

	_, err := env.game.Roster.JoinRoom(ctx, "ROOM01", "cat", domain.Player{Nickname: "Cat"})
	require.NoError(t, err)
	rec := &recorder{}
	session, err := env.game.Open(ctx, "ROOM01", "cat", rec.listener())
	require.NoError(t, err)
	defer session.Close()

	require.Eventually(t, func() bool { return rec.lastPhase() == domain.PhasePlaceCards }, waitFor, tick)
}

func TestSession_Eviction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	rec := &recorder{}
	session, err := env.game.Open(ctx, "ROOM01", "bob", rec.listener())
	require.NoError(t, err)
	defer session.Close()
	require.Eventually(t, func() bool { return rec.has("roster") }, waitFor, tick)

	require.NoError(t, env.game.Roster.RemovePlayer(ctx, token, "bob"))
	require.Eventually(t, func() bool { return rec.has("evicted") }, waitFor, tick)
	assert.False(t, rec.has("closed"))
}

func TestSession_RoomClosed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.room(ctx, "ROOM01", "ann")

	rec := &recorder{}
	session, err := env.game.Open(ctx, "ROOM01", "ann", rec.listener())
	require.NoError(t, err)
	defer session.Close()
	require.Eventually(t, func() bool { return rec.has("phase") }, waitFor, tick)

	require.NoError(t, env.store.Remove(ctx, store.RoomPath("ROOM01")))
	require.Eventually(t, func() bool { return rec.has("closed") }, waitFor, tick)
}

func TestSession_HostDrivesAutomaticSteps(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	rec := &recorder{}
	host, err := env.game.Open(ctx, "ROOM01", "ann", rec.listener())
	require.NoError(t, err)
	defer host.Close()

	options, err := env.game.Topics.StartTopicSelection(ctx, token)
	require.NoError(t, err)

	// Votes written by clients that never call Resolve themselves.
	err = env.store.Update(ctx, store.RoomPath("ROOM01"), map[string]any{
		"votes/ann": options[0].Title,
		"votes/bob": options[0].Title,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		room, err := env.game.Room(ctx, "ROOM01")
		return err == nil && room.Phase == domain.PhaseDealCards
	}, waitFor, tick)
	assert.Equal(t, options[0].Title, env.load(ctx, "ROOM01").Topic.Title)

	_, err = env.game.Dealer.Deal(ctx, token, 1)
	require.NoError(t, err)
	env.setCards(ctx, "ROOM01", map[string][]int{"ann": {20}, "bob": {10}})
	err = env.store.Update(ctx, store.RoomPath("ROOM01"), map[string]any{
		"cardOrder": []domain.Placement{
			{PlayerID: "bob", Value: 10, Revealed: true},
			{PlayerID: "ann", Value: 20, Revealed: true},
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.has("success") }, waitFor, tick)
	room := env.load(ctx, "ROOM01")
	assert.Equal(t, domain.PhaseRevealCards, room.Phase)
	assert.Equal(t, domain.VerdictSuccess, room.Verdict)
}

func TestSession_GuestDoesNotReconcile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")

	rec := &recorder{}
	guest, err := env.game.Open(ctx, "ROOM01", "bob", rec.listener())
	require.NoError(t, err)
	defer guest.Close()

	options, err := env.game.Topics.StartTopicSelection(ctx, token)
	require.NoError(t, err)
	err = env.store.Update(ctx, store.RoomPath("ROOM01"), map[string]any{
		"votes/ann": options[0].Title,
		"votes/bob": options[0].Title,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.lastPhase() == domain.PhaseChooseTopic }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, env.load(ctx, "ROOM01").Topic)
}

func TestSession_HostTieIsSurfaced(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	token := env.room(ctx, "ROOM01", "ann", "bob")
	require.NoError(t, env.game.Topics.SetTiebreakMethod(ctx, token, domain.TiebreakHost))

	rec := &recorder{}
	host, err := env.game.Open(ctx, "ROOM01", "ann", rec.listener())
	require.NoError(t, err)
	defer host.Close()

	options, err := env.game.Topics.StartTopicSelection(ctx, token)
	require.NoError(t, err)
	_, err = env.game.Topics.Vote(ctx, "ROOM01", "ann", options[0].Title)
	require.NoError(t, err)
	_, err = env.game.Topics.Vote(ctx, "ROOM01", "bob", options[1].Title)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.has("awaiting-host") }, waitFor, tick)
	rec.mu.Lock()
	assert.Equal(t, []string{options[0].Title, options[1].Title}, rec.tied[0])
	rec.mu.Unlock()
	assert.Nil(t, env.load(ctx, "ROOM01").Topic, "the host session does not break a host tie")
}
