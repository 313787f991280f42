package game

import (
	"context"
	"ito/internal/domain"
	"ito/internal/store"
	"slices"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
)

// Listener is how presentation layers follow a room. Callbacks run on the
// session's delivery goroutine, one at a time, in snapshot order.
type Listener interface {
	OnPhaseChanged(phase domain.Phase)
	OnRosterChanged(players map[string]domain.Player)
	OnCardsDealt(cards map[string][]domain.Card)
	OnOrderChanged(order []domain.Placement)
	OnVerdict(success bool)
	OnAwaitingHostDecision(tied []string)
	OnEvicted()
	OnRoomClosed()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	PhaseChanged         func(domain.Phase)
	RosterChanged        func(map[string]domain.Player)
	CardsDealt           func(map[string][]domain.Card)
	OrderChanged         func([]domain.Placement)
	Verdict              func(success bool)
	AwaitingHostDecision func(tied []string)
	Evicted              func()
	RoomClosed           func()
}

func (f ListenerFuncs) OnPhaseChanged(p domain.Phase) {
	if f.PhaseChanged != nil {
		f.PhaseChanged(p)
	}
}

func (f ListenerFuncs) OnRosterChanged(players map[string]domain.Player) {
	if f.RosterChanged != nil {
		f.RosterChanged(players)
	}
}

func (f ListenerFuncs) OnCardsDealt(cards map[string][]domain.Card) {
	if f.CardsDealt != nil {
		f.CardsDealt(cards)
	}
}

func (f ListenerFuncs) OnOrderChanged(order []domain.Placement) {
	if f.OrderChanged != nil {
		f.OrderChanged(order)
	}
}

func (f ListenerFuncs) OnVerdict(success bool) {
	if f.Verdict != nil {
		f.Verdict(success)
	}
}

func (f ListenerFuncs) OnAwaitingHostDecision(tied []string) {
	if f.AwaitingHostDecision != nil {
		f.AwaitingHostDecision(tied)
	}
}

func (f ListenerFuncs) OnEvicted() {
	if f.Evicted != nil {
		f.Evicted()
	}
}

func (f ListenerFuncs) OnRoomClosed() {
	if f.RoomClosed != nil {
		f.RoomClosed()
	}
}

// Session is one client's live view of a room.
type Session struct {
	game     *Game
	roomID   string
	playerID string
	listener Listener
	log      zerolog.Logger

	mu          sync.Mutex
	current     *domain.Room
	tied        []string
	done        bool
	unsubscribe func()
	cancel      context.CancelFunc
}

// Open subscribes playerID's client to roomID. The listener first receives the
// room as it is now (a client joining mid-round sees the current phase), then
// every change. The host's session also drives the automatic steps of the
// round; other sessions only observe, so concurrent clients never race to
// break the same tie.
func (g *Game) Open(ctx context.Context, roomID, playerID string, listener Listener) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		game:     g,
		roomID:   roomID,
		playerID: playerID,
		listener: listener,
		log:      g.core.log.With().Str("room_id", roomID).Str("player_id", playerID).Logger(),
		cancel:   cancel,
	}
	unsubscribe, err := g.core.store.Subscribe(ctx, store.RoomPath(roomID), func(snap store.Snapshot) {
		s.handle(ctx, snap)
	})
	if err != nil {
		cancel()
		return nil, storeError(err)
	}
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s, nil
}

// Room returns the last room state the session saw, if any.
func (s *Session) Room() (domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Room{}, false
	}
	return *s.current, true
}

func (s *Session) Close() {
	s.mu.Lock()
	s.done = true
	unsubscribe := s.unsubscribe
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.cancel()
}

var emptyEqual = cmpopts.EquateEmpty()

func (s *Session) handle(ctx context.Context, snap store.Snapshot) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	prev := s.current

	if !snap.Exists {
		s.current = nil
		s.mu.Unlock()
		if prev != nil {
			s.listener.OnRoomClosed()
			s.Close()
		}
		return
	}

	var room domain.Room
	if err := snap.Decode(&room); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("undecodable room snapshot")
		return
	}
	if room.Phase == "" {
		room.Phase = domain.PhaseWaiting
	}
	s.current = &room
	s.mu.Unlock()

	if prev != nil && prev.HasPlayer(s.playerID) && !room.HasPlayer(s.playerID) {
		s.log.Info().Msg("evicted from room")
		s.listener.OnEvicted()
		s.Close()
		return
	}

	first := prev == nil
	if first || prev.Phase != room.Phase {
		s.listener.OnPhaseChanged(room.Phase)
	}
	if first || !cmp.Equal(prev.Players, room.Players, emptyEqual) {
		s.listener.OnRosterChanged(room.Players)
	}
	if len(room.Cards) > 0 && (first || !cmp.Equal(prev.Cards, room.Cards, emptyEqual)) {
		s.listener.OnCardsDealt(room.Cards)
	}
	if (first && len(room.CardOrder) > 0) || (!first && !cmp.Equal(prev.CardOrder, room.CardOrder, emptyEqual)) {
		s.listener.OnOrderChanged(room.CardOrder)
	}
	if room.Verdict != domain.VerdictPending && (first || prev.Verdict != room.Verdict) {
		s.listener.OnVerdict(room.Verdict == domain.VerdictSuccess)
	}
	s.checkTie(room)

	if room.IsHost(s.playerID) {
		if err := s.game.Reconcile(ctx, s.roomID); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("reconcile failed")
		}
	}
}

func (s *Session) checkTie(room domain.Room) {
	var tied []string
	if room.Topic == nil && room.Tiebreak() == domain.TiebreakHost {
		if ballot := Count(room); ballot.Complete && len(ballot.Leaders) > 1 {
			tied = ballot.Leaders
		}
	}
	if slices.Equal(tied, s.tied) {
		return
	}
	s.tied = tied
	if len(tied) > 0 {
		s.listener.OnAwaitingHostDecision(tied)
	}
}
