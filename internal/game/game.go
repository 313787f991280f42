// Package game holds the round engines of an ito room. Engines never cache room
// state across calls: every mutation re-reads the room, computes the next
// sub-state and writes only the paths it owns.
package game

import (
	"context"
	"errors"
	"fmt"
	"ito/internal/domain"
	"ito/internal/store"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Store  store.Store
	Topics TopicSource
	IDs    RoomIDGenerator
	Random Random
	Now    func() time.Time
	Logger zerolog.Logger

	// TopicOptions is how many curated candidates a round starts with.
	TopicOptions int
	// MaxIDAttempts bounds the search for a free room code.
	MaxIDAttempts int
}

// Game bundles the engines of one deployment. They share a store and nothing
// else; any of them can be used on its own.
type Game struct {
	Roster    *Roster
	Topics    *TopicSelector
	Dealer    *Dealer
	Sequencer *Sequencer
	Revealer  *Revealer

	core *core
}

func New(opts Options) *Game {
	if opts.Topics == nil {
		opts.Topics = CuratedTopics
	}
	if opts.IDs == nil {
		opts.IDs = NewCodeGenerator(nil)
	}
	if opts.Random == nil {
		opts.Random = GlobalRandom()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TopicOptions < 1 {
		opts.TopicOptions = 3
	}
	if opts.MaxIDAttempts < 1 {
		opts.MaxIDAttempts = 32
	}

	c := &core{
		store:  opts.Store,
		topics: opts.Topics,
		ids:    opts.IDs,
		rnd:    opts.Random,
		now:    opts.Now,
		log:    opts.Logger,
		opts:   opts,
	}
	return &Game{
		Roster:    &Roster{c},
		Topics:    &TopicSelector{c},
		Dealer:    &Dealer{c},
		Sequencer: &Sequencer{c},
		Revealer:  &Revealer{c},
		core:      c,
	}
}

type core struct {
	store  store.Store
	topics TopicSource
	ids    RoomIDGenerator
	rnd    Random
	now    func() time.Time
	log    zerolog.Logger
	opts   Options
}

// HostToken is the capability required by every host-only operation. Only the
// Roster mints it, after checking the room's hostId.
type HostToken struct {
	roomID   string
	playerID string
}

func (t HostToken) RoomID() string { return t.roomID }
func (t HostToken) PlayerID() string { return t.playerID }

func (c *core) stamp() int64 {
	return c.now().UnixMilli()
}

func (c *core) load(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	if roomID == "" {
		return room, domain.ErrRoomNotFound
	}
	if err := store.GetInto(ctx, c.store, store.RoomPath(roomID), &room); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return room, domain.ErrRoomNotFound
		}
		return room, storeError(err)
	}
	// A write racing the room's deletion leaves a host-less remnant behind.
	// It reads as absent so the next join or create replaces it.
	if room.HostID == "" {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if room.Phase == "" {
		room.Phase = domain.PhaseWaiting
	}
	return room, nil
}

// loadAsHost loads the token's room and checks the token still names the host.
func (c *core) loadAsHost(ctx context.Context, token HostToken) (domain.Room, error) {
	if token.roomID == "" || token.playerID == "" {
		return domain.Room{}, domain.ErrForeignToken
	}
	room, err := c.load(ctx, token.roomID)
	if err != nil {
		return room, err
	}
	if !room.IsHost(token.playerID) {
		return room, domain.ErrNotHost
	}
	return room, nil
}

// write merges fields into the room and refreshes lastUpdated.
func (c *core) write(ctx context.Context, roomID string, fields map[string]any) error {
	fields["lastUpdated"] = c.stamp()
	if err := c.store.Update(ctx, store.RoomPath(roomID), fields); err != nil {
		return storeError(err)
	}
	return nil
}

// advance adds a phase change to fields after checking the transition table.
func advance(room domain.Room, to domain.Phase, fields map[string]any) error {
	if !room.Phase.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrWrongPhase, room.Phase, to)
	}
	fields["phase"] = to
	return nil
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
}
