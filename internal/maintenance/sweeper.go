package maintenance

import (
	"context"
	"errors"
	"fmt"
	"ito/internal/domain"
	"ito/internal/logger"
	"ito/internal/store"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

type AvatarRemover interface {
	Remove(ctx context.Context, avatarURL string) error
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

type Options struct {
	RoomTTL  time.Duration
	UserTTL  time.Duration
	Interval time.Duration
	Tickers  PeriodicTickerChannelCreator
	Logger   zerolog.Logger
}

// Sweeper runs the advisory clean-up passes: abandoned rooms and long inactive
// users. Nothing in a round depends on it running on time.
type Sweeper struct {
	store   store.Store
	avatars AvatarRemover
	opts    Options
	log     zerolog.Logger
}

func NewSweeper(s store.Store, avatars AvatarRemover, opts Options) *Sweeper {
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = time.Hour
	}
	if opts.UserTTL <= 0 {
		opts.UserTTL = 30 * 24 * time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Tickers == nil {
		opts.Tickers = SystemTicker{}
	}
	return &Sweeper{
		store:   s,
		avatars: avatars,
		opts:    opts,
		log:     logger.ForComponent(opts.Logger, "sweeper"),
	}
}

// Run sweeps on every tick until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticks := s.opts.Tickers.Create(s.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticks:
			s.RunOnce(ctx, now)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) {
	rooms, err := s.SweepRooms(ctx, now)
	if err != nil {
		s.log.Warn().Err(err).Msg("room sweep incomplete")
	}
	users, err := s.PurgeUsers(ctx, now)
	if err != nil {
		s.log.Warn().Err(err).Msg("user purge incomplete")
	}
	if len(rooms) > 0 || len(users) > 0 {
		s.log.Info().Int("rooms", len(rooms)).Int("users", len(users)).Msg("sweep finished")
	}
}

type roomStamp struct {
	LastUpdated int64 `json:"lastUpdated"`
}

// SweepRooms deletes every room whose lastUpdated is older than the room TTL
// and returns their ids.
func (s *Sweeper) SweepRooms(ctx context.Context, now time.Time) ([]string, error) {
	var rooms map[string]roomStamp
	if err := s.readCollection(ctx, store.RoomsCollection, &rooms); err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for id, r := range rooms {
		if now.Sub(time.UnixMilli(r.LastUpdated)) <= s.opts.RoomTTL {
			continue
		}
		if err := s.store.Remove(ctx, store.RoomPath(id)); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", id, err))
			continue
		}
		s.log.Debug().Str("room_id", id).Msg("stale room deleted")
		removed = append(removed, id)
	}
	slices.Sort(removed)
	return removed, errors.Join(errs...)
}

// PurgeUsers deletes users inactive for longer than the user TTL together with
// their stored avatar. A user whose avatar cannot be removed is kept for the
// next pass.
func (s *Sweeper) PurgeUsers(ctx context.Context, now time.Time) ([]string, error) {
	var users map[string]domain.User
	if err := s.readCollection(ctx, store.UsersCollection, &users); err != nil {
		return nil, err
	}

	var purged []string
	var errs []error
	for id, u := range users {
		if now.Sub(time.UnixMilli(u.LastActive)) <= s.opts.UserTTL {
			continue
		}
		if u.AvatarURL != "" && s.avatars != nil {
			if err := s.avatars.Remove(ctx, u.AvatarURL); err != nil {
				errs = append(errs, fmt.Errorf("avatar of %s: %w", id, err))
				continue
			}
		}
		if err := s.store.Remove(ctx, store.UserPath(id)); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		purged = append(purged, id)
	}
	slices.Sort(purged)
	return purged, errors.Join(errs...)
}

func (s *Sweeper) readCollection(ctx context.Context, collection string, v any) error {
	err := store.GetInto(ctx, s.store, collection, v)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

type SystemTicker struct{}

func (SystemTicker) Create(duration time.Duration) <-chan time.Time {
	return time.NewTicker(duration).C
}
