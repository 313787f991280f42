package maintenance

import (
	"context"
	"errors"
	"ito/internal/domain"
	"ito/internal/store"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, s store.Store, id string, age time.Duration) {
	t.Helper()
	err := s.Set(context.Background(), store.RoomPath(id), domain.Room{
		HostID:      "host",
		Phase:       domain.PhaseWaiting,
		LastUpdated: now.Add(-age).UnixMilli(),
	})
	require.NoError(t, err)
}

func seedUser(t *testing.T, s store.Store, id, avatar string, age time.Duration) {
	t.Helper()
	err := s.Set(context.Background(), store.UserPath(id), domain.User{
		Nickname:   id,
		AvatarURL:  avatar,
		LastActive: now.Add(-age).UnixMilli(),
	})
	require.NoError(t, err)
}

func TestSweepRooms(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to sweep", func(t *testing.T) {
		s := store.NewMemory()
		removed, err := NewSweeper(s, nil, Options{}).SweepRooms(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("removes only stale rooms", func(t *testing.T) {
		s := store.NewMemory()
		seedRoom(t, s, "OLD001", 61*time.Minute)
		seedRoom(t, s, "OLD002", 3*time.Hour)
		seedRoom(t, s, "NEW001", 5*time.Minute)

		removed, err := NewSweeper(s, nil, Options{RoomTTL: time.Hour}).SweepRooms(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"OLD001", "OLD002"}, removed)

		_, err = s.Get(ctx, store.RoomPath("OLD001"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Get(ctx, store.RoomPath("NEW001"))
		assert.NoError(t, err)
	})
}

func TestPurgeUsers(t *testing.T) {
	ctx := context.Background()
	month := 30 * 24 * time.Hour

	s := store.NewMemory()
	seedUser(t, s, "active", "https://cdn.example/a.png", time.Hour)
	seedUser(t, s, "gone", "https://cdn.example/g.png", month+time.Hour)
	seedUser(t, s, "stuck", "https://cdn.example/s.png", month+time.Hour)
	seedUser(t, s, "plain", "", 2*month)

	avatars := new(MockAvatarRemover)
	avatars.On("Remove", mock.Anything, "https://cdn.example/g.png").Return(nil)
	avatars.On("Remove", mock.Anything, "https://cdn.example/s.png").Return(errors.New("bucket unavailable"))

	purged, err := NewSweeper(s, avatars, Options{UserTTL: month}).PurgeUsers(ctx, now)
	assert.ErrorContains(t, err, "bucket unavailable")
	assert.Equal(t, []string{"gone", "plain"}, purged)

	_, err = s.Get(ctx, store.UserPath("stuck"))
	assert.NoError(t, err, "a user whose avatar survives is kept for the next pass")
	_, err = s.Get(ctx, store.UserPath("active"))
	assert.NoError(t, err)

	avatars.AssertExpectations(t)
	avatars.AssertNotCalled(t, "Remove", mock.Anything, "https://cdn.example/a.png")
}

func TestSweeperRun(t *testing.T) {
	s := store.NewMemory()
	seedRoom(t, s, "OLD001", 2*time.Hour)

	ticks := make(chan time.Time)
	tickers := new(MockPeriodicTickerChannelCreator)
	tickers.On("Create", time.Minute).Return(ticks)

	sweeper := NewSweeper(s, nil, Options{Interval: time.Minute, Tickers: tickers})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	ticks <- now
	require.Eventually(t, func() bool {
		_, err := s.Get(context.Background(), store.RoomPath("OLD001"))
		return errors.Is(err, domain.ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	tickers.AssertExpectations(t)
}
