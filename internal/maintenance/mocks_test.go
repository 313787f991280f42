package maintenance

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- AvatarRemover ---

type MockAvatarRemover struct {
	mock.Mock
}

func (m *MockAvatarRemover) Remove(ctx context.Context, avatarURL string) error {
	args := m.Called(ctx, avatarURL)
	return args.Error(0)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}
