package game

import (
	"context"
	"errors"
	"ito/internal/domain"
	"ito/internal/store"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

// --- TopicSource ---

type MockTopicSource struct {
	mock.Mock
}

func (m *MockTopicSource) Draw(ctx context.Context, n int, exclude []string) ([]domain.Topic, error) {
	args := m.Called(ctx, n, exclude)
	return args.Get(0).([]domain.Topic), args.Error(1)
}

// --- RoomIDGenerator ---

type MockRoomIDGenerator struct {
	mock.Mock
}

func (m *MockRoomIDGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

// --- Store that fails on demand ---

var errConnectionLost = errors.New("connection lost")

type flakyStore struct {
	*store.Memory
	mu       sync.Mutex
	failNext bool
}

func (f *flakyStore) Update(ctx context.Context, path string, fields map[string]any) error {
	f.mu.Lock()
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()
	if fail {
		return errConnectionLost
	}
	return f.Memory.Update(ctx, path, fields)
}

func (f *flakyStore) failOnce() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

// --- Clock ---

// steppingClock advances one second on every reading, so join order is
// always strict.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var testTopics = []domain.Topic{
	{Title: "Alpha", Min: "low", Max: "high", Set: "test"},
	{Title: "Bravo", Min: "low", Max: "high", Set: "test"},
	{Title: "Charlie", Min: "low", Max: "high", Set: "test"},
	{Title: "Delta", Min: "low", Max: "high", Set: "test"},
	{Title: "Echo", Min: "low", Max: "high", Set: "test"},
}

type testEnv struct {
	game  *Game
	store *store.Memory
	clock *steppingClock
}

func newTestEnv() *testEnv {
	mem := store.NewMemory()
	clock := newSteppingClock()
	rnd := SeededRandom(42)
	g := New(Options{
		Store:  mem,
		Topics: NewCatalog(testTopics, rnd),
		Random: rnd,
		Now:    clock.Now,
		Logger: zerolog.Nop(),
	})
	return &testEnv{game: g, store: mem, clock: clock}
}

// room creates a room hosted by hostID and joins the others in order.
func (e *testEnv) room(ctx context.Context, roomID, hostID string, others ...string) HostToken {
	token, err := e.game.Roster.CreateRoomWithID(ctx, roomID, hostID, domain.Player{Nickname: hostID})
	if err != nil {
		panic(err)
	}
	for _, id := range others {
		if _, err := e.game.Roster.JoinRoom(ctx, roomID, id, domain.Player{Nickname: id}); err != nil {
			panic(err)
		}
	}
	return token
}

func (e *testEnv) load(ctx context.Context, roomID string) domain.Room {
	room, err := e.game.Room(ctx, roomID)
	if err != nil {
		panic(err)
	}
	return room
}

// toPlacing runs a room through topic selection and the deal.
func (e *testEnv) toPlacing(ctx context.Context, token HostToken, level int) map[string][]domain.Card {
	options, err := e.game.Topics.StartTopicSelection(ctx, token)
	if err != nil {
		panic(err)
	}
	if _, err := e.game.Topics.ForceChoose(ctx, token, options[0].Title); err != nil {
		panic(err)
	}
	hands, err := e.game.Dealer.Deal(ctx, token, level)
	if err != nil {
		panic(err)
	}
	return hands
}

// setCards overwrites the dealt hands so tests can control the order.
func (e *testEnv) setCards(ctx context.Context, roomID string, hands map[string][]int) {
	cards := make(map[string][]domain.Card, len(hands))
	for id, values := range hands {
		for _, v := range values {
			cards[id] = append(cards[id], domain.Card{Value: v})
		}
	}
	if err := e.store.Update(ctx, store.RoomPath(roomID), map[string]any{"cards": cards}); err != nil {
		panic(err)
	}
}
