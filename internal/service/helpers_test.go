package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/moderation"
	"relaychat/internal/service"
	"relaychat/internal/store/sqlite"
)

type fakeSubs struct {
	mu   sync.Mutex
	paid map[string]bool
}

func newFakeSubs(paid ...string) *fakeSubs {
	s := &fakeSubs{paid: map[string]bool{}}
	for _, p := range paid {
		s.paid[p] = true
	}
	return s
}

func (s *fakeSubs) IsPaidTier(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paid[identity], nil
}

type delivery struct {
	identity string
	frame    any
}

type recordingDeliverer struct {
	mu  sync.Mutex
	got []delivery
}

func (d *recordingDeliverer) Deliver(_ context.Context, identity string, frame any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, delivery{identity: identity, frame: frame})
}

func (d *recordingDeliverer) all() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery(nil), d.got...)
}

type testEnv struct {
	db         *sql.DB
	friends    *sqlite.FriendshipRepo
	messages   *sqlite.MessageRepo
	flags      *sqlite.FlaggedConversationRepo
	words      *sqlite.CriticalWordRepo
	files      *sqlite.TempFileRepo
	subs       *fakeSubs
	deliver    *recordingDeliverer
	dispatcher *service.Dispatcher
}

func newTestEnv(t *testing.T, paid ...string) *testEnv {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	e := &testEnv{
		db:       db,
		friends:  sqlite.NewFriendshipRepo(db),
		messages: sqlite.NewMessageRepo(db),
		flags:    sqlite.NewFlaggedConversationRepo(db),
		words:    sqlite.NewCriticalWordRepo(db),
		files:    sqlite.NewTempFileRepo(db),
		subs:     newFakeSubs(paid...),
		deliver:  &recordingDeliverer{},
	}
	e.dispatcher = service.NewDispatcher(
		e.friends,
		e.messages,
		e.flags,
		e.subs,
		service.NewQuotaTracker(e.messages, nil),
		moderation.NewScanner(e.words, e.messages),
		e.deliver,
		zap.NewNop(),
	)
	return e
}

func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, e.friends.Add(context.Background(), a, b))
}

func strPtr(s string) *string { return &s }

// Mocks

type MockFriendRepo struct {
	mock.Mock
}

func (m *MockFriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepo) Add(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *MockFriendRepo) ListFor(ctx context.Context, identity string) ([]*domain.Friendship, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Friendship), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = 99
		msg.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockMessageRepo) MarkRead(ctx context.Context, recipient, sender string) (int64, error) {
	args := m.Called(ctx, recipient, sender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepo) History(ctx context.Context, a, b string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, a, b, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) CountSentBetween(ctx context.Context, from string, start, end time.Time) (int, error) {
	args := m.Called(ctx, from, start, end)
	return args.Int(0), args.Error(1)
}

type MockFlagRepo struct {
	mock.Mock
}

func (m *MockFlagRepo) Create(ctx context.Context, f *domain.FlaggedConversation) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFlagRepo) ListUnreviewed(ctx context.Context, limit int) ([]*domain.FlaggedConversation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FlaggedConversation), args.Error(1)
}

type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context, text, low, high string) (moderation.Outcome, error) {
	args := m.Called(ctx, text, low, high)
	return args.Get(0).(moderation.Outcome), args.Error(1)
}
