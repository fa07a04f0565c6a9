package service

import (
	"context"
	"sync"
	"time"

	"sendlater/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// mockQueueStore is a testify mock over the full store surface.
type mockQueueStore struct {
	mock.Mock
}

func (m *mockQueueStore) DueMessages(ctx context.Context, now time.Time) ([]models.Message, error) {
	args := m.Called(ctx, now)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQueueStore) SetMessageStatus(ctx context.Context, id string, status models.MessageStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockQueueStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockQueueStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQueueStore) ListMessages(ctx context.Context, senderID string, filter models.MessageFilter) ([]models.Message, error) {
	args := m.Called(ctx, senderID, filter)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQueueStore) UpdateMessage(ctx context.Context, id string, update models.MessageUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *mockQueueStore) DeleteMessage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockQueueStore) MessageStats(ctx context.Context, senderID string) (models.MessageStats, error) {
	args := m.Called(ctx, senderID)
	return args.Get(0).(models.MessageStats), args.Error(1)
}

func (m *mockQueueStore) ClearMessages(ctx context.Context, senderID string) (int64, error) {
	args := m.Called(ctx, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueueStore) GetSettings(ctx context.Context, senderID string) (models.Settings, error) {
	args := m.Called(ctx, senderID)
	return args.Get(0).(models.Settings), args.Error(1)
}

func (m *mockQueueStore) SaveSettings(ctx context.Context, senderID string, settings models.Settings) error {
	args := m.Called(ctx, senderID, settings)
	return args.Error(0)
}

func (m *mockQueueStore) IncrementDailyOpen(ctx context.Context, day string) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

// fakeSyncStore is an in-memory store slice for driving the engine through
// multi-cycle scenarios.
type fakeSyncStore struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	order    []string
	dueErr   error
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{messages: make(map[string]*models.Message)}
}

func (f *fakeSyncStore) add(msg models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := msg
	f.messages[msg.ID] = &copied
	f.order = append(f.order, msg.ID)
}

func (f *fakeSyncStore) status(id string) models.MessageStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id].Status
}

func (f *fakeSyncStore) DueMessages(_ context.Context, now time.Time) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dueErr != nil {
		return nil, f.dueErr
	}

	var due []models.Message
	for _, id := range f.order {
		if msg := f.messages[id]; msg.IsDue(now) {
			due = append(due, *msg)
		}
	}
	return due, nil
}

func (f *fakeSyncStore) SetMessageStatus(_ context.Context, id string, status models.MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id].Status = status
	return nil
}

// stubGateway replays configured outcomes and records send order. When block
// is set, Send signals started and waits for release, which lets tests hold a
// sync session open.
type stubGateway struct {
	mu       sync.Mutex
	outcomes map[string]models.Outcome
	sent     []string

	block   bool
	started chan struct{}
	release chan struct{}
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		outcomes: make(map[string]models.Outcome),
		started:  make(chan struct{}, 16),
		release:  make(chan struct{}),
	}
}

func (g *stubGateway) setOutcome(id string, outcome models.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[id] = outcome
}

func (g *stubGateway) sentIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

func (g *stubGateway) Send(_ context.Context, msg *models.Message) models.Outcome {
	g.mu.Lock()
	g.sent = append(g.sent, msg.ID)
	outcome, ok := g.outcomes[msg.ID]
	blocked := g.block
	g.mu.Unlock()

	if blocked {
		g.started <- struct{}{}
		<-g.release
	}

	if !ok {
		return models.Delivered()
	}
	return outcome
}

type stubConnectivity struct {
	mu     sync.Mutex
	online bool
}

func (s *stubConnectivity) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *stubConnectivity) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}
