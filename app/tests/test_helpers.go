package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/ManYouOriginal/ChatTest/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockPresenceStore struct {
	mock.Mock
}

type MockGroupDirectory struct {
	mock.Mock
}

type MockHistoryStore struct {
	mock.Mock
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockPresenceStore) MarkOnline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) MarkOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPresenceStore) SetNickname(ctx context.Context, userID, nickname string) error {
	args := m.Called(ctx, userID, nickname)
	return args.Error(0)
}

func (m *MockPresenceStore) Nickname(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockPresenceStore) ListOnline(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockGroupDirectory) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (string, error) {
	args := m.Called(ctx, name, creatorID, memberIDs)
	return args.String(0), args.Error(1)
}

func (m *MockGroupDirectory) AddMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupDirectory) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGroupDirectory) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGroupDirectory) Metadata(ctx context.Context, groupID string) (*models.Group, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(*models.Group), args.Error(1)
}

func (m *MockHistoryStore) Append(ctx context.Context, chatKey string, message models.Message) error {
	args := m.Called(ctx, chatKey, message)
	return args.Error(0)
}

func (m *MockHistoryStore) Range(ctx context.Context, chatKey string) ([]models.Message, error) {
	args := m.Called(ctx, chatKey)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockTokenRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) Revoke(ctx context.Context, tokenHash string, expiration time.Duration) error {
	args := m.Called(ctx, tokenHash, expiration)
	return args.Error(0)
}

// RecordingDeliverer captures every envelope the router hands out, keyed by
// recipient. Send succeeds only for users marked connected.
type RecordingDeliverer struct {
	mu        sync.Mutex
	connected  map[string]bool
	Sent       map[string][]models.Envelope
	Broadcasts []models.Envelope
}

func NewRecordingDeliverer(connectedUsers ...string) *RecordingDeliverer {
	connected := make(map[string]bool, len(connectedUsers))
	for _, userID := range connectedUsers {
		connected[userID] = true
	}
	return &RecordingDeliverer{
		connected: connected,
		Sent:      make(map[string][]models.Envelope),
	}
}

func (d *RecordingDeliverer) Send(userID string, envelope models.Envelope) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected[userID] {
		return false
	}
	d.Sent[userID] = append(d.Sent[userID], envelope)
	return true
}

func (d *RecordingDeliverer) Broadcast(envelope models.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Broadcasts = append(d.Broadcasts, envelope)
}

func (d *RecordingDeliverer) IsConnected(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected[userID]
}

func (d *RecordingDeliverer) SentTo(userID string) []models.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Sent[userID]
}

func CreateTestRequest(url, method string, body interface{}) *http.Request {
	var buffer bytes.Buffer
	if body != nil {
		json.NewEncoder(&buffer).Encode(body)
	}

	req := httptest.NewRequest(method, url, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func ExecuteHandler(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
