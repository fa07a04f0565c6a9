package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sendlater/internal/database"
	"sendlater/internal/models"
	"sendlater/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway delivers everything and remembers what it sent.
type recordingGateway struct {
	mu   sync.Mutex
	sent []string
}

func (g *recordingGateway) Send(_ context.Context, msg *models.Message) models.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg.ID)
	return models.Delivered()
}

type alwaysOnline struct{}

func (alwaysOnline) IsOnline() bool { return true }

func setupTestServer(t *testing.T) (*Server, *recordingGateway) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gw := &recordingGateway{}
	notifier := service.NewNotifier()
	engine := service.NewSyncEngine(db, gw, alwaysOnline{}, notifier, true, logger)
	queue := service.NewQueueService(db, engine, notifier, logger)

	return NewServer(0, queue, logger), gw
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func addTestMessage(t *testing.T, s *Server, deliverAfter time.Time) models.Message {
	t.Helper()

	rec := doRequest(t, s, http.MethodPost, "/api/messages", addMessageRequest{
		SenderID:      "user-1",
		RecipientName: "Alice",
		Text:          "see you soon",
		DeliverAfter:  deliverAfter,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return msg
}

func TestHandleHealth(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleMetrics(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "counters")
}

func TestAddAndGetMessage(t *testing.T) {
	s, _ := setupTestServer(t)
	msg := addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	rec := doRequest(t, s, http.MethodGet, "/api/messages/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, models.MessageStatusPending, got.Status)
}

func TestAddMessage_Validation(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/messages", addMessageRequest{
		SenderID:      "user-1",
		RecipientName: "Alice",
		Text:          "",
		DeliverAfter:  time.Now().UTC().Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/messages", addMessageRequest{
		SenderID:      "user-1",
		RecipientName: "Alice",
		Text:          "hello",
		DeliverAfter:  time.Now().UTC().Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "VALIDATION_FAILED", errResp["error"]["code"])
}

func TestAddMessage_MalformedBody(t *testing.T) {
	s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessage_NotFound(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessages(t *testing.T) {
	s, _ := setupTestServer(t)
	addTestMessage(t, s, time.Now().UTC().Add(2*time.Hour))
	addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	rec := doRequest(t, s, http.MethodGet, "/api/messages?senderId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].DeliverAfter.Before(msgs[1].DeliverAfter))

	// Unknown filter values are rejected.
	rec = doRequest(t, s, http.MethodGet, "/api/messages?senderId=user-1&filter=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No messages for an unknown sender, but still a JSON array.
	rec = doRequest(t, s, http.MethodGet, "/api/messages?senderId=nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestUpdateMessage(t *testing.T) {
	s, _ := setupTestServer(t)
	msg := addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	newText := "changed plans"
	rec := doRequest(t, s, http.MethodPatch, "/api/messages/"+msg.ID, models.MessageUpdate{Text: &newText})
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, newText, got.Text)
}

func TestUpdateMessage_PastDeliveryTimeRejected(t *testing.T) {
	s, _ := setupTestServer(t)
	msg := addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	past := time.Now().UTC().Add(-time.Minute)
	rec := doRequest(t, s, http.MethodPatch, "/api/messages/"+msg.ID, models.MessageUpdate{DeliverAfter: &past})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMessage(t *testing.T) {
	s, _ := setupTestServer(t)
	msg := addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	rec := doRequest(t, s, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearMessages(t *testing.T) {
	s, _ := setupTestServer(t)
	addTestMessage(t, s, time.Now().UTC().Add(time.Hour))
	addTestMessage(t, s, time.Now().UTC().Add(2*time.Hour))

	rec := doRequest(t, s, http.MethodDelete, "/api/messages?senderId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body["removed"])

	// Missing sender is rejected.
	rec = doRequest(t, s, http.MethodDelete, "/api/messages", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	s, _ := setupTestServer(t)
	addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	rec := doRequest(t, s, http.MethodGet, "/api/stats?senderId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.MessageStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)
}

func TestSyncFlow(t *testing.T) {
	s, gw := setupTestServer(t)

	// Immediate messages are due at creation, so the next cycle picks them up.
	rec := doRequest(t, s, http.MethodPost, "/api/messages", addMessageRequest{
		SenderID:      "user-1",
		RecipientName: "Alice",
		Text:          "send right away",
		Delay:         string(models.DelayImmediate),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))

	rec = doRequest(t, s, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.SyncSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.SyncedCount)
	assert.Equal(t, []string{msg.ID}, gw.sent)

	rec = doRequest(t, s, http.MethodGet, "/api/messages/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.MessageStatusSent, got.Status)

	// Editing a sent message is a conflict.
	newText := "too late"
	rec = doRequest(t, s, http.MethodPatch, "/api/messages/"+msg.ID, models.MessageUpdate{Text: &newText})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A second sync has nothing left to deliver.
	rec = doRequest(t, s, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Success)
	assert.Zero(t, summary.SyncedCount)
}

func TestSyncState(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state models.SyncState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.False(t, state.IsSyncing)
	assert.True(t, state.AutoSyncEnabled)
	assert.Nil(t, state.LastSyncTime)

	doRequest(t, s, http.MethodPost, "/api/sync", nil)

	rec = doRequest(t, s, http.MethodGet, "/api/sync", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.NotNil(t, state.LastSyncTime)
}

func TestSettings(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/settings?senderId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings models.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, models.DefaultSettings(), settings)

	settings.AutoSync = false
	rec = doRequest(t, s, http.MethodPut, "/api/settings?senderId=user-1", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/settings?senderId=user-1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.False(t, settings.AutoSync)

	// The toggle reaches the engine.
	rec = doRequest(t, s, http.MethodGet, "/api/sync", nil)
	var state models.SyncState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.False(t, state.AutoSyncEnabled)
}

func TestExport(t *testing.T) {
	s, _ := setupTestServer(t)
	addTestMessage(t, s, time.Now().UTC().Add(time.Hour))

	rec := doRequest(t, s, http.MethodGet, "/api/export?senderId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var export models.MessageExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, "user-1", export.SenderID)
	assert.Len(t, export.Messages, 1)
	assert.NotEmpty(t, export.ExportedAt)

	rec = doRequest(t, s, http.MethodGet, "/api/export", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordOpen(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/opens", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodPut, "/api/messages", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerShutdown_WithoutStart(t *testing.T) {
	s, _ := setupTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestErrorBodyShape(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/messages/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var errResp map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "NOT_FOUND", errResp["error"]["code"])
	assert.NotEmpty(t, errResp["error"]["message"])
}
