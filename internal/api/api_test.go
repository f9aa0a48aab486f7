package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/db"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/retry"
	"roomcheck-backend/internal/storage/storagetest"
	"roomcheck-backend/internal/store"
	"roomcheck-backend/internal/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	tokens *auth.Service
	store  store.Store
}

func newTestServer(t *testing.T, push *webpush.Options) *testServer {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	svc := workflow.New(st, storagetest.New(time.Minute), retry.New(retry.Policy{MaxAttempts: 1}, zap.NewNop()), zap.NewNop())
	t.Cleanup(svc.Shutdown)

	tokens := auth.NewService(config.AuthConfig{Secret: "test-secret", Issuer: "roomcheck"})
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Second}
	return &testServer{
		router: NewRouter(svc, tokens, push, cfg, zap.NewNop()),
		tokens: tokens,
		store:  st,
	}
}

func (s *testServer) token(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	tok, err := s.tokens.Issue(auth.Principal{ID: id, Name: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRespondError(t *testing.T) {
	r := gin.New()
	r.GET("/domain", func(c *gin.Context) {
		respondError(c, fmt.Errorf("%w: room name is required", model.ErrInvalidInput))
	})
	r.GET("/occupied", func(c *gin.Context) {
		respondError(c, model.ErrRoomOccupied)
	})
	r.GET("/internal", func(c *gin.Context) {
		respondError(c, errors.New("connection reset"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domain", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"INVALID_INPUT","message":"invalid input provided: room name is required"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/occupied", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[model.DomainError](t, w)
	assert.Equal(t, "ROOM_OCCUPIED", body.Code)
	assert.Equal(t, model.ErrRoomOccupied.Hint, body.Hint)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestRouter_RolesAreEnforced(t *testing.T) {
	s := newTestServer(t, nil)
	guest := s.token(t, "guest-a", auth.RoleGuest)
	host := s.token(t, "host-1", auth.RoleHost)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/guest/rooms", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/host/rooms", guest, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/guest/current", host, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPost, "/agent/rooms/x/status", host, gin.H{"status": "complete"}).Code)
}

func TestHostRoomEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	host := s.token(t, "host-1", auth.RoleHost)
	other := s.token(t, "host-2", auth.RoleHost)
	agent := s.token(t, "agent", auth.RoleAgent)

	w := s.do(t, http.MethodPost, "/api/host/rooms", host, gin.H{"name": "R101", "depositAmount": "150"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := decode[model.Room](t, w)
	assert.Equal(t, model.RoomStatusCreated, room.Status)
	assert.Equal(t, "150", room.DepositAmount.String())

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/host/rooms", host, gin.H{}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/host/rooms/"+room.ID, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/host/rooms/missing", host, nil).Code)

	w = s.do(t, http.MethodPost, "/api/host/rooms/"+room.ID+"/process", host, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[model.DomainError](t, w).Code)

	w = s.do(t, http.MethodPost, "/agent/rooms/"+room.ID+"/status", agent, gin.H{"status": "awaiting_photos"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/host/rooms/"+room.ID+"/photos", host, gin.H{
		"photos": []gin.H{{"filename": "wide.jpg", "contentType": "image/jpeg"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	upload := decode[workflow.BaselineUpload](t, w)
	assert.Equal(t, model.RoomStatusUploading, upload.Room.Status)
	require.Len(t, upload.Uploads, 1)
	assert.Contains(t, upload.Uploads[0].Key, "/baseline/photos/wide.jpg")

	w = s.do(t, http.MethodPatch, "/api/host/rooms/"+room.ID+"/deposit", host, gin.H{"depositAmount": "80.50"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "80.5", decode[model.Room](t, w).DepositAmount.String())

	w = s.do(t, http.MethodPost, "/agent/rooms/"+room.ID+"/objects", agent, gin.H{
		"objects": []gin.H{{"id": "obj-1", "label": "lamp", "confidence": 0.9}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPatch, "/api/host/rooms/"+room.ID+"/objects/obj-1", host, gin.H{"verified": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[model.DetectedObject](t, w).Verified)

	w = s.do(t, http.MethodGet, "/api/host/rooms", host, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct{ Rooms []model.Room }](t, w).Rooms, 1)

	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodDelete, "/api/host/rooms/"+room.ID, host, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/agent/rooms/"+room.ID, agent, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/host/rooms/"+room.ID, host, nil).Code)
}

func TestSubscriptionEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	guest := s.token(t, "guest-a", auth.RoleGuest)

	w := s.do(t, http.MethodPut, "/api/subscriptions", guest, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode[model.DomainError](t, w).Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions", guest, gin.H{
		"endpoint": "https://push.test/1", "p256dh": "key", "auth": "secret",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	subs, err := s.store.SubscriptionsForUser(context.Background(), "guest-a")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	w = s.do(t, http.MethodDelete, "/api/subscriptions", guest, gin.H{"endpoint": "https://push.test/1"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	guest := "guest-a"

	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/api/vapid_public_key", s.token(t, guest, auth.RoleGuest), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s = newTestServer(t, &webpush.Options{VAPIDPublicKey: "public"})
	w = s.do(t, http.MethodGet, "/api/vapid_public_key", s.token(t, guest, auth.RoleGuest), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"public"}`, w.Body.String())
}
