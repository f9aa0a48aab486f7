package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/agent"
	"roomcheck-backend/internal/api"
	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/db"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/retry"
	"roomcheck-backend/internal/storage/storagetest"
	"roomcheck-backend/internal/store"
	"roomcheck-backend/internal/workflow"
)

type client struct {
	t      *testing.T
	base   string
	token  string
	status int
	body   []byte
}

func (c *client) call(method, path string, body any) *client {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(c.t, err)
	c.status = resp.StatusCode
	c.body = out.Bytes()
	return c
}

func (c *client) into(v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(c.body, v), string(c.body))
}

func (c *client) errorCode() string {
	c.t.Helper()
	var e model.DomainError
	c.into(&e)
	return e.Code
}

// TestCheckoutRefundScenario walks room R101 through two guests' stays over
// HTTP and checks the events handed to the agent.
func TestCheckoutRefundScenario(t *testing.T) {
	// --- Test Setup ---
	log := zaptest.NewLogger(t)
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, log)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	st := store.NewGormStore(gormDB)
	svc := workflow.New(st, storagetest.New(time.Minute), retry.New(retry.Policy{MaxAttempts: 2}, zap.NewNop()), zap.NewNop())
	defer svc.Shutdown()

	tokens := auth.NewService(config.AuthConfig{Secret: "integration", Issuer: "roomcheck"})
	server := httptest.NewServer(api.NewRouter(svc, tokens, nil, config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        time.Second,
	}, zap.NewNop()))
	defer server.Close()

	as := func(id, name string, role auth.Role) *client {
		tok, err := tokens.Issue(auth.Principal{ID: id, Name: name, Role: role}, time.Hour)
		require.NoError(t, err)
		return &client{t: t, base: server.URL, token: tok}
	}
	host := as("host-1", "Hank", auth.RoleHost)
	agentClient := as("agent", "Agent", auth.RoleAgent)
	guestA := as("guest-a", "Alice", auth.RoleGuest)
	guestB := as("guest-b", "Bob", auth.RoleGuest)

	// --- Host prepares R101 ---
	var room model.Room
	require.Equal(t, http.StatusCreated, host.call(http.MethodPost, "/api/host/rooms", map[string]any{"name": "R101"}).status)
	host.into(&room)
	assert.Equal(t, "100", room.DepositAmount.String())

	for _, step := range []struct {
		c      *client
		method string
		path   string
		body   any
	}{
		{agentClient, http.MethodPost, "/agent/rooms/" + room.ID + "/status", map[string]any{"status": "awaiting_photos"}},
		{host, http.MethodPost, "/api/host/rooms/" + room.ID + "/photos", map[string]any{
			"photos": []map[string]any{{"filename": "wide.jpg", "contentType": "image/jpeg"}},
		}},
		{agentClient, http.MethodPost, "/agent/rooms/" + room.ID + "/status", map[string]any{"status": "ready_to_process"}},
		{host, http.MethodPost, "/api/host/rooms/" + room.ID + "/process", nil},
		{agentClient, http.MethodPost, "/agent/rooms/" + room.ID + "/objects", map[string]any{
			"objects": []map[string]any{{"label": "lamp", "confidence": 0.92}, {"label": "kettle", "confidence": 0.88}},
		}},
		{agentClient, http.MethodPost, "/agent/rooms/" + room.ID + "/status", map[string]any{"status": "complete"}},
	} {
		status := step.c.call(step.method, step.path, step.body).status
		require.Less(t, status, 300, "%s %s: %s", step.method, step.path, step.c.body)
	}

	// --- Guest A checks in; guest B is turned away ---
	require.Equal(t, http.StatusOK, guestA.call(http.MethodPost, "/api/guest/rooms/"+room.ID+"/checkin", nil).status)

	assert.Equal(t, http.StatusConflict, guestB.call(http.MethodPost, "/api/guest/rooms/"+room.ID+"/checkin", nil).status)
	assert.Equal(t, "ROOM_OCCUPIED", guestB.errorCode())

	var available struct{ Rooms []model.Room }
	guestB.call(http.MethodGet, "/api/guest/rooms", nil).into(&available)
	assert.Empty(t, available.Rooms)

	// --- Guest A checks out with photos ---
	var checkout model.Checkout
	require.Equal(t, http.StatusCreated,
		guestA.call(http.MethodPost, "/api/guest/rooms/"+room.ID+"/checkout", map[string]any{"willUploadPhotos": true}).status)
	guestA.into(&checkout)
	assert.Equal(t, model.CheckoutStatusPending, checkout.Status)

	assert.Equal(t, http.StatusConflict, guestA.call(http.MethodPost,
		"/api/guest/rooms/"+room.ID+"/checkouts/"+checkout.ID+"/confirm", nil).status)
	assert.Equal(t, "NOT_AWAITING_CONFIRMATION", guestA.errorCode())

	// --- Agent reports one missing item ---
	var summary workflow.RefundView
	require.Equal(t, http.StatusOK, agentClient.call(http.MethodPost, "/agent/checkouts/"+checkout.ID+"/comparison", map[string]any{
		"missingObjects": []map[string]any{{"label": "lamp", "evidenceRef": "evidence/lamp.jpg"}},
	}).status, string(agentClient.body))
	agentClient.into(&summary)
	assert.Equal(t, model.CheckoutStatusAwaitingConfirmation, summary.Status)
	assert.Equal(t, "10", summary.RefundDeduction.String())

	guestA.call(http.MethodGet, "/api/guest/rooms/"+room.ID+"/checkouts/"+checkout.ID+"/refund", nil).into(&summary)
	assert.Equal(t, "90", summary.RefundAmount.String())
	require.Len(t, summary.MissingObjects, 1)
	assert.NotEmpty(t, summary.MissingObjects[0].EvidenceURL)

	// --- Guest A confirms; R101 is released ---
	require.Equal(t, http.StatusOK, guestA.call(http.MethodPost,
		"/api/guest/rooms/"+room.ID+"/checkouts/"+checkout.ID+"/confirm", nil).status)
	guestA.into(&summary)
	assert.Equal(t, model.CheckoutStatusComplete, summary.Status)
	assert.Equal(t, "90", summary.RefundAmount.String())

	var stay struct{ Stay *workflow.CurrentStay }
	guestA.call(http.MethodGet, "/api/guest/current", nil).into(&stay)
	assert.Nil(t, stay.Stay)

	require.Equal(t, http.StatusOK, guestB.call(http.MethodPost, "/api/guest/rooms/"+room.ID+"/checkin", nil).status)
	guestB.into(&room)
	assert.True(t, room.HeldBy("guest-b"))

	// --- Host sees the whole conversation ---
	var chat struct{ Messages []model.ChatMessage }
	host.call(http.MethodGet, "/api/rooms/"+room.ID+"/messages?limit=100", nil).into(&chat)
	var texts []string
	for _, m := range chat.Messages {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "Alice checked in.")
	assert.Contains(t, texts, "Alice confirmed checkout. Refund: $90.00.")
	assert.Contains(t, texts, "Bob checked in.")

	// --- Every change reaches the agent stream in order ---
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	relay := agent.NewRelay(st, agent.NewRedisPublisher(rdb, "roomcheck:agent", 1000), time.Second, 500, log)
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)

	entries, err := rdb.XRange(context.Background(), "roomcheck:agent", "-", "+").Result()
	require.NoError(t, err)
	var kinds []string
	for _, e := range entries {
		if e.Values["room_id"] == room.ID {
			kinds = append(kinds, e.Values["kind"].(string))
		}
	}
	assert.Subset(t, kinds, []string{
		model.EventRoomCreated,
		model.EventRoomCheckedIn,
		model.EventCheckoutStarted,
		model.EventCheckoutResultsReady,
		model.EventRoomUnlocked,
		model.EventCheckoutCompleted,
	})
	assert.Equal(t, model.EventRoomCreated, kinds[0])
	assert.Equal(t, model.EventRoomCheckedIn, kinds[len(kinds)-1])

	pending, err := st.PendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
