package hooks

import (
	"context"
	"encoding/json"
	"evcentral/entity"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookAuthorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		var req authorizationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cp-1", req.ChargePointId)
		_, _ = w.Write([]byte(`{"status":"Accepted","expiry_date":"2030-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	webhook := NewWebhook("remote", server.URL, "secret", time.Second, logger)
	result, err := webhook.Authorize(context.Background(), "cp-1", "TAG")
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Status)
	assert.Equal(t, "2030-01-01T00:00:00Z", result.ExpiryDate)
}

func TestDecodeAuthorizationResult(t *testing.T) {
	_, err := decodeAuthorizationResult([]byte(`["Accepted"]`))
	assert.Error(t, err)
	_, err = decodeAuthorizationResult([]byte(`null`))
	assert.Error(t, err)
	_, err = decodeAuthorizationResult([]byte(`{"expiry_date":"2030-01-01"}`))
	assert.Error(t, err)
	_, err = decodeAuthorizationResult([]byte(`{"status":1}`))
	assert.Error(t, err)

	result, err := decodeAuthorizationResult([]byte(`{"status":"Accepted","expiry_date":12345}`))
	require.NoError(t, err)
	assert.Equal(t, "12345", result.ExpiryDate)
}

func TestWebhookBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	webhook := NewWebhook("flaky", server.URL, "", time.Second, logger)
	for i := 0; i < webhookMaxFailures; i++ {
		assert.Error(t, webhook.OnStateChange(context.Background(), &entity.StateChange{Id: "sc"}))
	}
	assert.Equal(t, gobreaker.StateOpen, webhook.State())

	err := webhook.OnAuthorization(context.Background(), &entity.Authorization{Id: "a"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(webhookMaxFailures), atomic.LoadInt32(&hits))
}
