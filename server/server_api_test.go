package server

import (
	"context"
	"encoding/json"
	"errors"
	"evcentral/internal"
	"evcentral/internal/config"
	"evcentral/ocpp/core"
	"evcentral/ocpp/remotetrigger"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApi(t *testing.T, handler RequestHandler) *httptest.Server {
	t.Helper()
	conf, err := config.Default()
	require.NoError(t, err)
	api := NewServerApi(conf, internal.NewNopLogger())
	api.SetRequestHandler(handler)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+apiEndpoint, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestApiCommand(t *testing.T) {
	var received *Command
	ts := newTestApi(t, func(_ context.Context, command *Command) (*CommandResult, error) {
		received = command
		return &CommandResult{MessageId: "m1", Status: "received", Payload: json.RawMessage(`{"status":"Accepted"}`)}, nil
	})

	resp := post(t, ts, `{"charge_point_id":"cp-1","connector_id":2,"feature_name":"RemoteStartTransaction","payload":"TAG1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, received)
	assert.Equal(t, "cp-1", received.ChargePointId)
	assert.Equal(t, 2, received.ConnectorId)
	assert.Equal(t, "TAG1", received.Payload)

	var result CommandResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "m1", result.MessageId)
	assert.JSONEq(t, `{"status":"Accepted"}`, string(result.Payload))
}

func TestApiErrorStatus(t *testing.T) {
	var failure error
	ts := newTestApi(t, func(context.Context, *Command) (*CommandResult, error) {
		return nil, failure
	})

	assert.Equal(t, http.StatusBadRequest, post(t, ts, `{not json`).StatusCode)

	failure = fmt.Errorf("%w: feature name is empty", ErrBadCommand)
	assert.Equal(t, http.StatusBadRequest, post(t, ts, `{}`).StatusCode)

	failure = fmt.Errorf("sending Reset to cp-1: %w", ErrNotConnected)
	assert.Equal(t, http.StatusNotFound, post(t, ts, `{}`).StatusCode)

	failure = errors.New("store down")
	assert.Equal(t, http.StatusInternalServerError, post(t, ts, `{}`).StatusCode)

	resp, err := http.Get(ts.URL + apiEndpoint)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBuildRequest(t *testing.T) {
	request, err := buildRequest(&Command{FeatureName: core.RemoteStartTransactionFeatureName, ConnectorId: 2, Payload: "TAG1"})
	require.NoError(t, err)
	start := request.(*core.RemoteStartTransactionRequest)
	assert.Equal(t, "TAG1", start.IdTag)
	require.NotNil(t, start.ConnectorId)
	assert.Equal(t, 2, *start.ConnectorId)

	request, err = buildRequest(&Command{FeatureName: core.RemoteStopTransactionFeatureName, Payload: "17"})
	require.NoError(t, err)
	assert.Equal(t, 17, request.(*core.RemoteStopTransactionRequest).TransactionId)

	request, err = buildRequest(&Command{FeatureName: core.ResetFeatureName, Payload: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, core.ResetTypeSoft, request.(*core.ResetRequest).Type)

	request, err = buildRequest(&Command{FeatureName: remotetrigger.TriggerMessageFeatureName, Payload: "Heartbeat"})
	require.NoError(t, err)
	trigger := request.(*remotetrigger.TriggerMessageRequest)
	assert.Equal(t, remotetrigger.TriggerHeartbeat, trigger.RequestedMessage)
	assert.Nil(t, trigger.ConnectorId)

	request, err = buildRequest(&Command{FeatureName: core.ChangeConfigurationFeatureName, Payload: "HeartbeatInterval = 60"})
	require.NoError(t, err)
	change := request.(*core.ChangeConfigurationRequest)
	assert.Equal(t, "HeartbeatInterval", change.Key)
	assert.Equal(t, "60", change.Value)

	request, err = buildRequest(&Command{FeatureName: core.GetConfigurationFeatureName, Payload: "A, B,,"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, request.(*core.GetConfigurationRequest).Key)
}

func TestBuildRequestRejects(t *testing.T) {
	commands := []*Command{
		{FeatureName: ""},
		{FeatureName: "UnlockConnector"},
		{FeatureName: core.RemoteStartTransactionFeatureName},
		{FeatureName: core.RemoteStopTransactionFeatureName, Payload: "abc"},
		{FeatureName: remotetrigger.TriggerMessageFeatureName, Payload: "Everything"},
		{FeatureName: core.ChangeConfigurationFeatureName, Payload: "novalue"},
	}
	for _, command := range commands {
		_, err := buildRequest(command)
		assert.ErrorIs(t, err, ErrBadCommand, command.FeatureName)
	}
}
