package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"evcentral/entity"
	"evcentral/internal"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultWebhookTimeout  = 5 * time.Second
	webhookMaxFailures     = 5
	webhookBreakerTimeout  = 30 * time.Second
	webhookBreakerInterval = 60 * time.Second
	webhookMaxResponseSize = 1 << 20
)

// Webhook POSTs hook payloads as JSON to a remote endpoint through a circuit breaker.
type Webhook struct {
	name    string
	url     string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type authorizationRequest struct {
	ChargePointId string `json:"charge_point_id"`
	IdTag         string `json:"id_tag"`
}

type hookEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWebhook(name, url, token string, timeout time.Duration, logger internal.LogHandler) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "webhook:" + name,
		MaxRequests: 1,
		Interval:    webhookBreakerInterval,
		Timeout:     webhookBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= webhookMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from.String(), to.String()))
		},
	})
	return &Webhook{
		name:    name,
		url:     url,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

func (w *Webhook) Name() string {
	return w.name
}

// Authorize expects a JSON object with a status and an optional expiry_date.
func (w *Webhook) Authorize(ctx context.Context, chargePointId, idTag string) (*AuthorizationResult, error) {
	body, err := w.post(ctx, authorizationRequest{ChargePointId: chargePointId, IdTag: idTag})
	if err != nil {
		return nil, err
	}
	return decodeAuthorizationResult(body)
}

func (w *Webhook) OnAuthorization(ctx context.Context, authorization *entity.Authorization) error {
	_, err := w.post(ctx, hookEvent{Event: CategoryAuthorization, Data: authorization})
	return err
}

func (w *Webhook) OnStateChange(ctx context.Context, stateChange *entity.StateChange) error {
	_, err := w.post(ctx, hookEvent{Event: CategoryStateChange, Data: stateChange})
	return err
}

func (w *Webhook) State() gobreaker.State {
	return w.breaker.State()
}

func (w *Webhook) post(ctx context.Context, data interface{}) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: encoding body: %w", w.name, err)
	}
	resp, err := w.breaker.Execute(func() ([]byte, error) {
		return w.doRequest(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("webhook %s circuit open: %w", w.name, err)
		}
		return nil, fmt.Errorf("webhook %s: %w", w.name, err)
	}
	return resp, nil
}

func (w *Webhook) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Token "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, webhookMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

// decodeAuthorizationResult rejects anything but an object carrying a string status.
// A non-string expiry is kept in literal form so it falls back to the default expiry.
func decodeAuthorizationResult(body []byte) (*AuthorizationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("malformed authorization result: %s", truncateBody(body))
	}
	rawStatus, ok := fields["status"]
	if !ok {
		return nil, fmt.Errorf("authorization result without status: %s", truncateBody(body))
	}
	result := &AuthorizationResult{}
	if err := json.Unmarshal(rawStatus, &result.Status); err != nil {
		return nil, fmt.Errorf("authorization result status is not a string: %s", rawStatus)
	}
	if rawExpiry, ok := fields["expiry_date"]; ok && string(rawExpiry) != "null" {
		if err := json.Unmarshal(rawExpiry, &result.ExpiryDate); err != nil {
			result.ExpiryDate = string(rawExpiry)
		}
	}
	return result, nil
}

func truncateBody(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
