package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sendlater/internal/models"
	"sendlater/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

// Client delivers queued messages to the remote endpoint and classifies the
// result. The transport itself is replaceable; the classification contract is
// what the sync engine depends on.
type Client interface {
	Send(ctx context.Context, msg *models.Message) models.Outcome
}

type sendRequest struct {
	MessageID     string `json:"messageId"`
	SenderID      string `json:"senderId"`
	RecipientName string `json:"recipientName"`
	Text          string `json:"text"`
}

type sendResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

// Option configures the gateway client.
type Option func(*httpClient)

// WithBreaker wraps sends in a circuit breaker. An open breaker surfaces as
// a retryable failure so messages stay pending.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

// WithHTTPClient replaces the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.client = hc }
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger, opts ...Option) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	c := &httpClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Send(ctx context.Context, msg *models.Message) models.Outcome {
	if c.breaker == nil {
		return c.send(ctx, msg)
	}

	var outcome models.Outcome
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		outcome = c.send(ctx, msg)
		if outcome.Kind == models.OutcomeRetryableFailure {
			return errors.New(outcome.Reason)
		}
		return nil
	})
	if circuitbreaker.IsOpenError(err) {
		return models.RetryableFailure("delivery gateway circuit open")
	}
	return outcome
}

func (c *httpClient) send(ctx context.Context, msg *models.Message) models.Outcome {
	payload := sendRequest{
		MessageID:     msg.ID,
		SenderID:      msg.SenderID,
		RecipientName: msg.RecipientName,
		Text:          msg.Text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return models.PermanentFailure(fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return models.PermanentFailure(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and connection errors are transient; the next cycle retries.
		c.logger.WithError(err).WithField("messageId", msg.ID).Debug("Gateway request failed")
		return models.RetryableFailure(fmt.Sprintf("gateway unreachable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return classify(resp.StatusCode, body)
}

// classify maps a gateway response to a delivery outcome. Server-side and
// throttling conditions are retryable; any other client error means the
// request itself will never be accepted.
func classify(statusCode int, body []byte) models.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return models.Delivered()
	case statusCode >= 500,
		statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout:
		return models.RetryableFailure(fmt.Sprintf("gateway returned %d", statusCode))
	default:
		reason := fmt.Sprintf("gateway rejected message with %d", statusCode)
		var parsed sendResponse
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
			reason = fmt.Sprintf("%s: %s", reason, parsed.Error)
		}
		return models.PermanentFailure(reason)
	}
}
