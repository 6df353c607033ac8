// Package transport submits fact records to the collector over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pcinventory/internal/facts"
	"pcinventory/internal/models"
	"pcinventory/internal/version"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// Receipt is the collector's answer to a successful submission.
type Receipt struct {
	Action string
	ID     int64
}

// Error is any failed submission: connection failure, timeout or a
// non-2xx response. Status is 0 when no response was received.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("submit failed: %s", e.Message)
	}
	return fmt.Sprintf("submit failed (status %d): %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Client posts records to a single collector URL.
type Client struct {
	url     string
	token   string
	http    *http.Client
	agentUA string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for url whose requests give up after timeout.
func New(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{},
		agentUA: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = timeout
	return c
}

// Submit posts r as JSON. A non-2xx response, or a 2xx response without a
// success body, is returned as *Error.
func (c *Client) Submit(ctx context.Context, r facts.Record) (Receipt, error) {
	payload, err := json.Marshal(r.Request())
	if err != nil {
		return Receipt{}, fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, &Error{Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.agentUA)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return Receipt{}, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, &Error{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	return decodeReceipt(resp.StatusCode, body)
}

// decodeReceipt accepts only a success body naming the action taken. Any
// other 2xx answer, such as a proxy login page, is an *Error.
func decodeReceipt(status int, body []byte) (Receipt, error) {
	var ok models.PCInfoResponse
	if err := json.Unmarshal(body, &ok); err != nil {
		return Receipt{}, &Error{Status: status, Message: fmt.Sprintf("unexpected response body: %v", err), Err: err}
	}
	if ok.Status != models.StatusSuccess {
		return Receipt{}, &Error{Status: status, Message: errorMessage(status, body)}
	}
	switch ok.Action {
	case models.ActionCreated, models.ActionUpdated:
		return Receipt{Action: ok.Action, ID: ok.ID}, nil
	}
	return Receipt{}, &Error{Status: status, Message: fmt.Sprintf("unknown action %q", ok.Action)}
}

func errorMessage(status int, body []byte) string {
	var er models.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return er.Message
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}
