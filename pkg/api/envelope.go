package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is the backend's response wrapper.
type Envelope[T any] struct {
	Status  int    `json:"status"`
	Payload T      `json:"payload"`
	Message string `json:"message,omitempty"`
}

// EnvelopeError is an envelope whose status reports failure.
type EnvelopeError struct {
	Status  int
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// OK reports whether the envelope carries a success status. A missing
// status counts as success.
func (e Envelope[T]) OK() bool {
	return e.Status == 0 || (e.Status >= 200 && e.Status < 300)
}

// Result converts the envelope into a Go result.
func (e Envelope[T]) Result() (T, error) {
	if !e.OK() {
		var zero T
		return zero, &EnvelopeError{Status: e.Status, Message: e.Message}
	}
	return e.Payload, nil
}

// DecodeEnvelope reads one envelope from r.
func DecodeEnvelope[T any](r io.Reader) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Fetch performs the request through c.Do and unwraps the envelope.
func Fetch[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var env Envelope[T]
	if err := c.Do(ctx, method, path, body, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.Result()
}

// FetchList is Fetch for list endpoints. A payload that is missing or not an
// array yields an empty list.
func FetchList[T any](ctx context.Context, c *Client, method, path string) ([]T, error) {
	raw, err := Fetch[json.RawMessage](ctx, c, method, path, nil)
	if err != nil {
		return nil, err
	}

	var items []T
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		c.log.WithField("path", path).Debug("list payload missing or not an array")
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
