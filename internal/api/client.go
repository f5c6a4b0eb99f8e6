package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dynatos/pos-terminal/internal/metrics"
)

// TokenSource supplies the bearer token of the signed-in operator.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	BreakerTimeout time.Duration
	Transport      http.RoundTripper
	Tokens         TokenSource
}

// Client talks to the Dynatos backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = TokenFunc(func(context.Context) string { return "" })
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tokens:  tokens,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "backend",
			MaxRequests: 1,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: countsAsSuccess,
			IsExcluded:   callerAborted,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("circuit breaker %s: %s -> %s", name, from, to)
				if to == gobreaker.StateOpen {
					metrics.BreakerState.Set(1)
				} else {
					metrics.BreakerState.Set(0)
				}
			},
		}),
	}
}

// countsAsSuccess keeps client errors (4xx) from tripping the breaker: they
// mean the backend is up and answering.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}

// abortedError marks a call the caller gave up on (cancelled or past its own
// deadline). It says nothing about the backend's health.
type abortedError struct {
	err error
}

func (e *abortedError) Error() string { return e.err.Error() }

func (e *abortedError) Unwrap() error { return e.err }

func callerAborted(err error) bool {
	var aborted *abortedError
	return errors.As(err, &aborted)
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// do sends one request and returns the raw body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, payload any, opts ...requestOption) ([]byte, int, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("error encoding request: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.BackendRequests.WithLabelValues(method, "aborted").Inc()
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := 0
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &abortedError{err: fmt.Errorf("error calling backend: %w", err)}
			}
			return nil, fmt.Errorf("error calling backend: %w", err)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &abortedError{err: fmt.Errorf("error reading response: %w", err)}
			}
			return nil, fmt.Errorf("error reading response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, &Error{Status: resp.StatusCode, Message: errorMessage(data)}
		}
		return data, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BackendRequests.WithLabelValues(method, "rejected").Inc()
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	case callerAborted(err):
		metrics.BackendRequests.WithLabelValues(method, "aborted").Inc()
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	case err != nil:
		metrics.BackendRequests.WithLabelValues(method, "error").Inc()
		return nil, status, fmt.Errorf("%s %s: %w", method, path, err)
	}
	metrics.BackendRequests.WithLabelValues(method, "ok").Inc()
	return body, status, nil
}

const maxErrorMessage = 200

// errorMessage pulls a human message out of an error body; the backend uses
// either {"message": ...} or {"error": ...}.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := []rune(strings.TrimSpace(string(body)))
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return string(msg)
}
