package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 4 << 20

// requester performs single GET attempts for one feed behind a circuit breaker.
// There are no retries: a failed attempt waits for the next scheduled poll.
type requester struct {
	feed    string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// newRequester builds a requester whose breaker opens after five consecutive
// failures and half-opens again after openFor. Keep openFor below the poll
// interval so every scheduled poll still reaches the upstream.
func newRequester(feed string, client *http.Client, openFor time.Duration) *requester {
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        feed,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &requester{feed: feed, client: client, circuit: cb}
}

// get executes the request built by buildRequest and returns the response body.
// Every failure is returned as a *FetchError.
func (r *requester) get(ctx context.Context, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if r.client == nil {
		return nil, &FetchError{Feed: r.feed, Err: errNoHTTPClient}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, &FetchError{Feed: r.feed, Err: err}
	}

	result, err := r.circuit.Execute(func() (interface{}, error) {
		resp, execErr := r.client.Do(req)
		if execErr != nil {
			return nil, &FetchError{Feed: r.feed, Err: execErr}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Drain a little so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &FetchError{Feed: r.feed, Status: resp.StatusCode, Err: errUnexpected}
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, &FetchError{Feed: r.feed, Status: resp.StatusCode, Err: readErr}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Feed: r.feed, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, &FetchError{Feed: r.feed, Err: fmt.Errorf("unexpected result type from circuit breaker")}
	}
	return body, nil
}
