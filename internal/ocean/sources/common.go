package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
)

var errCircuitOpen = errors.New("circuit breaker open")

// newBreaker builds the circuit breaker used by the key-gated, rate-limited
// upstreams. There are no retries anywhere: the breaker only sheds load after
// repeated failures so a struggling upstream is not hammered within its
// rate-limit window.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// fetchThroughBreaker executes one FetchJSON attempt guarded by cb.
func fetchThroughBreaker(ctx context.Context, cb *gobreaker.CircuitBreaker, client *httpx.Client, url string, opts httpx.Options) (json.RawMessage, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return client.FetchJSON(ctx, url, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}
	raw, ok := result.(json.RawMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return raw, nil
}

func ptr(v float64) *float64 { return &v }
