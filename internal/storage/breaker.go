package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"xplore/internal/middleware"
	"xplore/internal/observability"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker in front of the blob store.
type BreakerSettings struct {
	Name string
	// MinRequests is the number of calls in one Interval before the
	// failure ratio is considered.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls a minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "blob-store",
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		OpenTimeout:  30 * time.Second,
	}
}

// BreakerStore fails fast with gobreaker.ErrOpenState while the wrapped store is unhealthy.
type BreakerStore struct {
	next BlobStore
	cb   *gobreaker.CircuitBreaker[string]
}

// NewBreakerStore wraps next with a circuit breaker.
func NewBreakerStore(next BlobStore, st BreakerSettings) *BreakerStore {
	observability.BreakerState.WithLabelValues(st.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: 1,
		Interval:    st.Interval,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < st.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= st.FailureRatio
		},
		// a caller giving up says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrForeignURL)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("blob store circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			observability.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
			observability.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

func (b *BreakerStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.Upload(ctx, data, contentType)
	})
}

func (b *BreakerStore) UploadVideo(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.UploadVideo(ctx, r, size, contentType)
	})
}

func (b *BreakerStore) Delete(ctx context.Context, url string) error {
	_, err := b.cb.Execute(func() (string, error) {
		return "", b.next.Delete(ctx, url)
	})
	return err
}

// State is reported by the readiness probe.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
