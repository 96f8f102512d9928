package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
)

type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerProcessor fails fast while the processor is unhealthy. Every
// failure it returns wraps domain.ErrUpstream.
type BreakerProcessor struct {
	next Processor
	cb   *gobreaker.CircuitBreaker[*Session]
}

func NewBreakerProcessor(next Processor, st BreakerSettings, log *slog.Logger) *BreakerProcessor {
	if st.MaxFailures == 0 {
		st.MaxFailures = 5
	}
	if st.Timeout <= 0 {
		st.Timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 1,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: isHealthyOutcome,
	})
	return &BreakerProcessor{next: next, cb: cb}
}

func (b *BreakerProcessor) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	session, err := b.cb.Execute(func() (*Session, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	return session, nil
}

func (b *BreakerProcessor) State() gobreaker.State {
	return b.cb.State()
}

// isHealthyOutcome keeps client-side rejections from tripping the breaker.
func isHealthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != 429
	}
	return false
}
