// Package eventpublisher hands drained domain events to the outside world.
package eventpublisher

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finveo/loan-bank/internal/domain"
)

// LogPublisher writes every event as a structured log line. It stands in
// for a broker-backed publisher behind the services' Publisher port.
type LogPublisher struct{}

// NewLogPublisher returns a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the drained events in order.
func (p *LogPublisher) Publish(ctx context.Context, events []domain.Event) error {
	l := zerolog.Ctx(ctx)

	for _, e := range events {
		l.Info().
			Str("event", e.EventName()).
			Time("occurred_at", e.OccurredAt()).
			Msg("domain event")
	}

	return nil
}
