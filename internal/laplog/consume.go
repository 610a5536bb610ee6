package laplog

import (
	"context"
	"time"

	"justapengu.in/actelemetry/internal/monitoring"
	"justapengu.in/actelemetry/pkg/acudp"
)

const DefaultPollInterval = time.Second

type UpdateHandler interface {
	Handle(u acudp.Update) (Decision, error)
}

// Consume hands updates to handler in the order they were queued. It returns when ctx
// is done, when handler fails, or once updates has been closed and drained. Each wait
// for an update is bounded by pollInterval so cancellation is noticed even when the
// game has gone quiet.
func Consume(ctx context.Context, updates <-chan acudp.Update, pollInterval time.Duration, handler UpdateHandler) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}

			decision, err := handler.Handle(u)

			if err != nil {
				return err
			}

			monitoring.UpdatesHandled.WithLabelValues(decision.String()).Inc()

			if decision == DecisionNewLap {
				monitoring.LapsCompleted.Inc()
			}
		case <-timer.C:
			// nothing arrived in time, go round again
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		timer.Reset(pollInterval)
	}
}
