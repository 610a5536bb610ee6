package laplog

import (
	"context"
	"errors"
	"testing"
	"time"

	"justapengu.in/actelemetry/pkg/acudp"
)

type recordingHandler struct {
	laps []uint32
	err  error
}

func (r *recordingHandler) Handle(u acudp.Update) (Decision, error) {
	if r.err != nil {
		return DecisionDropped, r.err
	}

	r.laps = append(r.laps, u.LapCount)

	return DecisionRow, nil
}

func TestConsumeDrainsClosedQueueInOrder(t *testing.T) {
	updates := make(chan acudp.Update, 10)

	for i := uint32(0); i < 5; i++ {
		updates <- acudp.Update{LapCount: i}
	}

	close(updates)

	handler := &recordingHandler{}

	if err := Consume(context.Background(), updates, 10*time.Millisecond, handler); err != nil {
		t.Fatal(err)
	}

	if len(handler.laps) != 5 {
		t.Fatalf("expected 5 updates, got %v", handler.laps)
	}

	for i, lap := range handler.laps {
		if lap != uint32(i) {
			t.Fatalf("updates out of order: %v", handler.laps)
		}
	}
}

func TestConsumeStopsOnCancelWhileIdle(t *testing.T) {
	updates := make(chan acudp.Update)

	ctx, cfn := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- Consume(ctx, updates, 10*time.Millisecond, &recordingHandler{})
	}()

	// let a few empty polls go by
	time.Sleep(50 * time.Millisecond)

	cfn()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not stop after cancel")
	}
}

func TestConsumeReturnsHandlerError(t *testing.T) {
	updates := make(chan acudp.Update, 1)
	updates <- acudp.Update{}

	handlerErr := errors.New("disk full")

	err := Consume(context.Background(), updates, 10*time.Millisecond, &recordingHandler{err: handlerErr})

	if err != handlerErr {
		t.Fatalf("expected handler error, got %v", err)
	}
}
