package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"justapengu.in/actelemetry/pkg/acudp"
)

type scriptedResult struct {
	update *acudp.Update
	err    error
}

// scriptedClient replays canned handshake and update results. Once a script runs out
// it behaves like a quiet socket and times out.
type scriptedClient struct {
	mutex sync.Mutex

	handshakes []*acudp.SessionInfo
	updates    []scriptedResult

	calls []string
}

func (s *scriptedClient) record(call string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.calls = append(s.calls, call)
}

func (s *scriptedClient) Calls() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]string, len(s.calls))
	copy(out, s.calls)

	return out
}

func (s *scriptedClient) Handshake() (*acudp.SessionInfo, error) {
	s.record("handshake")

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.handshakes) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}

	info := s.handshakes[0]
	s.handshakes = s.handshakes[1:]

	return info, nil
}

func (s *scriptedClient) SubscribeUpdates() error {
	s.record("subscribe")
	return nil
}

func (s *scriptedClient) ReceiveUpdate() (*acudp.Update, error) {
	s.record("receive")

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.updates) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}

	result := s.updates[0]
	s.updates = s.updates[1:]

	return result.update, result.err
}

func (s *scriptedClient) Unsubscribe() error {
	s.record("dismiss")
	return nil
}

func (s *scriptedClient) Close() error {
	s.record("close")
	return nil
}

func updateAt(lap uint32, x float32) *acudp.Update {
	return &acudp.Update{LapCount: lap, X: x}
}

func TestReceiverDeliversInOrderUntilConnectionBroken(t *testing.T) {
	info := testSession

	client := &scriptedClient{
		handshakes: []*acudp.SessionInfo{nil, nil, &info},
		updates: []scriptedResult{
			{update: updateAt(1, 1)},
			{update: updateAt(1, 2)},
			{},
			{update: updateAt(1, 3)},
			{err: ErrConnectionBroken},
			{update: updateAt(1, 4)},
		},
	}

	receiver := NewReceiver(client, 16, newTestLogger())

	err := receiver.Run(context.Background())

	if !errors.Is(err, ErrConnectionBroken) {
		t.Fatalf("expected ErrConnectionBroken, got %v", err)
	}

	session, ok := <-receiver.Session()

	if !ok || session != testSession {
		t.Fatalf("expected session %#v, got %#v (ok: %t)", testSession, session, ok)
	}

	var xs []float32

	for update := range receiver.Updates() {
		xs = append(xs, update.X)
	}

	if len(xs) != 3 || xs[0] != 1 || xs[1] != 2 || xs[2] != 3 {
		t.Errorf("expected updates 1, 2, 3 in order, got %v", xs)
	}

	expectedCalls := []string{
		"dismiss",
		"handshake", "handshake", "handshake",
		"subscribe",
		"receive", "receive", "receive", "receive", "receive",
		"dismiss", "close",
	}

	calls := client.Calls()

	if len(calls) != len(expectedCalls) {
		t.Fatalf("expected calls %v, got %v", expectedCalls, calls)
	}

	for i := range calls {
		if calls[i] != expectedCalls[i] {
			t.Fatalf("expected calls %v, got %v", expectedCalls, calls)
		}
	}

	if receiver.State() != StateClosed {
		t.Errorf("expected receiver to be closed, is %s", receiver.State())
	}
}

func TestReceiverStopDuringHandshake(t *testing.T) {
	client := &scriptedClient{}
	receiver := NewReceiver(client, 16, newTestLogger())

	ctx, cfn := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cfn()

	if err := receiver.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok := <-receiver.Session(); ok {
		t.Errorf("expected no session to be published")
	}

	if _, ok := <-receiver.Updates(); ok {
		t.Errorf("expected no updates")
	}

	calls := client.Calls()

	if len(calls) < 4 || calls[0] != "dismiss" || calls[1] != "handshake" {
		t.Fatalf("unexpected calls: %v", calls)
	}

	if calls[len(calls)-2] != "dismiss" || calls[len(calls)-1] != "close" {
		t.Errorf("expected dismiss and close on stop, got %v", calls)
	}

	for _, call := range calls {
		if call == "subscribe" || call == "receive" {
			t.Errorf("receiver should never have streamed, got %v", calls)
			break
		}
	}
}

func TestReceiverStopWhileStreaming(t *testing.T) {
	info := testSession

	client := &scriptedClient{
		handshakes: []*acudp.SessionInfo{&info},
		updates:    []scriptedResult{{update: updateAt(0, 1)}},
	}

	receiver := NewReceiver(client, 16, newTestLogger())

	ctx, cfn := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- receiver.Run(ctx)
	}()

	select {
	case <-receiver.Session():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session")
	}

	select {
	case update := <-receiver.Updates():
		if update.X != 1 {
			t.Errorf("unexpected update: %#v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}

	if receiver.State() != StateStreaming {
		t.Errorf("expected receiver to be streaming, is %s", receiver.State())
	}

	cfn()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}

	if _, ok := <-receiver.Updates(); ok {
		t.Errorf("expected updates channel to be closed")
	}

	calls := client.Calls()

	if calls[len(calls)-2] != "dismiss" || calls[len(calls)-1] != "close" {
		t.Errorf("expected dismiss and close on stop, got %v", calls)
	}
}

func TestReceiverCannotRunTwice(t *testing.T) {
	receiver := NewReceiver(&scriptedClient{}, 1, newTestLogger())

	ctx, cfn := context.WithCancel(context.Background())
	cfn()

	if err := receiver.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if err := receiver.Run(ctx); err != ErrReceiverStarted {
		t.Fatalf("expected ErrReceiverStarted, got %v", err)
	}
}
