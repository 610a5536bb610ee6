package telemetry

import (
	"context"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"justapengu.in/actelemetry/internal/monitoring"
	"justapengu.in/actelemetry/pkg/acudp"
)

type State uint8

const (
	StateIdle State = iota
	StateHandshaking
	StateStreaming
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const DefaultQueueSize = 1024

var ErrReceiverStarted = errors.New("telemetry: receiver has already been started")

// Receiver drives a SessionClient through handshake and subscription and hands every
// update it receives to a single consumer, in arrival order.
type Receiver struct {
	client SessionClient
	logger Logger

	updates chan acudp.Update
	session chan acudp.SessionInfo

	mutex   sync.RWMutex
	state   State
	started bool
}

func NewReceiver(client SessionClient, queueSize int, logger Logger) *Receiver {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	return &Receiver{
		client:  client,
		logger:  logger,
		updates: make(chan acudp.Update, queueSize),
		session: make(chan acudp.SessionInfo, 1),
		state:   StateIdle,
	}
}

// Updates is closed once Run has returned and the client has been closed. Updates
// queued before that are still delivered.
func (r *Receiver) Updates() <-chan acudp.Update {
	return r.updates
}

// Session yields the SessionInfo once the handshake succeeds. It is closed when Run
// returns, so a receive with ok == false means no session was established.
func (r *Receiver) Session() <-chan acudp.SessionInfo {
	return r.session
}

func (r *Receiver) State() State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.state
}

func (r *Receiver) setState(state State) {
	r.mutex.Lock()
	previous := r.state
	r.state = state
	r.mutex.Unlock()

	r.logger.Debugf("Receiver state: %s -> %s", previous, state)
}

// Run blocks until ctx is done or the client fails. Every exit path dismisses the
// session and closes the client.
func (r *Receiver) Run(ctx context.Context) (err error) {
	r.mutex.Lock()

	if r.started {
		r.mutex.Unlock()
		return ErrReceiverStarted
	}

	r.started = true
	r.mutex.Unlock()

	defer func() {
		if closeErr := r.stop(); err == nil {
			err = closeErr
		}
	}()

	for {
		switch r.State() {
		case StateIdle:
			// clear out any session left over from a previous run
			if err := r.client.Unsubscribe(); err != nil {
				return err
			}

			r.setState(StateHandshaking)
		case StateHandshaking:
			if ctx.Err() != nil {
				return nil
			}

			monitoring.HandshakeAttempts.Inc()

			info, err := r.client.Handshake()

			if err != nil {
				return err
			} else if info == nil {
				continue
			}

			r.logger.Infof("Connected: %s", info)
			r.logger.Debugf("Handshake reply: %s", spew.Sdump(info))

			r.session <- *info

			if err := r.client.SubscribeUpdates(); err != nil {
				return err
			}

			r.setState(StateStreaming)
		case StateStreaming:
			if ctx.Err() != nil {
				return nil
			}

			update, err := r.client.ReceiveUpdate()

			if err != nil {
				return err
			} else if update == nil {
				monitoring.ReceiveTimeouts.Inc()
				continue
			}

			select {
			case r.updates <- *update:
				monitoring.UpdatesReceived.Inc()
			case <-ctx.Done():
				return nil
			}
		default:
			return errors.Errorf("telemetry: receiver in unexpected state: %s", r.State())
		}
	}
}

func (r *Receiver) stop() error {
	r.setState(StateStopping)

	defer func() {
		r.setState(StateClosed)
		close(r.updates)
		close(r.session)
	}()

	if err := r.client.Unsubscribe(); err != nil {
		r.logger.WithError(err).Warn("Could not dismiss session")
	}

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "telemetry: could not close client")
	}

	return nil
}
