// Package acsim is a stand-in for the game's telemetry endpoint. It answers
// handshakes, streams updates to a subscriber and stops streaming on dismiss.
package acsim

import (
	"context"
	"math"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"justapengu.in/actelemetry/pkg/acudp"
)

// UpdateFunc returns the i'th update of a stream. Returning false ends the stream.
type UpdateFunc func(i int) (acudp.Update, bool)

type Simulator struct {
	session  acudp.SessionInfo
	updates  UpdateFunc
	interval time.Duration
	logger   logrus.FieldLogger

	packetConn *net.UDPConn

	mutex            sync.Mutex
	operations       []acudp.Operation
	ignoreHandshakes int
	cancelStream     context.CancelFunc
}

func New(session acudp.SessionInfo, updates UpdateFunc, interval time.Duration, logger logrus.FieldLogger) *Simulator {
	return &Simulator{
		session:  session,
		updates:  updates,
		interval: interval,
		logger:   logger,
	}
}

// IgnoreHandshakes makes the simulator drop the next n handshakes, as the game does
// while it is still loading.
func (s *Simulator) IgnoreHandshakes(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ignoreHandshakes = n
}

// Operations lists every control packet received, in order.
func (s *Simulator) Operations() []acudp.Operation {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]acudp.Operation, len(s.operations))
	copy(out, s.operations)

	return out
}

func (s *Simulator) Listen(address string) error {
	addr, err := net.ResolveUDPAddr("udp", address)

	if err != nil {
		return err
	}

	s.packetConn, err = net.ListenUDP("udp", addr)

	if err != nil {
		return err
	}

	s.logger.Infof("Simulator listening on: %s", s.packetConn.LocalAddr())

	return nil
}

func (s *Simulator) Addr() *net.UDPAddr {
	return s.packetConn.LocalAddr().(*net.UDPAddr)
}

// Serve handles control packets until ctx is done, then closes the socket.
func (s *Simulator) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.stopStream()
		_ = s.packetConn.Close()
	}()

	buf := make([]byte, 64)

	for {
		n, addr, err := s.packetConn.ReadFromUDP(buf)

		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "acsim: could not read from udp socket")
			}
		}

		op, err := acudp.DecodeControlPacket(buf[:n])

		if err != nil {
			s.logger.WithError(err).Warn("Ignoring unknown packet")
			continue
		}

		if err := s.handleOperation(ctx, op, addr); err != nil {
			s.logger.WithError(err).Error("Could not handle control packet")
		}
	}
}

func (s *Simulator) handleOperation(ctx context.Context, op acudp.Operation, addr *net.UDPAddr) error {
	s.mutex.Lock()
	s.operations = append(s.operations, op)
	s.mutex.Unlock()

	s.logger.Debugf("Received %s from %s", op, addr)

	switch op {
	case acudp.OperationHandshake:
		s.mutex.Lock()
		ignore := s.ignoreHandshakes > 0

		if ignore {
			s.ignoreHandshakes--
		}
		s.mutex.Unlock()

		if ignore {
			return nil
		}

		_, err := s.packetConn.WriteToUDP(acudp.EncodeHandshake(s.session), addr)

		return err
	case acudp.OperationSubscribeUpdate:
		s.stopStream()

		streamCtx, cfn := context.WithCancel(ctx)

		s.mutex.Lock()
		s.cancelStream = cfn
		s.mutex.Unlock()

		go s.stream(streamCtx, addr)
	case acudp.OperationDismiss:
		s.stopStream()
	default:
		return errors.Errorf("acsim: unknown operation %d", op)
	}

	return nil
}

func (s *Simulator) stopStream() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cancelStream != nil {
		s.cancelStream()
		s.cancelStream = nil
	}
}

func (s *Simulator) stream(ctx context.Context, addr *net.UDPAddr) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		update, ok := s.updates(i)

		if !ok {
			s.logger.Debugf("Update stream to %s finished after %d updates", addr, i)
			return
		}

		if _, err := s.packetConn.WriteToUDP(acudp.EncodeUpdate(update), addr); err != nil {
			s.logger.WithError(err).Error("Could not send update")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Circuit drives a car around a flat circle of the given radius, starting a new lap
// each time it passes its starting point.
func Circuit(radius float64, speedKmh float32, interval time.Duration) UpdateFunc {
	metresPerUpdate := float64(speedKmh) / 3.6 * interval.Seconds()
	lapLength := 2 * math.Pi * radius

	return func(i int) (acudp.Update, bool) {
		distance := metresPerUpdate * float64(i)
		lap := uint32(distance / lapLength)
		angle := 2 * math.Pi * math.Mod(distance, lapLength) / lapLength

		lapDuration := time.Duration(lapLength / metresPerUpdate * float64(interval))
		elapsed := time.Duration(i) * interval

		u := acudp.Update{
			SpeedKmh:  speedKmh,
			SpeedMph:  speedKmh / 1.609344,
			LapTime:   uint32((elapsed - time.Duration(lap)*lapDuration).Milliseconds()),
			LapCount:  lap,
			Gas:       0.8,
			EngineRPM: 6500,
			Steer:     -0.1,
			Gear:      4,
			X:         float32(radius * math.Cos(angle)),
			Z:         float32(radius * math.Sin(angle)),
		}

		if lap > 0 {
			u.LastLap = uint32(lapDuration.Milliseconds())
			u.BestLap = u.LastLap
		}

		return u, true
	}
}
