package telemetry

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"justapengu.in/actelemetry/pkg/acudp"
)

type Logger = logrus.FieldLogger

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 9996
	DefaultTimeout = 2 * time.Second
)

// ErrConnectionBroken is returned when the socket reports data ready but yields an
// empty read. It is fatal to the session.
var ErrConnectionBroken = errors.New("telemetry: socket connection broken")

// SessionClient is the game side of a telemetry session. Handshake and ReceiveUpdate
// return nil and no error when nothing arrived before the timeout.
type SessionClient interface {
	Handshake() (*acudp.SessionInfo, error)
	SubscribeUpdates() error
	ReceiveUpdate() (*acudp.Update, error)
	Unsubscribe() error
	Close() error
}

type Client struct {
	remoteAddress *net.UDPAddr
	packetConn    *net.UDPConn
	timeout       time.Duration
	logger        Logger

	closeOnce sync.Once
	closeErr  error
}

func NewClient(host string, port int, timeout time.Duration, logger Logger) (*Client, error) {
	remoteAddress, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))

	if err != nil {
		return nil, errors.Wrapf(err, "telemetry: could not resolve %s:%d", host, port)
	}

	// not dialled: an unconnected socket does not surface ICMP unreachable errors while
	// the game is still starting up.
	packetConn, err := net.ListenUDP("udp", nil)

	if err != nil {
		return nil, errors.Wrap(err, "telemetry: could not open udp socket")
	}

	return &Client{
		remoteAddress: remoteAddress,
		packetConn:    packetConn,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

func (c *Client) RemoteAddress() string {
	return c.remoteAddress.String()
}

func (c *Client) send(op acudp.Operation) error {
	_, err := c.packetConn.WriteToUDP(acudp.ControlPacket(op), c.remoteAddress)

	if err != nil {
		return errors.Wrapf(err, "telemetry: could not send %s to %s", op, c.remoteAddress)
	}

	return nil
}

// receive reads until size bytes have arrived or the timeout elapses. A timeout returns
// nil and no error, and any partially read data is discarded.
func (c *Client) receive(size int) ([]byte, error) {
	if err := c.packetConn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, errors.Wrap(err, "telemetry: could not set read deadline")
	}

	buf := make([]byte, size)
	received := 0

	for received < size {
		n, _, err := c.packetConn.ReadFromUDP(buf[received:])

		if err != nil {
			if e, ok := err.(net.Error); ok && e.Timeout() {
				if received > 0 {
					c.logger.Debugf("Discarding %d of %d bytes after read timeout", received, size)
				}

				return nil, nil
			}

			return nil, errors.Wrap(err, "telemetry: could not read from udp socket")
		}

		if n == 0 {
			return nil, ErrConnectionBroken
		}

		received += n
	}

	return buf, nil
}

func (c *Client) Handshake() (*acudp.SessionInfo, error) {
	c.logger.Debugf("Sending handshake to %s", c.remoteAddress)

	if err := c.send(acudp.OperationHandshake); err != nil {
		return nil, err
	}

	b, err := c.receive(acudp.HandshakeSize)

	if err != nil || b == nil {
		return nil, err
	}

	info, err := acudp.DecodeHandshake(b)

	if err != nil {
		return nil, err
	}

	return &info, nil
}

func (c *Client) SubscribeUpdates() error {
	return c.send(acudp.OperationSubscribeUpdate)
}

func (c *Client) ReceiveUpdate() (*acudp.Update, error) {
	b, err := c.receive(acudp.UpdateSize)

	if err != nil || b == nil {
		return nil, err
	}

	update, err := acudp.DecodeUpdate(b)

	if err != nil {
		return nil, err
	}

	return &update, nil
}

func (c *Client) Unsubscribe() error {
	return c.send(acudp.OperationDismiss)
}

// Close sends a dismiss and releases the socket. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if err := c.Unsubscribe(); err != nil {
			c.logger.WithError(err).Warn("Could not dismiss session before closing")
		}

		c.closeErr = c.packetConn.Close()
	})

	return c.closeErr
}
