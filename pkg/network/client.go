package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/illum/orbitsim/pkg/config"
	"github.com/illum/orbitsim/pkg/logging"
)

// ErrNotConnected is returned by commands sent before Connect or after Close.
var ErrNotConnected = errors.New("not connected")

const clientEventBuffer = 64

// Client is a WebSocket client for the orbit server. Every command returns
// the request ID the server echoes in a direct reply (state or error).
type Client struct {
	Dialer *websocket.Dialer

	breaker *Breaker
	logger  *logging.Logger
	events  chan Envelope
	done    chan struct{}
	nextID  atomic.Uint64

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
}

// NewClient creates a client whose dial attempts go through a circuit
// breaker configured by cfg.
func NewClient(cfg config.CircuitBreakerConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "client")

	return &Client{
		Dialer:  &websocket.Dialer{HandshakeTimeout: writeWait},
		breaker: NewBreaker("orbitsim-client", cfg, logger),
		logger:  logger,
		events:  make(chan Envelope, clientEventBuffer),
		done:    make(chan struct{}),
	}
}

// Breaker returns the dial breaker, for tuning retries.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Connect dials url (ws://host/ws), retrying with backoff, and starts
// reading frames into Events.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	var conn *websocket.Conn
	err := c.breaker.ExecuteWithRetry(ctx, func() error {
		dialed, _, err := c.Dialer.DialContext(ctx, url, nil)
		if err != nil {
			return err
		}
		conn = dialed
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c.conn = conn
	go c.readLoop(conn)
	c.logger.Info(ctx, "connected", "url", url)
	return nil
}

// Events delivers every frame from the server. It is closed when the
// connection ends.
func (c *Client) Events() <-chan Envelope {
	return c.events
}

// SetEccentricity requests a new eccentricity.
func (c *Client) SetEccentricity(e float64) (string, error) {
	return c.send(MsgSetEccentricity, EccentricityRequest{Value: &e})
}

// SetSemiMajorAxisAU requests a circular orbit of the given radius.
func (c *Client) SetSemiMajorAxisAU(au float64) (string, error) {
	return c.send(MsgSetSemiMajorAxis, SemiMajorAxisRequest{AU: &au})
}

// SetSemiMajorAxisText sends the axis field as typed.
func (c *Client) SetSemiMajorAxisText(text string) (string, error) {
	return c.send(MsgSetSemiMajorAxis, SemiMajorAxisRequest{Text: text})
}

// SetCentralMass requests a central mass of mantissa × 10^exponent kg.
func (c *Client) SetCentralMass(mantissa float64, exponent int) (string, error) {
	return c.send(MsgSetCentralMass, CentralMassRequest{Mantissa: &mantissa, Exponent: &exponent})
}

// SetCentralMassText sends the mass fields as typed.
func (c *Client) SetCentralMassText(mantissa, exponent string) (string, error) {
	return c.send(MsgSetCentralMass, CentralMassRequest{MantissaText: mantissa, ExponentText: exponent})
}

// LoadPreset requests a named preset.
func (c *Client) LoadPreset(name string) (string, error) {
	return c.send(MsgLoadPreset, PresetRequest{Name: name})
}

// RequestState asks for the current state.
func (c *Client) RequestState() (string, error) {
	return c.send(MsgGetState, nil)
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn == nil {
			close(c.events)
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	})
	return err
}

func (c *Client) send(t MessageType, payload interface{}) (string, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	msg, err := EncodeEnvelope(t, id, payload)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return "", ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return "", err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return "", fmt.Errorf("sending %s: %w", t, err)
	}
	return id, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.events)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn(context.Background(), "connection lost", "error", err.Error())
				}
			}
			return
		}

		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}
