package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	dialTimeout = 15 * time.Second
	readLimit   = 1 << 20
	frameBuffer = 256
)

// ErrNotOpen is returned by Send when the channel readiness is not OPEN.
var ErrNotOpen = errors.New("socket is not open")

// Config locates the hangouts endpoint.
type Config struct {
	URL       string
	Username  string
	Reconnect ReconnectConfig
}

// Channel owns the single duplex connection of the local user. Decoded
// frames are delivered in arrival order on Frames().
type Channel struct {
	cfg     Config
	machine *status.Machine
	state   *state.Store
	bus     *bus.Bus
	logger  *zap.Logger
	frames  chan hangout.Inbound
	backoff *backoff

	mu          sync.Mutex
	life        context.Context
	conn        *websocket.Conn
	connID      string
	cancel      context.CancelFunc
	intentional bool
}

// NewChannel creates a channel. Nothing is dialed until Connect.
func NewChannel(cfg Config, machine *status.Machine, st *state.Store, b *bus.Bus, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		cfg:     cfg,
		machine: machine,
		state:   st,
		bus:     b,
		logger:  logger,
		frames:  make(chan hangout.Inbound, frameBuffer),
		backoff: newBackoff(cfg.Reconnect),
	}
}

// Frames returns the inbound frame queue. It has a single consumer.
func (c *Channel) Frames() <-chan hangout.Inbound {
	return c.frames
}

// ReadyState returns the current readiness.
func (c *Channel) ReadyState() status.State {
	return c.machine.Current()
}

// Endpoint returns the URL dialed for the configured user.
func (c *Channel) Endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("username", c.cfg.Username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the server. ctx bounds the lifetime of the connection, not
// only the dial. When reconnect is enabled a failed dial is retried in the
// background and the first error is still returned.
func (c *Channel) Connect(ctx context.Context) error {
	if c.machine.Current() != status.Closed {
		return nil
	}
	c.mu.Lock()
	c.intentional = false
	c.life = ctx
	c.mu.Unlock()

	err := c.dial(ctx)
	if err != nil && c.cfg.Reconnect.Enabled {
		go c.redial(ctx)
	}
	return err
}

func (c *Channel) dial(ctx context.Context) error {
	endpoint, err := c.Endpoint()
	if err != nil {
		return err
	}
	c.setReadiness(status.Connecting)

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	cancelDial()
	if err != nil {
		c.setReadiness(status.Closed)
		c.fail(bus.KindSocketError, err)
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	connCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conn = conn
	c.connID = uuid.NewString()
	c.cancel = cancel
	id := c.connID
	c.mu.Unlock()

	c.backoff.connected()
	c.state.Dispatch(state.SocketReady{Socket: c})
	c.setReadiness(status.Open)
	c.logger.Info("socket open", zap.String("conn_id", id), zap.String("user", c.cfg.Username))

	go c.readLoop(connCtx, conn)
	return nil
}

// Send writes one frame. "Sent" only means handed to the transport.
func (c *Channel) Send(ctx context.Context, frame hangout.Outbound) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.machine.IsOpen() {
		return ErrNotOpen
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close shuts the connection down without triggering a reconnect.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.intentional = true
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.setReadiness(status.Closing)
	err := conn.Close(websocket.StatusNormalClosure, "client disconnect")
	if cancel != nil {
		cancel()
	}
	c.setReadiness(status.Closed)
	return err
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.dropped(conn, err)
			return
		}

		frame, err := hangout.DecodeInbound(data)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
			c.fail(bus.KindDecodeError, err)
			continue
		}

		c.state.Dispatch(state.ServerMessageReceived{Frame: frame})
		select {
		case c.frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Channel) dropped(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	intentional := c.intentional
	life := c.life
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	if intentional {
		return
	}

	c.logger.Warn("socket closed", zap.Error(cause))
	c.setReadiness(status.Closed)
	c.fail(bus.KindSocketError, cause)

	if c.cfg.Reconnect.Enabled && life != nil && life.Err() == nil {
		go c.redial(life)
	}
}

func (c *Channel) redial(ctx context.Context) {
	for c.backoff.allowed() {
		delay := c.backoff.next()
		c.logger.Info("reconnecting", zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		c.mu.Lock()
		stop := c.intentional
		c.mu.Unlock()
		if stop {
			return
		}
		if err := c.dial(ctx); err == nil {
			return
		}
	}
	c.logger.Error("giving up reconnecting", zap.Int("max_attempts", c.cfg.Reconnect.MaxAttempts))
}

func (c *Channel) setReadiness(to status.State) {
	if err := c.machine.Transition(to); err != nil {
		c.logger.Debug("readiness transition skipped", zap.Error(err))
		return
	}
	c.state.Dispatch(state.ReadyStateChanged{ReadyState: to})
}

func (c *Channel) fail(kind string, err error) {
	c.state.Dispatch(state.SocketError{Err: err})
	c.bus.Publish(bus.NewEvent(kind, err.Error()))
}
