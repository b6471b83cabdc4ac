package broker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// DefaultRetryInterval is the pause between connection attempts
const DefaultRetryInterval = 5 * time.Second

// ErrConnectionClosed is returned by Connect after Close
var ErrConnectionClosed = errors.New("broker connection closed")

// Connection lazily opens a single shared transport and reopens it after loss
type Connection struct {
	url      string
	host     string
	interval time.Duration
	dial     Dialer
	backoff  func() retry.Backoff
	logger   *zap.Logger

	mu        sync.Mutex
	transport Transport
	dialing   chan struct{} // closed when the attempt in flight ends
	closed    bool
}

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithDialer replaces the AMQP dialer
func WithDialer(d Dialer) ConnectionOption {
	return func(c *Connection) {
		c.dial = d
	}
}

// WithRetryInterval sets the constant pause between attempts
func WithRetryInterval(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.interval = d
	}
}

// WithBackoff replaces the retry schedule
func WithBackoff(f func() retry.Backoff) ConnectionOption {
	return func(c *Connection) {
		c.backoff = f
	}
}

// URL builds an amqp:// address from its parts
func URL(host string, port int, login, password, vhost string) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(login, password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + vhost,
	}
	if vhost == "/" || vhost == "" {
		u.Path = "/"
	}
	return u.String()
}

// NewConnection creates a connection that dials on first use
func NewConnection(amqpURL string, logger *zap.Logger, opts ...ConnectionOption) *Connection {
	c := &Connection{
		url:      amqpURL,
		interval: DefaultRetryInterval,
		dial:     DialAMQP,
		logger:   logger,
	}
	if u, err := url.Parse(amqpURL); err == nil {
		c.host = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff == nil {
		interval := c.interval
		c.backoff = func() retry.Backoff {
			return retry.NewConstant(interval)
		}
	}
	return c
}

// Connect returns the live transport, dialing until it succeeds or ctx is done.
// Concurrent callers share the same attempt; a caller waiting on another
// caller's attempt gives up when its own ctx is done.
func (c *Connection) Connect(ctx context.Context) (Transport, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrConnectionClosed
		}
		if c.transport != nil && !c.transport.IsClosed() {
			t := c.transport
			c.mu.Unlock()
			return t, nil
		}
		c.transport = nil

		if inFlight := c.dialing; inFlight != nil {
			c.mu.Unlock()
			select {
			case <-inFlight:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to connect to broker: %w", ctx.Err())
			}
		}

		done := make(chan struct{})
		c.dialing = done
		c.mu.Unlock()

		transport, err := c.redial(ctx)

		c.mu.Lock()
		c.dialing = nil
		if err == nil && c.closed {
			_ = transport.Close()
			transport, err = nil, ErrConnectionClosed
		}
		if err == nil {
			c.transport = transport
		}
		c.mu.Unlock()
		close(done)

		return transport, err
	}
}

// redial dials with the retry schedule until it succeeds or ctx is done
func (c *Connection) redial(ctx context.Context) (Transport, error) {
	attempt := 0
	var transport Transport
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		c.logger.Info("Connecting to broker",
			zap.String("host", c.host),
			zap.Int("attempt", attempt))

		t, err := c.dial(c.url)
		if err != nil {
			c.logger.Warn("Failed to connect to broker, retrying",
				zap.String("host", c.host),
				zap.Int("attempt", attempt),
				zap.String("error_type", fmt.Sprintf("%T", err)),
				zap.Error(err),
				zap.Duration("retry_in", c.interval))
			return retry.RetryableError(err)
		}
		transport = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	c.logger.Info("Connected to broker", zap.String("host", c.host), zap.Int("attempts", attempt))
	return transport, nil
}

// Invalidate drops t if it is still the current transport
func (c *Connection) Invalidate(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != t || t == nil {
		return
	}
	c.transport = nil
	if !t.IsClosed() {
		_ = t.Close()
	}
}

// Close closes the current transport, if any. Later calls to Connect fail.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.transport == nil {
		return nil
	}
	t := c.transport
	c.transport = nil
	if t.IsClosed() {
		return nil
	}
	return t.Close()
}
