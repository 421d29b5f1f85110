// Package timesync estimates the offset between the bridge's local clock and
// the vehicle's onboard clock by averaging the round-trip of periodic probes.
package timesync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wheellybridge/bridge/internal/logging"
	"wheellybridge/bridge/internal/wireproto"
)

// Sender delivers a formatted wire line to the vehicle. transport.Line
// satisfies this interface.
type Sender interface {
	Send(line string)
}

// Config tunes the probe cadence and round size.
type Config struct {
	Interval       time.Duration
	Timeout        time.Duration
	ProbesPerRound int
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.ProbesPerRound <= 0 {
		c.ProbesPerRound = 4
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Client sends clock probes over Sender and reconciles echoes delivered via
// HandleEcho, producing a rolling offset estimate: offset = remote_ms -
// local_ms.
type Client struct {
	cfg    Config
	sender Sender
	logger *logging.Logger

	mu      sync.Mutex
	pending map[int64]time.Time
	samples []int64

	offset atomic.Int64
}

// New constructs a clock sync client. Call Start to begin probing.
func New(cfg Config, sender Sender, logger *logging.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.L()
	}
	return &Client{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		pending: make(map[int64]time.Time),
	}
}

// Offset returns the current offset estimate in milliseconds.
func (c *Client) Offset() int64 { return c.offset.Load() }

// FromRemote converts a remote timestamp to the local timescale. Offset is
// remote_ms - local_ms, so the local equivalent of a remote timestamp is the
// remote value with the offset subtracted back out.
func (c *Client) FromRemote(remoteMs int64) int64 { return remoteMs - c.Offset() }

// ToRemote converts a local timestamp to the remote timescale.
func (c *Client) ToRemote(localMs int64) int64 { return localMs + c.Offset() }

// Start launches the periodic probing loop; it stops when ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendRound()
		}
	}
}

// sendRound fires ProbesPerRound probes and prunes any probe older than
// Timeout that never received an echo.
func (c *Client) sendRound() {
	now := c.cfg.Now()
	nowMs := now.UnixMilli()

	c.mu.Lock()
	for origin, sentAt := range c.pending {
		if now.Sub(sentAt) > c.cfg.Timeout {
			delete(c.pending, origin)
		}
	}
	c.mu.Unlock()

	for i := 0; i < c.cfg.ProbesPerRound; i++ {
		origin := nowMs + int64(i)
		c.mu.Lock()
		c.pending[origin] = now
		c.mu.Unlock()
		c.sender.Send(wireproto.FormatClockProbe(origin))
	}
}

// HandleEcho reconciles a "ck" echo against its matching outstanding probe
// and folds the resulting offset sample into the rolling estimate. localNowMs
// is the arrival time of the echo on the local clock.
func (c *Client) HandleEcho(msg wireproto.Clock, localNowMs int64) {
	if !msg.HasRemoteFields {
		return
	}
	origin := msg.LocalTimestampMs

	c.mu.Lock()
	sentAt, ok := c.pending[origin]
	if ok {
		delete(c.pending, origin)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if c.cfg.Now().Sub(sentAt) > c.cfg.Timeout {
		return
	}

	//1.- latency = (destination - origin - transmit + receive) / 2.
	latency := (localNowMs - origin - msg.TransmitRemoteTimestamp + msg.ReceiveRemoteTimestamp) / 2
	//2.- offset is remote_ms - local_ms: the remote receive timestamp, minus
	// the local send time and the one-way latency it took to get there.
	offset := msg.ReceiveRemoteTimestamp - origin - latency

	c.mu.Lock()
	c.samples = append(c.samples, offset)
	complete := len(c.samples) >= c.cfg.ProbesPerRound
	var mean int64
	if complete {
		mean = meanOf(c.samples)
		c.samples = c.samples[:0]
	}
	c.mu.Unlock()

	if complete {
		c.offset.Store(mean)
		c.logger.Debug("clock offset updated", logging.Int64("offset_ms", mean))
	}
}

func meanOf(samples []int64) int64 {
	var sum int64
	for _, s := range samples {
		sum += s
	}
	n := int64(len(samples))
	if sum >= 0 {
		return (sum + n/2) / n
	}
	return (sum - n/2) / n
}
