package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultSendPort   = 33739
	DefaultRecvPort   = 33740
	DefaultStaleAfter = 3 * time.Second

	heartbeatInterval = time.Second
)

// Client receives GT7 telemetry over UDP. It keeps the stream alive with a
// heartbeat and retains only the latest decoded snapshot.
type Client struct {
	host       string
	sendPort   int
	recvPort   int
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	latest Snapshot
	have   bool
}

type ClientOption func(*Client)

func WithPorts(send, recv int) ClientOption {
	return func(c *Client) {
		c.sendPort = send
		c.recvPort = recv
	}
}

// WithStaleAfter sets how old a snapshot may be before Latest reports it
// absent. Zero disables the check.
func WithStaleAfter(d time.Duration) ClientOption {
	return func(c *Client) {
		c.staleAfter = d
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(host string, opts ...ClientOption) *Client {
	c := &Client{
		host:       host,
		sendPort:   DefaultSendPort,
		recvPort:   DefaultRecvPort,
		staleAfter: DefaultStaleAfter,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "telemetry")
	return c
}

// Latest returns the newest snapshot, or false if none has arrived or the
// stream went quiet.
func (c *Client) Latest() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.have {
		return Snapshot{}, false
	}
	if c.staleAfter > 0 && c.now().Sub(c.latest.ReceivedAt) > c.staleAfter {
		return Snapshot{}, false
	}
	return c.latest, true
}

func (c *Client) store(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = s
	c.have = true
}

// Run listens for packets until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(c.host, strconv.Itoa(c.sendPort)))
	if err != nil {
		return fmt.Errorf("resolve console address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: c.recvPort})
	if err != nil {
		return fmt.Errorf("listen telemetry port: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.heartbeat(runCtx, conn, target)
	}()
	go func() {
		defer wg.Done()
		<-runCtx.Done()
		_ = conn.Close()
	}()

	c.logger.Info("telemetry listening", "console", target.String(), "port", c.recvPort)

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read telemetry: %w", err)
		}

		plain, err := DecryptPacket(buf[:n])
		if err != nil {
			c.logger.Debug("dropping packet", "error", err)
			continue
		}
		snap, err := DecodePacket(plain, c.now())
		if err != nil {
			c.logger.Debug("dropping packet", "error", err)
			continue
		}
		c.store(snap)
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *net.UDPConn, target *net.UDPAddr) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteToUDP([]byte("A"), target); err != nil && ctx.Err() == nil {
			c.logger.Debug("heartbeat failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WaitForData blocks until a snapshot is available, checking up to attempts
// times with delay between checks.
func WaitForData(ctx context.Context, src Source, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, ok := src.Latest(); !ok {
			return retry.RetryableError(errNoData)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoData) {
			return fmt.Errorf("no telemetry after %d attempts: %w", attempts, ErrNotRunning)
		}
		return err
	}
	return nil
}

var errNoData = errors.New("no telemetry yet")
