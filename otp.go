// Package otp is a two-party one-time-pad channel on a local directory.
//
// One party generates the key material from caller-chosen seeds, exports the
// channel and hands it to the other party out of band. From then on each
// message consumes exactly one key unit on each side, in the same order, and
// every ciphertext is one envelope long regardless of the message.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-otp/internal/channelstate"
	"github.com/i5heu/ouroboros-otp/internal/keypool"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

type (
	// State holds the entangled and swapped flags of a channel.
	State = channelstate.State
	// Direction selects encode or decode resolution.
	Direction = channelstate.Direction
	// PoolName is incoming or outgoing.
	PoolName = keypool.Name
	// Counter is the encrypt or decrypt ledger counter.
	Counter = ledger.Counter
)

const (
	Encoding = channelstate.Encoding
	Decoding = channelstate.Decoding
)

// Channel is the handle of one channel directory. Operations are serialized;
// concurrent use from several processes on one directory is not supported.
type Channel struct {
	log    *slog.Logger
	config Config
	layout keyunit.Layout
	dir    string

	mu     sync.Mutex
	pool   *keypool.Pool
	ledger *ledger.Ledger
	closed bool
}

// New constructs a channel handle. New performs no I/O; call Start before
// any operation.
func New(conf Config) (*Channel, error) { // A
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	layout := conf.Layout.WithDefaults()
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Channel{
		log:    conf.Logger,
		config: conf,
		layout: layout,
		dir:    conf.Paths[0],
	}, nil
}

// Start creates the channel directory and prepares the pool and ledger.
// Start is safe to call multiple times; only the first call has effect.
func (c *Channel) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.pool != nil {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}

	pool, err := keypool.Open(keypool.Config{
		Dir:           c.dir,
		Layout:        c.layout,
		MinimumFreeGB: c.config.MinimumFreeGB,
		Workers:       c.config.Workers,
		Logger:        c.log.With("component", "keypool"),
		StoreLogger:   storeLogger(),
	})
	if err != nil {
		return fmt.Errorf("open key pool: %w", err)
	}

	c.pool = pool
	c.ledger = ledger.New(c.dir, c.layout.PoolCapacity)
	c.log.Info("channel started", "path", c.dir)
	return nil
}

// storeLogger is the logrus logger badger writes to. Badger is chatty at
// info level, so only warnings get through.
func storeLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Close releases the pool index. Close is idempotent.
func (c *Channel) Close(ctx context.Context) error { // A
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var closeErr error
	if c.pool != nil {
		if err := c.pool.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close key pool: %w", err))
		}
	}
	c.log.Info("channel closed", "path", c.dir)
	return closeErr
}

// Layout is the geometry the channel was opened with.
func (c *Channel) Layout() keyunit.Layout { return c.layout }

// Dir is the channel directory.
func (c *Channel) Dir() string { return c.dir }

// ready must be called with mu held.
func (c *Channel) ready() error {
	if c.closed {
		return ErrClosed
	}
	if c.pool == nil {
		return ErrNotStarted
	}
	return nil
}

// generated reports whether both ledger files exist.
func (c *Channel) generated() (bool, error) {
	return c.ledger.Exists()
}
