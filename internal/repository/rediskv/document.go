// Package rediskv stores the user document as one JSON value under a Redis key.
package rediskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/logging"
	"github.com/and161185/face-keeper/internal/model"
)

// DefaultKey is the key used when none is configured.
const DefaultKey = "face-keeper:users"

// Blob reads and replaces a whole value. Get returns errs.ErrNotFound for a
// missing key.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Client is a Blob backed by go-redis. Values never expire.
type Client struct {
	rdb *redis.Client
}

// NewClient wraps a go-redis client.
func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	return b, err
}

func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// retryPolicy doubles the pause between attempts up to max.
type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

func (p retryPolicy) pause(attempt int) time.Duration {
	d := p.initial
	for i := 1; i < attempt && d < p.max; i++ {
		d *= 2
	}
	return min(d, p.max)
}

// Document implements repository.DocumentStore. A single SET replaces the
// whole snapshot, so readers see either the old or the new one.
type Document struct {
	blob   Blob
	key    string
	retry  retryPolicy
	logger *zap.Logger
}

// New constructs a document stored under key.
func New(blob Blob, key string, logger *zap.Logger) *Document {
	if key == "" {
		key = DefaultKey
	}
	return &Document{
		blob:   blob,
		key:    key,
		retry:  retryPolicy{attempts: 3, initial: 50 * time.Millisecond, max: time.Second},
		logger: logger.Named("redis_document"),
	}
}

// Load fetches and decodes the snapshot.
func (d *Document) Load(ctx context.Context) ([]model.User, error) {
	var raw []byte
	err := d.do(ctx, "redis.load", func() (err error) {
		raw, err = d.blob.Get(ctx, d.key)
		return err
	})
	if err != nil {
		return nil, err
	}

	var users []model.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.key, err)
	}
	return users, nil
}

// Save replaces the snapshot with users.
func (d *Document) Save(ctx context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	b, err := json.Marshal(users)
	if err != nil {
		return err
	}
	if err := d.do(ctx, "redis.save", func() error { return d.blob.Put(ctx, d.key, b) }); err != nil {
		return err
	}
	d.logger.Debug("snapshot written", zap.String("key", d.key), zap.Int("users", len(users)), zap.Int("bytes", len(b)))
	return nil
}

// do runs fn, retrying connection-level failures. A missing key and the
// caller's own cancellation are returned at once.
func (d *Document) do(ctx context.Context, op string, fn func() error) error {
	log := logging.WithOperation(d.logger, op, logging.RequestID(ctx))
	var err error
	attempt := 1
	for ; ; attempt++ {
		err = fn()
		if err == nil {
			if attempt > 1 {
				log.Info("redis recovered", zap.Int("attempt", attempt))
			}
			return nil
		}
		if errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if ctx.Err() != nil || !retryable(err) || attempt == d.retry.attempts {
			break
		}

		log.Warn("redis unavailable, retrying", zap.Error(err), zap.Int("attempt", attempt))
		t := time.NewTimer(d.retry.pause(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return logging.WrapOpAttempts(ctx, op, attempt, ctx.Err())
		case <-t.C:
		}
	}
	log.Error("redis failed", zap.Error(err), zap.Int("attempt", attempt))
	return logging.WrapOpAttempts(ctx, op, attempt, err)
}

// retryable reports connection-level failures: timeouts, resets, refused or
// dropped connections. Server replies such as READONLY or WRONGTYPE are final.
func retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, redis.ErrClosed)
}
