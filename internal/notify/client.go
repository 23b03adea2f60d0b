// Package notify fans committed engine changes out to other staffcore
// processes over Redis Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"staffcore/internal/core"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangesChannel returns the Pub/Sub channel carrying change events for an
// instance.
func ChangesChannel(instance string) string {
	return fmt.Sprintf("staffcore:%s:changes", instance)
}

// Event is a committed change as seen on the wire. Origin identifies the
// publishing client so receivers can skip their own echoes.
type Event struct {
	core.CommitEvent
	Origin string `json:"origin"`
}

// Client publishes and subscribes to change events of one instance. It is
// safe for concurrent use.
type Client struct {
	rdb      *redis.Client
	instance string
	origin   string
	logger   core.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient connects to Redis for the named instance.
func NewClient(redisOpts *redis.Options, instance string, opts ...Option) (*Client, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	c := &Client{
		rdb:      redis.NewClient(redisOpts),
		instance: instance,
		origin:   uuid.NewString(),
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the identifier stamped on events this client publishes.
func (c *Client) Origin() string { return c.origin }

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish sends event on the instance changes channel.
func (c *Client) Publish(ctx context.Context, event core.CommitEvent) error {
	payload, err := json.Marshal(Event{CommitEvent: event, Origin: c.origin})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := c.rdb.Publish(ctx, ChangesChannel(c.instance), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// CommitHook returns a core.CommitHook publishing every committed mutation.
// Publish failures are logged; the mutation itself has already committed.
func (c *Client) CommitHook() core.CommitHook {
	return func(ctx context.Context, event core.CommitEvent) {
		if err := c.Publish(context.WithoutCancel(ctx), event); err != nil {
			c.logger.Warn("change publish failed", "operation", event.Operation, "error", err)
		}
	}
}

// Subscription is an active subscription to change events. Close it when
// done; cancelling the context passed to Subscribe also stops it.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns decoded change events. The channel is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan Event { return s.events }

// Errors returns non-fatal decode errors; the offending message is skipped.
func (s *Subscription) Errors() <-chan error { return s.errors }

// Close stops the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe listens on the instance changes channel. It returns once Redis
// has confirmed the subscription, so events published afterwards are seen.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ChangesChannel(c.instance))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChangesChannel(c.instance), err)
	}

	events := make(chan Event, 16)
	errs := make(chan error, 16)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		defer close(errs)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errs <- fmt.Errorf("decode change event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case events <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: events, errors: errs, cancel: cancel}, nil
}

// Relay subscribes and calls refresh for every event published by another
// client, until ctx ends. Refresh errors are logged and do not stop the relay.
func (c *Client) Relay(ctx context.Context, refresh func(context.Context, Event) error) error {
	sub, err := c.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("change event dropped", "error", err)
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("change subscription closed")
			}
			if event.Origin == c.origin {
				continue
			}
			if err := refresh(ctx, event); err != nil {
				c.logger.Error("remote change refresh failed", "operation", event.Operation, "origin", event.Origin, "error", err)
			}
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
