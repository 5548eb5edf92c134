// Package redis implements queue.Signal with Redis pub/sub.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sig := notifyredis.New(client)
//	go sig.Run(ctx)
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrow/backoff"
	"github.com/xraph/jobrow/queue"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "jobrow:queue"

var _ queue.Signal = (*Signal)(nil)

// Signal publishes queue names on a Redis channel and wakes local waiters
// when a message arrives. The caller owns the client lifecycle.
type Signal struct {
	client  goredis.UniversalClient
	channel string
	queues  []string
	local   *queue.LocalSignal
	retry   backoff.Strategy
	logger  *slog.Logger
}

// Option configures a Signal.
type Option func(*Signal)

// WithChannel sets the pub/sub channel.
func WithChannel(name string) Option {
	return func(s *Signal) { s.channel = name }
}

// WithQueues restricts wake-ups to messages for the given queues.
func WithQueues(queues ...string) Option {
	return func(s *Signal) { s.queues = queues }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Signal) { s.logger = l }
}

// New creates a Signal on client. Call Run to start receiving.
func New(client goredis.UniversalClient, opts ...Option) *Signal {
	s := &Signal{
		client:  client,
		channel: DefaultChannel,
		local:   queue.NewLocalSignal(),
		retry:   backoff.DefaultStrategy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify publishes queueName.
func (s *Signal) Notify(ctx context.Context, queueName string) error {
	if err := s.client.Publish(ctx, s.channel, queueName).Err(); err != nil {
		return fmt.Errorf("jobrow/notify/redis: publish: %w", err)
	}
	return nil
}

// Wait returns the channel that receives wake-ups.
func (s *Signal) Wait() <-chan struct{} { return s.local.Wait() }

// Run receives messages until ctx ends, resubscribing after failures.
func (s *Signal) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.subscribe(ctx, func() { attempt = 0 })
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		attempt++
		delay := s.retry.Delay(attempt)
		s.logger.Warn("queue subscription lost, resubscribing",
			slog.String("channel", s.channel),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Signal) subscribe(ctx context.Context, subscribed func()) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	subscribed()
	s.logger.Debug("subscribed to queue notifications", slog.String("channel", s.channel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			if len(s.queues) > 0 && !slices.Contains(s.queues, msg.Payload) {
				continue
			}
			s.local.Set()
		}
	}
}
