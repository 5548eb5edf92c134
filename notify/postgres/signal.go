// Package postgres implements queue.Signal with PostgreSQL LISTEN/NOTIFY.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/jobrow/backoff"
	"github.com/xraph/jobrow/queue"
)

// DefaultChannel is the notification channel used when none is configured.
const DefaultChannel = "jobrow_queue"

var _ queue.Signal = (*Signal)(nil)

// Signal publishes queue names with pg_notify and wakes local waiters when
// a notification arrives on the channel.
type Signal struct {
	pool    *pgxpool.Pool
	channel string
	queues  []string
	local   *queue.LocalSignal
	retry   backoff.Strategy
	logger  *slog.Logger
}

// Option configures a Signal.
type Option func(*Signal)

// WithChannel sets the notification channel.
func WithChannel(name string) Option {
	return func(s *Signal) { s.channel = name }
}

// WithQueues restricts wake-ups to notifications for the given queues.
func WithQueues(queues ...string) Option {
	return func(s *Signal) { s.queues = queues }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Signal) { s.logger = l }
}

// New creates a Signal on pool. Call Run to start listening.
func New(pool *pgxpool.Pool, opts ...Option) *Signal {
	s := &Signal{
		pool:    pool,
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

// Notify announces that queueName received a row.
func (s *Signal) Notify(ctx context.Context, queueName string) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, queueName); err != nil {
		return fmt.Errorf("jobrow/notify/postgres: notify: %w", err)
	}
	return nil
}

// Wait returns the channel that receives wake-ups.
func (s *Signal) Wait() <-chan struct{} { return s.local.Wait() }

// Run listens until ctx ends, reconnecting after connection failures.
func (s *Signal) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.listen(ctx, func() { attempt = 0 })
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		attempt++
		delay := s.retry.Delay(attempt)
		s.logger.Warn("queue listener disconnected, reconnecting",
			slog.String("channel", s.channel),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Signal) listen(ctx context.Context, connected func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	connected()
	s.logger.Debug("listening for queue notifications", slog.String("channel", s.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if len(s.queues) > 0 && !slices.Contains(s.queues, n.Payload) {
			continue
		}
		s.local.Set()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
