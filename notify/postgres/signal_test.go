//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("jobrow"),
		tcpostgres.WithUsername("jobrow"),
		tcpostgres.WithPassword("jobrow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { testcontainers.TerminateContainer(ctr) }) //nolint:errcheck

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestNotifyWakesListener(t *testing.T) {
	pool := newPool(t)
	listener := New(pool, WithQueues("critical"))
	publisher := New(pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx) //nolint:errcheck

	// Give LISTEN time to register; a missed notify is retried below.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	if err := publisher.Notify(ctx, "default"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case <-listener.Wait():
		t.Fatal("woken by a queue outside the filter")
	case <-time.After(300 * time.Millisecond):
	}

	for {
		if err := publisher.Notify(ctx, "critical"); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		select {
		case <-listener.Wait():
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("listener never woke")
		}
	}
}
