//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newClient(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { testcontainers.TerminateContainer(ctr) }) //nolint:errcheck

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatal(err)
	}
	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return client
}

func TestPublishWakesSubscriber(t *testing.T) {
	client := newClient(t)
	sub := New(client, WithQueues("default"))
	pub := New(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx) //nolint:errcheck

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := pub.Notify(ctx, "default"); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		select {
		case <-sub.Wait():
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("subscriber never woke")
		}
	}
}

func TestFilteredQueueDoesNotWake(t *testing.T) {
	client := newClient(t)
	sub := New(client, WithQueues("critical"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx) //nolint:errcheck
	time.Sleep(500 * time.Millisecond)

	if err := New(client).Notify(ctx, "default"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sub.Wait():
		t.Fatal("woken by a queue outside the filter")
	case <-time.After(500 * time.Millisecond):
	}
}
