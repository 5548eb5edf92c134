//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/jobrow/store"
	"github.com/xraph/jobrow/store/storetest"
)

var _ store.Store = (*Store)(nil)

const truncateAll = `TRUNCATE jobrow_jobs, jobrow_job_parameters, jobrow_states, jobrow_job_queue,
	jobrow_counters, jobrow_aggregated_counters, jobrow_hashes, jobrow_lists, jobrow_sets,
	jobrow_servers CASCADE`

func startPostgres(t *testing.T) string {
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
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

func TestConformance(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		if _, err := s.Pool().Exec(ctx, truncateAll); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
