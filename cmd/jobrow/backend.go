package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow/store"
	bunstore "github.com/xraph/jobrow/store/bun"
	"github.com/xraph/jobrow/store/memory"
	mongostore "github.com/xraph/jobrow/store/mongo"
	"github.com/xraph/jobrow/store/postgres"
	"github.com/xraph/jobrow/store/sqlite"
)

// Supported store drivers.
const (
	driverPostgres    = "postgres"
	driverBunPostgres = "bun-postgres"
	driverSQLite      = "sqlite"
	driverMongo       = "mongo"
	driverMemory      = "memory"
)

// backend is an opened store plus whatever its driver needs to shut down.
type backend struct {
	store store.Store
	// pool is set for the postgres driver and feeds the LISTEN/NOTIFY signal.
	pool  *pgxpool.Pool
	close func(ctx context.Context) error
}

func (b *backend) Close(ctx context.Context) error {
	if b.close == nil {
		return b.store.Close()
	}
	return b.close(ctx)
}

// openBackend connects to the store named by driver.
func openBackend(ctx context.Context, driver, dsn, mongoDatabase string, logger *slog.Logger) (*backend, error) {
	if dsn == "" && driver != driverMemory {
		return nil, fmt.Errorf("driver %s needs a --dsn", driver)
	}

	switch driver {
	case driverPostgres:
		st, err := postgres.New(ctx, dsn, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &backend{store: st, pool: st.Pool()}, nil

	case driverBunPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db := bun.NewDB(sqldb, pgdialect.New())
		return &backend{
			store: bunstore.New(db, bunstore.WithLogger(logger)),
			close: func(context.Context) error { return db.Close() },
		}, nil

	case driverSQLite:
		st, err := sqlite.Open(dsn, bunstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &backend{store: st}, nil

	case driverMongo:
		client, err := mongod.Connect(options.Client().ApplyURI(dsn))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return &backend{
			store: mongostore.New(client.Database(mongoDatabase), mongostore.WithLogger(logger)),
			close: client.Disconnect,
		}, nil

	case driverMemory:
		return &backend{store: memory.New()}, nil
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}
