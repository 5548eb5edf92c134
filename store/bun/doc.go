// Package bunstore implements store.Store using the Bun ORM. The same code
// runs against PostgreSQL (pgdialect) and SQLite (sqlitedialect): the schema
// is created from the table models, and every statement sticks to SQL both
// dialects accept.
//
// The caller owns the *bun.DB lifecycle; bunstore never closes it. Pass the
// db handle through the constructor:
//
//	import (
//	    "github.com/uptrace/bun"
//	    "github.com/uptrace/bun/dialect/pgdialect"
//	    "github.com/uptrace/bun/driver/pgdriver"
//	    bunstore "github.com/xraph/jobrow/store/bun"
//	)
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	store := bunstore.New(db)
//	store.Migrate(ctx)
//
// Lease claims are compare-and-set UPDATE and DELETE statements on
// fetched_at, checked through RowsAffected.
package bunstore
