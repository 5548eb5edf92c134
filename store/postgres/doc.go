// Package postgres implements store.Store using pgx/v5 with raw SQL.
// Features: conditional lease updates on the queue table, SKIP LOCKED
// expiration batches, ON CONFLICT upserts for aggregates, hashes and sets, cascading job
// purges, embedded SQL migrations.
package postgres
