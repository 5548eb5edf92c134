// Package notify holds cross-process queue.Signal implementations. A fetch
// loop that waits on one wakes as soon as any process commits a queue row,
// instead of sleeping out the full poll interval.
//
// Subpackages:
//
//	notify/postgres  LISTEN/NOTIFY over a pgx pool
//	notify/redis     Redis pub/sub via go-redis
package notify
