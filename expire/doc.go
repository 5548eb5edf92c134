// Package expire deletes rows whose expiration has passed.
//
// The set of expirable row kinds is declared once at startup in a
// [Registry] that pairs each [Kind] with the function purging it. The
// [Sweeper] walks the registry in order and, for each kind, deletes batches
// of rows with ExpireAt before the pass start time, oldest expiration first,
// until a batch comes back short. Each batch runs under the
// lock.ResourceExpiration lock; no lock is held across batches or kinds.
// A pause between batches keeps a large backlog from monopolizing the store.
package expire
