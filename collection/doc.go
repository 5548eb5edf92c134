// Package collection defines the keyed secondary structures a job framework
// keeps next to its jobs: hashes (field to value), lists (ordered append
// log) and sets (scored unique members). Each row carries its own optional
// expiration and is removed by the expiration sweep once it passes.
//
// Writes go through the txn package; this package holds the rows and the
// read side.
package collection
