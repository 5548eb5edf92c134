// Package cluster keeps the registry of processing servers sharing one
// store.
//
// Each running server announces itself as a [Server] with its worker count,
// the queues it serves and its start time, then heartbeats periodically.
// Servers whose last heartbeat is older than a timeout are removed by
// [Store.RemoveTimedOutServers], which any server may call.
//
// The registry lives in the row store by default. The cluster/k8s
// sub-package keeps it in Pod annotations instead, for deployments where
// every server is a Kubernetes Pod.
package cluster
