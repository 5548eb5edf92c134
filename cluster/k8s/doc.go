// Package k8s provides a Kubernetes-native cluster.Store implementation.
//
// Each server's registry entry lives in annotations on its own Pod, found
// by matching the host part of the server ID to the Pod name. Listing uses
// a configurable label selector.
//
// Example:
//
//	client := kubernetes.NewForConfigOrDie(rest.InClusterConfig())
//	registry := k8s.New(client, "my-namespace")
//	e, err := engine.New(st, engine.WithServerRegistry(registry))
package k8s
