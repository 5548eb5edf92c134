package k8s

import (
	"context"
	"errors"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

const testNS = "default"

// newTestProvider creates a Provider backed by the fake K8s client, with the
// given pods pre-created.
func newTestProvider(t *testing.T, pods ...*corev1.Pod) *Provider {
	t.Helper()
	cs := fake.NewClientset()
	for _, pod := range pods {
		if _, err := cs.CoreV1().Pods(testNS).Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
			t.Fatalf("create pod: %v", err)
		}
	}
	return New(cs, testNS)
}

// makeServerPod creates a labeled Pod suitable for a jobrow server.
func makeServerPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNS,
			Labels: map[string]string{
				"app.kubernetes.io/component": "jobrow-server",
			},
		},
	}
}

func makeServer(host string, heartbeat time.Time) *cluster.Server {
	return &cluster.Server{
		ID:            host + ":7c1b",
		LastHeartbeat: heartbeat,
		Data: cluster.Data{
			WorkerCount: 5,
			Queues:      []string{"default", "email"},
			StartedAt:   heartbeat.Add(-time.Hour),
		},
	}
}

func TestAnnounceAndList(t *testing.T) {
	p := newTestProvider(t, makeServerPod("pod-a"), makeServerPod("pod-b"))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := p.AnnounceServer(ctx, makeServer("pod-b", now)); err != nil {
		t.Fatalf("AnnounceServer: %v", err)
	}
	if err := p.AnnounceServer(ctx, makeServer("pod-a", now)); err != nil {
		t.Fatalf("AnnounceServer: %v", err)
	}

	servers, err := p.ListServers(ctx)
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if servers[0].ID != "pod-a:7c1b" {
		t.Errorf("servers not ordered by ID: %q first", servers[0].ID)
	}
	got := servers[0]
	if got.Data.WorkerCount != 5 || len(got.Data.Queues) != 2 {
		t.Errorf("data = %+v", got.Data)
	}
	if !got.LastHeartbeat.Equal(now) {
		t.Errorf("heartbeat = %v, want %v", got.LastHeartbeat, now)
	}
}

func TestAnnounce_PodNotFound(t *testing.T) {
	p := newTestProvider(t)
	err := p.AnnounceServer(context.Background(), makeServer("missing", time.Now()))
	if !errors.Is(err, jobrow.ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}
}

func TestHeartbeat(t *testing.T) {
	p := newTestProvider(t, makeServerPod("pod-a"))
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)

	s := makeServer("pod-a", start)
	if err := p.AnnounceServer(ctx, s); err != nil {
		t.Fatalf("AnnounceServer: %v", err)
	}
	later := start.Add(30 * time.Second)
	if err := p.HeartbeatServer(ctx, s.ID, later); err != nil {
		t.Fatalf("HeartbeatServer: %v", err)
	}

	servers, _ := p.ListServers(ctx)
	if !servers[0].LastHeartbeat.Equal(later) {
		t.Errorf("heartbeat = %v, want %v", servers[0].LastHeartbeat, later)
	}

	if err := p.HeartbeatServer(ctx, "ghost:1", later); !errors.Is(err, jobrow.ErrServerNotFound) {
		t.Errorf("expected ErrServerNotFound, got %v", err)
	}
}

func TestRemoveServer(t *testing.T) {
	p := newTestProvider(t, makeServerPod("pod-a"))
	ctx := context.Background()

	s := makeServer("pod-a", time.Now())
	_ = p.AnnounceServer(ctx, s)
	if err := p.RemoveServer(ctx, s.ID); err != nil {
		t.Fatalf("RemoveServer: %v", err)
	}
	if err := p.RemoveServer(ctx, s.ID); err != nil {
		t.Fatalf("second RemoveServer should be a no-op: %v", err)
	}

	servers, _ := p.ListServers(ctx)
	if len(servers) != 0 {
		t.Errorf("got %d servers after removal", len(servers))
	}
}

func TestRemoveTimedOutServers(t *testing.T) {
	p := newTestProvider(t, makeServerPod("old"), makeServerPod("fresh"))
	ctx := context.Background()
	now := time.Now().UTC()

	_ = p.AnnounceServer(ctx, makeServer("old", now.Add(-10*time.Minute)))
	_ = p.AnnounceServer(ctx, makeServer("fresh", now))

	n, err := p.RemoveTimedOutServers(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("RemoveTimedOutServers: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}

	servers, _ := p.ListServers(ctx)
	if len(servers) != 1 || servers[0].ID != "fresh:7c1b" {
		t.Errorf("remaining servers = %v", servers)
	}
}
