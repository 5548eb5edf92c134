package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

// Compile-time check that Provider implements cluster.Store.
var _ cluster.Store = (*Provider)(nil)

const (
	defaultLabelSelector    = "app.kubernetes.io/component=jobrow-server"
	defaultAnnotationPrefix = "jobrow.xraph.com/"
)

var annotationKeys = []string{"server-id", "worker-count", "queues", "started-at", "last-heartbeat"}

// Provider implements cluster.Store on Pod annotations.
type Provider struct {
	client           kubernetes.Interface
	namespace        string
	labelSelector    string
	annotationPrefix string
	logger           *slog.Logger
}

// New creates a Kubernetes server registry.
// The clientset and namespace are required.
func New(client kubernetes.Interface, namespace string, opts ...Option) *Provider {
	p := &Provider{
		client:           client,
		namespace:        namespace,
		labelSelector:    defaultLabelSelector,
		annotationPrefix: defaultAnnotationPrefix,
		logger:           slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AnnounceServer writes the server as annotations on the Pod named after
// the server's host.
func (p *Provider) AnnounceServer(ctx context.Context, s *cluster.Server) error {
	podName := s.Hostname()
	pod, err := p.client.CoreV1().Pods(p.namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("k8s: pod %q not found: %w", podName, jobrow.ErrServerNotFound)
		}
		return fmt.Errorf("k8s: announce server get pod: %w", err)
	}

	if pod.Annotations == nil {
		pod.Annotations = make(map[string]string)
	}
	if s.LastHeartbeat.IsZero() {
		s.LastHeartbeat = time.Now().UTC()
	}
	p.setServerAnnotations(pod, s)

	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("k8s: announce server update pod: %w", err)
	}
	return nil
}

// HeartbeatServer updates the last-heartbeat annotation.
func (p *Provider) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	pod, err := p.findPodByServerID(ctx, serverID)
	if err != nil {
		return err
	}
	if pod == nil {
		return jobrow.ErrServerNotFound
	}

	pod.Annotations[p.annotationPrefix+"last-heartbeat"] = at.UTC().Format(time.RFC3339Nano)
	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("k8s: heartbeat server update pod: %w", err)
	}
	return nil
}

// RemoveServer deletes the server annotations from its Pod.
func (p *Provider) RemoveServer(ctx context.Context, serverID string) error {
	pod, err := p.findPodByServerID(ctx, serverID)
	if err != nil || pod == nil {
		return err
	}
	return p.clear(ctx, pod)
}

// RemoveTimedOutServers clears every server whose heartbeat is before the
// given time.
func (p *Provider) RemoveTimedOutServers(ctx context.Context, before time.Time) (int, error) {
	pods, err := p.listPods(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range pods {
		s, convErr := p.serverFromPod(&pods[i])
		if convErr != nil || !s.TimedOut(before) {
			continue
		}
		if err := p.clear(ctx, &pods[i]); err != nil {
			return removed, err
		}
		p.logger.Info("removed timed out server", slog.String("server_id", s.ID))
		removed++
	}
	return removed, nil
}

// ListServers returns every announced server ordered by ID.
func (p *Provider) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	pods, err := p.listPods(ctx)
	if err != nil {
		return nil, err
	}

	servers := make([]*cluster.Server, 0, len(pods))
	for i := range pods {
		s, convErr := p.serverFromPod(&pods[i])
		if convErr != nil {
			continue // pod has no server annotations
		}
		servers = append(servers, s)
	}
	slices.SortFunc(servers, func(a, b *cluster.Server) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return servers, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (p *Provider) listPods(ctx context.Context) ([]corev1.Pod, error) {
	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: p.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("k8s: list pods: %w", err)
	}
	return pods.Items, nil
}

func (p *Provider) clear(ctx context.Context, pod *corev1.Pod) error {
	for _, k := range annotationKeys {
		delete(pod.Annotations, p.annotationPrefix+k)
	}
	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("k8s: remove server update pod: %w", err)
	}
	return nil
}

func (p *Provider) setServerAnnotations(pod *corev1.Pod, s *cluster.Server) {
	a := pod.Annotations
	prefix := p.annotationPrefix

	a[prefix+"server-id"] = s.ID
	a[prefix+"worker-count"] = strconv.Itoa(s.Data.WorkerCount)
	a[prefix+"started-at"] = s.Data.StartedAt.UTC().Format(time.RFC3339Nano)
	a[prefix+"last-heartbeat"] = s.LastHeartbeat.UTC().Format(time.RFC3339Nano)

	b, _ := json.Marshal(s.Data.Queues) //nolint:errcheck // marshal of []string does not fail
	a[prefix+"queues"] = string(b)
}

func (p *Provider) serverFromPod(pod *corev1.Pod) (*cluster.Server, error) {
	prefix := p.annotationPrefix
	a := pod.Annotations

	serverID := a[prefix+"server-id"]
	if serverID == "" {
		return nil, fmt.Errorf("k8s: pod %q missing server-id annotation", pod.Name)
	}

	workers, _ := strconv.Atoi(a[prefix+"worker-count"])                     //nolint:errcheck // best-effort parse
	startedAt, _ := time.Parse(time.RFC3339Nano, a[prefix+"started-at"])     //nolint:errcheck // best-effort parse
	heartbeat, _ := time.Parse(time.RFC3339Nano, a[prefix+"last-heartbeat"]) //nolint:errcheck // best-effort parse

	s := &cluster.Server{
		ID:            serverID,
		LastHeartbeat: heartbeat,
		Data:          cluster.Data{WorkerCount: workers, StartedAt: startedAt},
	}
	if q := a[prefix+"queues"]; q != "" {
		var queues []string
		if err := json.Unmarshal([]byte(q), &queues); err == nil {
			s.Data.Queues = queues
		}
	}
	return s, nil
}

func (p *Provider) findPodByServerID(ctx context.Context, serverID string) (*corev1.Pod, error) {
	pods, err := p.listPods(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pods {
		if pods[i].Annotations[p.annotationPrefix+"server-id"] == serverID {
			return &pods[i], nil
		}
	}
	return nil, nil
}
