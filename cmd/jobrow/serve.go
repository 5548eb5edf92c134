package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	audithook "github.com/xraph/jobrow/audit_hook"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/cluster/k8s"
	"github.com/xraph/jobrow/engine"
	notifypg "github.com/xraph/jobrow/notify/postgres"
	notifyredis "github.com/xraph/jobrow/notify/redis"
	"github.com/xraph/jobrow/process"
)

type serveFlags struct {
	queues            []string
	workers           int
	heartbeatInterval time.Duration
	serverTimeout     time.Duration
	redisURL          string
	k8sNamespace      string
	audit             bool
	migrate           bool
}

func newServeCmd(g *globals) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run counter aggregation, expiration and server heartbeats until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.queues, "queues", []string{"default"}, "queues this server announces")
	fl.IntVar(&f.workers, "workers", 20, "worker count this server announces")
	fl.DurationVar(&f.heartbeatInterval, "heartbeat-interval", 30*time.Second, "server heartbeat period")
	fl.DurationVar(&f.serverTimeout, "server-timeout", 5*time.Minute, "remove servers silent for longer than this")
	fl.StringVar(&f.redisURL, "redis-url", envOr(envRedisURL, ""), "publish queue wake-ups over Redis pub/sub")
	fl.StringVar(&f.k8sNamespace, "k8s-namespace", envOr(envK8sNamespace, ""), "register servers on Pod annotations in this namespace")
	fl.BoolVar(&f.audit, "audit", false, "log lease and maintenance events as audit records")
	fl.BoolVar(&f.migrate, "migrate", false, "migrate the schema before serving")
	return cmd
}

// serverID identifies this process as host:uuid.
func serverID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return strings.ToLower(host) + ":" + uuid.NewString()
}

func serve(ctx context.Context, g *globals, f *serveFlags) error {
	logger := g.logger

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, g.driver, g.dsn, g.mongoDatabase, logger)
	if err != nil {
		return err
	}
	defer b.Close(context.Background()) //nolint:errcheck

	if f.migrate {
		if err := b.store.Migrate(ctx); err != nil {
			return err
		}
	}

	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	}

	// Cross-process wake signal, preferring Redis when configured.
	var runSignal func(context.Context) error
	switch {
	case f.redisURL != "":
		ropts, err := goredis.ParseURL(f.redisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(ropts)
		defer client.Close() //nolint:errcheck
		sig := notifyredis.New(client, notifyredis.WithQueues(f.queues...), notifyredis.WithLogger(logger))
		opts = append(opts, engine.WithSignal(sig))
		runSignal = sig.Run
	case b.pool != nil:
		sig := notifypg.New(b.pool, notifypg.WithQueues(f.queues...), notifypg.WithLogger(logger))
		opts = append(opts, engine.WithSignal(sig))
		runSignal = sig.Run
	}

	if f.k8sNamespace != "" {
		restCfg, err := rest.InClusterConfig()
		if err != nil {
			return fmt.Errorf("kubernetes config: %w", err)
		}
		clientset, err := kubernetes.NewForConfig(restCfg)
		if err != nil {
			return fmt.Errorf("kubernetes client: %w", err)
		}
		opts = append(opts, engine.WithServerRegistry(k8s.New(clientset, f.k8sNamespace, k8s.WithLogger(logger))))
	}

	if f.audit {
		opts = append(opts, engine.WithExtension(audithook.New(auditLogger(logger), audithook.WithLogger(logger))))
	}

	eng, err := engine.New(b.store, opts...)
	if err != nil {
		return err
	}

	id := serverID()
	if err := eng.AnnounceServer(ctx, id, cluster.Data{
		WorkerCount: f.workers,
		Queues:      f.queues,
		StartedAt:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("announce server: %w", err)
	}
	logger.Info("server announced", "server_id", id, "queues", f.queues)

	eng.AddProcess(process.Func("server-heartbeat", func(ctx context.Context) error {
		return eng.Heartbeat(ctx, id)
	}), f.heartbeatInterval)
	eng.AddProcess(process.Func("server-watchdog", func(ctx context.Context) error {
		n, err := eng.RemoveTimedOutServers(ctx, f.serverTimeout)
		if n > 0 {
			logger.Info("removed timed out servers", "count", n)
		}
		return err
	}), f.serverTimeout)

	if runSignal != nil {
		go func() {
			if err := runSignal(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("queue signal stopped", "error", err)
			}
		}()
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutting down", "server_id", id)

	stopCtx := context.Background()
	stopErr := eng.Stop(stopCtx)
	if err := eng.RemoveServer(stopCtx, id); err != nil {
		logger.Warn("remove server", "server_id", id, "error", err)
	}
	return stopErr
}

// auditLogger records audit events as structured log lines.
func auditLogger(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		attrs := []any{
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("severity", evt.Severity),
			slog.String("outcome", evt.Outcome),
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.InfoContext(ctx, "audit "+evt.Action, attrs...)
		return nil
	})
}
