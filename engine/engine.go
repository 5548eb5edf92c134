package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/lock"
	mw "github.com/xraph/jobrow/middleware"
	"github.com/xraph/jobrow/monitor"
	"github.com/xraph/jobrow/observability"
	"github.com/xraph/jobrow/process"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/store"
	"github.com/xraph/jobrow/txn"
)

// Engine is the storage facade.
type Engine struct {
	store      store.Store
	servers    cluster.Store
	config     jobrow.Config
	logger     *slog.Logger
	now        func() time.Time
	locks      *lock.Table
	signal     queue.Signal
	extensions *ext.Registry
	mws        []mw.Middleware

	manager    *queue.Manager
	aggregator *counter.Aggregator
	sweeper    *expire.Sweeper
	monitor    *monitor.Monitor
	supervisor *process.Supervisor

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. It is validated by New.
func WithConfig(cfg jobrow.Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSignal replaces the in-process queue wake signal, for example with a
// cross-process notify/redis or notify/postgres signal.
func WithSignal(s queue.Signal) Option {
	return func(e *Engine) { e.signal = s }
}

// WithExtension registers an extension with the engine.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.extensions.Register(x) }
}

// WithMiddleware adds middleware around background-process passes, after
// the built-in recover, tracing, metrics, logging and timeout middleware.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithServerRegistry replaces the store's server registry, for example with
// the Kubernetes-backed cluster/k8s provider.
func WithServerRegistry(r cluster.Store) Option {
	return func(e *Engine) { e.servers = r }
}

// WithTracerProvider sets a custom OTel TracerProvider for pass tracing.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for pass metrics and
// the observability extension.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// WithClock replaces time.Now for leases, heartbeats and expirations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine over s.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, jobrow.ErrNoStore
	}

	e := &Engine{
		store:      s,
		servers:    s,
		config:     jobrow.DefaultConfig(),
		logger:     slog.Default(),
		now:        time.Now,
		locks:      lock.NewTable(),
		extensions: ext.NewRegistry(slog.Default()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.signal == nil {
		e.signal = queue.NewLocalSignal()
	}

	// Register the observability metrics extension.
	if e.meterProvider != nil {
		e.extensions.Register(observability.NewMetricsExtensionWithMeter(
			e.meterProvider.Meter("github.com/xraph/jobrow/observability")))
	} else {
		e.extensions.Register(observability.NewMetricsExtension())
	}

	var err error
	e.manager, err = queue.NewManager(s, e.locks, e.config,
		queue.WithLogger(e.logger),
		queue.WithSignal(e.signal),
		queue.WithExtensions(e.extensions),
		queue.WithClock(e.now),
	)
	if err != nil {
		return nil, err
	}

	e.aggregator = counter.NewAggregator(s,
		counter.WithLogger(e.logger),
		counter.WithExtensions(e.extensions),
		counter.WithBatchSize(e.config.CounterBatchSize),
		counter.WithPassDelay(e.config.CounterPassDelay),
	)

	e.sweeper = expire.NewSweeper(expire.StoreRegistry(s), e.locks,
		expire.WithLogger(e.logger),
		expire.WithExtensions(e.extensions),
		expire.WithBatchSize(e.config.ExpirationBatchSize),
		expire.WithBatchDelay(e.config.ExpirationBatchDelay),
		expire.WithClock(e.now),
	)

	e.monitor = monitor.New(s,
		monitor.WithJobListLimit(e.config.DashboardJobListLimit),
		monitor.WithClock(e.now),
	)

	// Build tracing middleware (custom provider or global).
	tracingMw := mw.Tracing()
	if e.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(e.tracerProvider.Tracer("github.com/xraph/jobrow"))
	}

	// Build metrics middleware (custom provider or global).
	metricsMw := mw.Metrics()
	if e.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(e.meterProvider.Meter("github.com/xraph/jobrow"))
	}

	// Default stack: recover → tracing → metrics → logging → timeout.
	chain := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
		mw.Timeout(),
	}
	chain = append(chain, e.mws...)

	e.supervisor = process.NewSupervisor(e.logger, process.WithMiddleware(chain...))
	e.supervisor.Add(e.aggregator, e.config.CountersAggregateInterval)
	e.supervisor.Add(e.sweeper, e.config.JobExpirationCheckInterval)

	return e, nil
}

// AddProcess registers an additional background process. It must be called
// before Start.
func (e *Engine) AddProcess(p process.Process, interval time.Duration) {
	e.supervisor.Add(p, interval)
}

// Start launches the counter aggregator, the expiration sweeper and every
// added process.
func (e *Engine) Start(ctx context.Context) error {
	return e.supervisor.Start(ctx)
}

// Stop stops background processes, waiting at most ShutdownTimeout, then
// notifies extensions and closes the lock table. It does not close the
// store.
func (e *Engine) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.ShutdownTimeout)
	defer cancel()

	err := e.supervisor.Stop(ctx)
	e.extensions.EmitShutdown(ctx)
	e.locks.Close()
	return err
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Config returns the validated configuration.
func (e *Engine) Config() jobrow.Config { return e.config }

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Locks returns the in-process lock table.
func (e *Engine) Locks() *lock.Table { return e.locks }

// Signal returns the queue wake signal.
func (e *Engine) Signal() queue.Signal { return e.signal }

// Manager returns the queue lease manager.
func (e *Engine) Manager() *queue.Manager { return e.manager }

// Aggregator returns the counter aggregator.
func (e *Engine) Aggregator() *counter.Aggregator { return e.aggregator }

// Sweeper returns the expiration sweeper.
func (e *Engine) Sweeper() *expire.Sweeper { return e.sweeper }

// Monitor returns the monitoring read model.
func (e *Engine) Monitor() *monitor.Monitor { return e.monitor }

// ──────────────────────────────────────────────────
// Queue, locks and transactions
// ──────────────────────────────────────────────────

// FetchNextJob blocks until a job in one of queues is leased or ctx ends.
func (e *Engine) FetchNextJob(ctx context.Context, queues []string) (*queue.Lease, error) {
	return e.manager.FetchNext(ctx, queues)
}

// AcquireLock takes the named in-process lock. On timeout it returns a
// non-held handle and an error wrapping ErrLockTimeout.
func (e *Engine) AcquireLock(ctx context.Context, resource string, timeout time.Duration) (*lock.Handle, error) {
	return e.locks.Acquire(ctx, resource, timeout)
}

// NewTransaction starts a write transaction.
func (e *Engine) NewTransaction() *txn.Transaction {
	return txn.New(e.store,
		txn.WithLocks(e.locks),
		txn.WithSignal(e.signal),
		txn.WithExtensions(e.extensions),
		txn.WithLogger(e.logger),
		txn.WithLockTimeout(e.config.FetchLockTimeout),
		txn.WithClock(e.now),
	)
}

// ──────────────────────────────────────────────────
// Servers
// ──────────────────────────────────────────────────

// AnnounceServer registers serverID with data and stamps its heartbeat.
func (e *Engine) AnnounceServer(ctx context.Context, serverID string, data cluster.Data) error {
	if serverID == "" {
		return jobrow.ErrServerIDRequired
	}
	return e.servers.AnnounceServer(ctx, &cluster.Server{
		ID:            serverID,
		Data:          data,
		LastHeartbeat: e.now().UTC(),
	})
}

// Heartbeat refreshes the heartbeat of serverID.
func (e *Engine) Heartbeat(ctx context.Context, serverID string) error {
	return e.servers.HeartbeatServer(ctx, serverID, e.now().UTC())
}

// RemoveServer deregisters serverID.
func (e *Engine) RemoveServer(ctx context.Context, serverID string) error {
	return e.servers.RemoveServer(ctx, serverID)
}

// RemoveTimedOutServers deregisters every server whose last heartbeat is
// older than timeout and returns how many were removed.
func (e *Engine) RemoveTimedOutServers(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout < 0 {
		return 0, fmt.Errorf("%w: server timeout must not be negative", jobrow.ErrInvalidConfig)
	}
	return e.servers.RemoveTimedOutServers(ctx, e.now().UTC().Add(-timeout))
}

// Servers returns the registered servers.
func (e *Engine) Servers(ctx context.Context) ([]*cluster.Server, error) {
	return e.servers.ListServers(ctx)
}
