package process

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobrow/middleware"
)

type registration struct {
	process  Process
	interval time.Duration
}

// Supervisor runs registered processes on their intervals until stopped.
type Supervisor struct {
	logger      *slog.Logger
	server      string
	passTimeout time.Duration
	chain       middleware.Middleware

	procs []registration

	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithServer sets the server identity reported on each pass.
func WithServer(name string) Option {
	return func(s *Supervisor) { s.server = name }
}

// WithMiddleware sets the middleware wrapped around every pass.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Supervisor) { s.chain = middleware.Chain(mws...) }
}

// WithPassTimeout bounds each pass. Zero means no deadline.
func WithPassTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.passTimeout = d }
}

// NewSupervisor creates a Supervisor with no registered processes.
func NewSupervisor(logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		logger: logger,
		chain:  middleware.Chain(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers p to run every interval. Processes added after Start are
// not run until the next Start.
func (s *Supervisor) Add(p Process, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = append(s.procs, registration{process: p, interval: interval})
}

// Processes returns the names of the registered processes.
func (s *Supervisor) Processes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.procs))
	for i, r := range s.procs {
		names[i] = r.process.Name()
	}
	return names
}

// Start launches one goroutine per process. The first pass of each process
// runs immediately. It returns without blocking; ctx bounds every pass.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-s.stopCh:
		}
	}()

	s.logger.Info("process supervisor starting",
		slog.String("server", s.server),
		slog.Int("processes", len(s.procs)),
	)

	for _, r := range s.procs {
		s.wg.Add(1)
		go s.loop(runCtx, r)
	}
	return nil
}

// Stop signals all processes to stop and waits for in-flight passes. When
// ctx ends first, in-flight passes are cancelled.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("process supervisor stopping", slog.String("server", s.server))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("process supervisor stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("process supervisor shutdown timed out, cancelling passes")
		cancel()
		<-done
	}
	return nil
}

func (s *Supervisor) loop(ctx context.Context, r registration) {
	defer s.wg.Done()

	name := r.process.Name()
	for iteration := 1; ; iteration++ {
		pass := &middleware.Pass{
			Process:   name,
			Server:    s.server,
			Iteration: iteration,
			Timeout:   s.passTimeout,
		}
		err := s.chain(ctx, pass, r.process.Execute)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("process pass failed, retrying on next interval",
				slog.String("process", name),
				slog.Duration("interval", r.interval),
				slog.String("error", err.Error()),
			)
		}

		t := time.NewTimer(r.interval)
		select {
		case <-s.stopCh:
			t.Stop()
			return
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
