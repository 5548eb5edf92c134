// Package engine wires every jobrow subsystem into one storage facade.
//
// An Engine owns the in-process lock table, the queue wake signal, the
// extension registry, the lease manager, the two maintenance sweepers, the
// monitoring read model and the process supervisor that drives the sweepers.
// It exposes the connection-level operations a job framework calls.
//
// The engine package sits above all subsystem packages so that none of them
// has to import another's implementation.
//
// # Building an Engine
//
//	s, err := postgres.New(ctx, dsn)
//	eng, err := engine.New(s,
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithSignal(notifyredis.New(redisClient)),
//	)
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(shutdownCtx)
//
// # Fetching Work
//
//	lease, err := eng.FetchNextJob(ctx, []string{"critical", "default"})
//	defer lease.Close()
//	// ... run the job ...
//	lease.Release(ctx)
//
// # Writing
//
//	tx := eng.NewTransaction()
//	tx.SetJobState(jobID, job.StateEnqueued, "", nil)
//	tx.AddToQueue("default", jobID)
//	err := tx.Commit(ctx)
//
// # Options
//
//   - [WithConfig] sets intervals, timeouts and batch sizes
//   - [WithLogger] sets the structured logger
//   - [WithSignal] replaces the in-process queue wake signal
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds middleware around background passes
//   - [WithServerRegistry] replaces the store's server registry
//   - [WithTracerProvider] and [WithMeterProvider] set OpenTelemetry providers
package engine
