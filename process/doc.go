// Package process runs long-lived background maintenance processes.
//
// A [Process] exposes a single Execute entry point that performs one pass
// and returns. The [Supervisor] invokes each registered process on its own
// interval, wraps every pass in the configured middleware chain, and keeps
// going after a failed pass: the error is logged and the next pass runs on
// schedule.
//
//	sup := process.NewSupervisor(logger,
//	    process.WithMiddleware(middleware.Recover(logger), middleware.Tracing()),
//	)
//	sup.Add(aggregator, cfg.CountersAggregateInterval)
//	sup.Add(sweeper, cfg.JobExpirationCheckInterval)
//	sup.Start(ctx)
//	defer sup.Stop(shutdownCtx)
package process
