// Package audithook is a jobrow extension that bridges storage lifecycle
// events to an audit trail backend.
//
// Every lease and maintenance hook emits a structured audit event through
// the [Recorder] interface. Normal operations are recorded at info severity,
// requeues at warning and failed lease renewals at critical.
//
// # Usage
//
//	eng, _ := engine.New(st, engine.WithExtension(
//	    audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	        logger.InfoContext(ctx, evt.Action, "resource_id", evt.ResourceID, "meta", evt.Metadata)
//	        return nil
//	    })),
//	))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionLeaseRequeued,
//	        audithook.ActionLeaseRenewFailed,
//	    ),
//	)
package audithook
