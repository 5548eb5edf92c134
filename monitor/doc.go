// Package monitor is the dashboard read model over a jobrow store.
//
// It answers the questions a monitoring UI asks: how many jobs are in each
// state, what each queue holds, which servers are alive, and the full
// details of one job. When a job list limit is configured, every count and
// listing is capped at that many rows so the dashboard never scans an
// unbounded table.
package monitor
