package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xraph/jobrow/engine"
	"github.com/xraph/jobrow/monitor"
)

type statsOutput struct {
	Statistics *monitor.Statistics     `json:"statistics"`
	Queues     []*monitor.QueueSummary `json:"queues,omitempty"`
}

func newStatsCmd(g *globals) *cobra.Command {
	var withQueues bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print job and queue statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(ctx, g.driver, g.dsn, g.mongoDatabase, g.logger)
			if err != nil {
				return err
			}
			defer b.Close(ctx) //nolint:errcheck

			eng, err := engine.New(b.store, engine.WithConfig(cfg), engine.WithLogger(g.logger))
			if err != nil {
				return err
			}
			return printStats(cmd, eng.Monitor(), withQueues, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&withQueues, "queues", false, "include per-queue summaries")
	return cmd
}

func printStats(cmd *cobra.Command, m *monitor.Monitor, withQueues bool, w io.Writer) error {
	ctx := cmd.Context()

	stats, err := m.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}
	out := statsOutput{Statistics: stats}
	if withQueues {
		if out.Queues, err = m.Queues(ctx); err != nil {
			return fmt.Errorf("queues: %w", err)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
