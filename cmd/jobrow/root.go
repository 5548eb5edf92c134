package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	driver        string
	dsn           string
	mongoDatabase string
	logLevel      string
	logFormat     string

	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:          "jobrow",
		Short:        "jobrow storage CLI",
		Long:         "jobrow manages a job store: schema migrations, maintenance processes and statistics.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			g.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.driver, "driver", envOr(envDriver, driverPostgres),
		"store driver: postgres|bun-postgres|sqlite|mongo|memory")
	pf.StringVar(&g.dsn, "dsn", envOr(envDSN, ""), "store connection string")
	pf.StringVar(&g.mongoDatabase, "mongo-database", envOr(envMongoDatabase, "jobrow"), "MongoDB database name")
	pf.StringVar(&g.logLevel, "log-level", envOr(envLogLevel, "info"), "log level: debug|info|warn|error")
	pf.StringVar(&g.logFormat, "log-format", envOr(envLogFormat, "text"), "log format: text|json")

	root.AddCommand(
		newMigrateCmd(g),
		newServeCmd(g),
		newStatsCmd(g),
	)
	return root
}
