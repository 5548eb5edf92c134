// Command jobrow manages a jobrow store: it applies schema migrations, runs
// the storage maintenance processes as a registered server and prints
// monitoring statistics.
//
// Flags default to JOBROW_* environment variables, which may also be set in
// a .env file in the working directory.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
