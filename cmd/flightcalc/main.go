// Command flightcalc is the flight calculator bot.
//
// A query is one leg per line:
//
//	[ORDINAL[. |) ]] DEPARTURE (- | <space>) ARRIVAL PAXCOUNT[PAX] AIRCRAFT [no AVOID(, |; )AVOID]*
//
// Commands:
//
//	parse [text|-]     parse a query and print the legs as JSON
//	calc [text|-]      calculate a query and print the reply
//	replay             answer a JSONL file of chat messages
//	serve              run the REST API
//	listen             answer chat messages over NATS request/reply
//	history            query the request history
//
// Text is read from stdin when no argument (or "-") is given. Configuration
// comes from the environment (API_TOKEN, POSTGRES_HOST, CLICKHOUSE_HOST,
// NATS_URL, ...) and can be overridden by flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flightcalc/internal/config"
)

var version = "dev"

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "flightcalc",
		Short:         "Flight time calculator bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Rotated JSON log file (default stderr)")
	pf.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "Legs calculated concurrently (1 = in order)")
	pf.StringVar(&cfg.Storage.HistoryPath, "history-db", cfg.Storage.HistoryPath, "SQLite history database (empty disables)")
	pf.StringVar(&cfg.Aviapages.Token, "api-token", cfg.Aviapages.Token, "Aviapages Authorization header value")
	pf.StringVar(&cfg.Storage.Postgres.Host, "pg-host", cfg.Storage.Postgres.Host, "PostgreSQL host for the reference cache (empty disables)")
	pf.StringVar(&cfg.Storage.ClickHouse.Host, "ch-host", cfg.Storage.ClickHouse.Host, "ClickHouse host for analytics (empty disables)")

	root.AddCommand(
		newParseCmd(),
		newCalcCmd(cfg),
		newReplayCmd(cfg),
		newServeCmd(cfg),
		newListenCmd(cfg),
		newHistoryCmd(cfg),
	)
	return root
}
