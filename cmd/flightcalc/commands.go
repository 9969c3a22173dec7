package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"flightcalc/internal/api"
	"flightcalc/internal/chat"
	"flightcalc/internal/config"
	"flightcalc/internal/flight"
	"flightcalc/internal/query"
	"flightcalc/internal/storage"
	"flightcalc/internal/transport"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text|-]",
		Short: "Parse a query and print the legs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			batch, err := query.ParseBatch(text)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"legs": batch}, true)
		},
	}
}

func newCalcCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "calc [text|-]",
		Short: "Calculate a query and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			rt, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			reply := rt.bot.Handle(cmd.Context(), "cli", &chat.Message{
				Text: text,
				User: &chat.User{Username: os.Getenv("USER")},
			})
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if reply.ErrorKind != "" {
				return fmt.Errorf("request failed: %s", reply.ErrorKind)
			}
			return nil
		},
	}
}

// replayStats counts what a replay did.
type replayStats struct {
	Lines   int
	Skipped int
	Handled int
	Failed  int
}

func newReplayCmd(cfg *config.Config) *cobra.Command {
	var inPath, outPath string
	var pretty, showStats bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Answer a JSONL file of chat messages and print the replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if inPath != "" {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			rt, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

			out := make([]chat.Reply, 0, 64)
			st := &replayStats{}
			for scanner.Scan() {
				st.Lines++
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				msg, err := chat.Decode([]byte(line))
				if err != nil {
					st.Skipped++
					continue
				}

				reply := rt.bot.Handle(cmd.Context(), "cli", msg)
				st.Handled++
				if reply.ErrorKind != "" {
					st.Failed++
				}
				out = append(out, reply)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeJSON(w, out, pretty); err != nil {
				return err
			}

			if showStats {
				fmt.Fprintf(cmd.ErrOrStderr(), "stats: lines=%d handled=%d failed=%d skipped(undecodable)=%d\n",
					st.Lines, st.Handled, st.Failed, st.Skipped)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&inPath, "input", "", "Input JSONL file (default: stdin)")
	f.StringVar(&outPath, "output", "", "Output JSON file (default: stdout)")
	f.BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	f.BoolVar(&showStats, "stats", false, "Print basic counters to stderr")
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var apiKeys string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("api-keys") {
				cfg.API.APIKeys = config.SplitList(apiKeys)
				cfg.API.AuthEnabled = len(cfg.API.APIKeys) > 0
			}

			rt, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			deps := api.Deps{Bot: rt.bot, Service: rt.service, Logger: rt.logger}
			if rt.db.History != nil {
				deps.History = rt.db.History
			}
			if rt.db.CH != nil {
				deps.Routes = rt.db.CH
			}
			return api.NewServer(deps, cfg.API).Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.API.Port, "port", cfg.API.Port, "HTTP port for API server")
	f.StringVar(&apiKeys, "api-keys", strings.Join(cfg.API.APIKeys, ","), "Comma-separated list of valid API keys (enables auth)")
	return cmd
}

func newListenCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Answer chat messages over NATS request/reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			return transport.NewListener(cfg.NATS, rt.bot, rt.logger).Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.NATS.URL, "nats-url", cfg.NATS.URL, "NATS server URL")
	f.StringVar(&cfg.NATS.Subject, "subject", cfg.NATS.Subject, "Subject to answer on")
	f.StringVar(&cfg.NATS.Queue, "queue", cfg.NATS.Queue, "Queue group")
	return cmd
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var p storage.QueryParams
	var stats bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the request history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Storage.HistoryPath == "" {
				return fmt.Errorf("history database not configured")
			}
			db, err := storage.OpenHistory(cfg.Storage.HistoryPath)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			if stats {
				s, err := db.GetStats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "requests=%d failed=%d legs=%d\n", s.TotalRequests, s.Failed, s.TotalLegs)
				for kind, n := range s.ByErrorKind {
					fmt.Fprintf(w, "  %s: %d\n", kind, n)
				}
				return nil
			}

			p.OrderDesc = true
			entries, err := db.Query(cmd.Context(), p)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tSOURCE\tCHAT\tLEGS\tERROR\tTEXT")
			for _, e := range entries {
				status := e.ErrorKind
				if e.OK() {
					status = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.ID, e.Timestamp.Local().Format(time.DateTime), e.Source, e.ChatID, e.LegCount, status, oneLine(e.RawText))
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.FullText, "search", "", "Full-text search on request text")
	f.IntVar(&p.Limit, "limit", 20, "Maximum entries")
	f.Int64Var(&p.ChatID, "chat", 0, "Only this chat")
	f.BoolVar(&p.FailedOnly, "failed", false, "Only failed requests")
	f.StringVar(&p.ErrorKind, "kind", "", "Only this error kind ("+flight.KindInvalidQuery+", "+flight.KindNotFound+", ...)")
	f.BoolVar(&stats, "stats", false, "Print aggregate counts instead of entries")
	return cmd
}

func oneLine(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " | ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
