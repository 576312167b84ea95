// Package main is the command-line front end: it analyzes one message from
// a file or stdin and prints the chosen export.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/config"
	"github.com/shineum/phishtriage/internal/export"
	"github.com/shineum/phishtriage/internal/history"
	"github.com/shineum/phishtriage/internal/logging"
	"github.com/shineum/phishtriage/internal/threat"
)

const usage = `usage: triage [-config file] [-format markdown|json|eml|iocs] [-history] [file|-]
       triage [-config file] -recent N
       triage [-config file] [-format ...] -show ID`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("triage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to YAML configuration file (optional)")
	formatName := fs.String("format", "markdown", "output format: markdown, json, eml or iocs")
	save := fs.Bool("history", false, "save the analysis into the history store")
	recent := fs.Int("recent", 0, "list the N most recent analyses instead of analyzing")
	show := fs.String("show", "", "print a stored analysis by id instead of analyzing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	logging.Setup(stderr, cfg.Logging.Level, cfg.Logging.Format)

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 2
	}

	if *recent > 0 || *show != "" {
		store, err := openHistory(ctx, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "triage: %v\n", err)
			return 1
		}
		defer store.Close()

		if *show != "" {
			return showStored(ctx, store, *show, format, stdout, stderr)
		}
		return listRecent(ctx, store, *recent, stdout, stderr)
	}

	raw, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}

	analyzer := analysis.New(
		analysis.WithScorer(threat.New(cfg.ThreatConfig())),
		analysis.WithRedaction(cfg.RedactionOptions()),
	)
	a, err := analyzer.Analyze(raw)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	slog.Debug("message analyzed", "id", a.Email.ID, "level", a.Threat.Level, "score", a.Threat.Score)

	out, err := export.Render(a, format)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	if _, err := stdout.Write(out); err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}

	if *save {
		store, err := openHistory(ctx, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "triage: %v\n", err)
			return 1
		}
		defer store.Close()
		if err := store.Save(ctx, a); err != nil {
			fmt.Fprintf(stderr, "triage: %v\n", err)
			return 1
		}
	}
	return 0
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openHistory opens the configured store, falling back to the local SQLite
// file when no backend is configured.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	hc := cfg.History
	if hc.Backend == "" {
		hc.Backend = config.BackendSQLite
	}
	return history.Open(ctx, hc)
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "" || name == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return raw, nil
}

func listRecent(ctx context.Context, store history.Store, n int, stdout, stderr io.Writer) int {
	entries, err := store.Recent(ctx, n)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEVEL\tSCORE\tANALYZED\tSUBJECT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.ID, e.Level, e.Score, e.AnalyzedAt, e.Subject)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	return 0
}

func showStored(ctx context.Context, store history.Store, id string, format export.Format, stdout, stderr io.Writer) int {
	a, err := store.Load(ctx, id)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	out, err := export.Render(a, format)
	if err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	if _, err := stdout.Write(out); err != nil {
		fmt.Fprintf(stderr, "triage: %v\n", err)
		return 1
	}
	return 0
}
