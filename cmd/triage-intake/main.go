// Package main is the entry point for the phishing report intake server.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/config"
	"github.com/shineum/phishtriage/internal/history"
	"github.com/shineum/phishtriage/internal/logging"
	"github.com/shineum/phishtriage/internal/sink"
	"github.com/shineum/phishtriage/internal/sink/ses"
	"github.com/shineum/phishtriage/internal/sink/stdout"
	"github.com/shineum/phishtriage/internal/smtp"
	"github.com/shineum/phishtriage/internal/threat"
	smtptls "github.com/shineum/phishtriage/internal/tls"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout carries the reports of the stdout sink
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Load or generate TLS certificates
	tlsConfig, err := smtptls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Hostname)
	if err != nil {
		slog.Error("failed to setup TLS", "error", err)
		os.Exit(1)
	}

	tlsMode := "self-signed"
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		tlsMode = "file"
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build delivery sinks
	out, closeSinks, err := buildSinks(ctx, cfg, os.Stdout)
	if err != nil {
		slog.Error("failed to setup sinks", "error", err)
		os.Exit(1)
	}
	defer closeSinks()

	analyzer := analysis.New(
		analysis.WithScorer(threat.New(cfg.ThreatConfig())),
		analysis.WithRedaction(cfg.RedactionOptions()),
	)

	// Create SMTP server
	server := smtp.New(smtp.ServerConfig{
		ListenAddr:     cfg.SMTP.Listen,
		Hostname:       cfg.SMTP.Hostname,
		Analyzer:       analyzer,
		Sink:           out,
		TLSConfig:      tlsConfig,
		AuthUsername:   cfg.SMTP.Username,
		AuthPassword:   cfg.SMTP.Password,
		MaxMessageSize: cfg.SMTP.MaxMessageSize,
	})

	slog.Info("starting phishtriage intake",
		"listen", cfg.SMTP.Listen,
		"sinks", out.Name(),
		"auth_enabled", cfg.AuthEnabled(),
		"tls_mode", tlsMode,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	// Start the server (blocks until context is cancelled)
	if err := server.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("phishtriage intake stopped")
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// buildSinks creates every configured sink; the stdout sink writes reports to
// reports. The returned func closes the history store, if one was opened.
func buildSinks(ctx context.Context, cfg *config.Config, reports io.Writer) (sink.Sink, func(), error) {
	var sinks []sink.Sink
	closeFn := func() {}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkStdout:
			slog.Info("using stdout sink")
			sinks = append(sinks, stdout.NewWithWriter(reports))

		case config.SinkSES:
			slog.Info("using AWS SES sink",
				"region", cfg.SES.Region,
				"sender", cfg.SES.Sender,
				"min_level", cfg.MinLevel(),
			)
			s, err := ses.New(ctx, ses.Config{
				Region:          cfg.SES.Region,
				AccessKeyID:     cfg.SES.AccessKeyID,
				SecretAccessKey: cfg.SES.SecretAccessKey,
				Sender:          cfg.SES.Sender,
				Recipients:      cfg.SES.Recipients,
				MinLevel:        cfg.MinLevel(),
				AttachSanitized: cfg.SES.AttachSanitized,
			})
			if err != nil {
				closeFn()
				return nil, nil, err
			}
			sinks = append(sinks, s)

		case config.SinkHistory:
			slog.Info("using history sink", "backend", cfg.History.Backend)
			store, err := history.Open(ctx, cfg.History)
			if err != nil {
				closeFn()
				return nil, nil, err
			}
			closeFn = func() {
				if err := store.Close(); err != nil {
					slog.Warn("failed to close history store", "error", err)
				}
			}
			sinks = append(sinks, sink.NewHistory(store))
		}
	}

	if len(sinks) == 0 {
		slog.Info("no sinks configured, using stdout sink")
		sinks = append(sinks, stdout.NewWithWriter(reports))
	}
	return sink.Multi(sinks...), closeFn, nil
}
