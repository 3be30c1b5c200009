// Package main is the entry point for the SES forwarder Lambda function.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/shineum/ses-forwarder-lite/internal/config"
	"github.com/shineum/ses-forwarder-lite/internal/forward"
	"github.com/shineum/ses-forwarder-lite/internal/handler"
	"github.com/shineum/ses-forwarder-lite/internal/provider"
	"github.com/shineum/ses-forwarder-lite/internal/provider/ses"
	"github.com/shineum/ses-forwarder-lite/internal/provider/stdout"
	"github.com/shineum/ses-forwarder-lite/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORWARDER_CONFIG"), "path to YAML configuration file (optional)")
	eventPath := flag.String("event", "", "process one SES event from this JSON file and exit instead of starting the Lambda runtime")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	fwdMapping, err := cfg.Mapping()
	if err != nil {
		slog.Error("invalid forward mapping", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	h := &handler.Handler{
		Store:     selectStore(ctx, cfg),
		KeyPrefix: cfg.S3.Prefix,
		Forwarder: forward.New(forward.Config{
			Provider:     selectProvider(ctx, cfg),
			Mapping:      fwdMapping,
			VerifiedFrom: cfg.Forward.VerifiedFrom,
		}),
	}

	slog.Info("starting ses-forwarder",
		"provider", cfg.Provider,
		"bucket", cfg.S3.Bucket,
		"prefix", cfg.S3.Prefix,
		"mappings", len(fwdMapping),
		"verified_from", cfg.Forward.VerifiedFrom,
	)

	if *eventPath != "" {
		if err := runOnce(ctx, h, *eventPath); err != nil {
			slog.Error("event processing failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(h.HandleEvent)
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

// selectStore reads from MAIL_DIR when set, otherwise from the SES bucket.
func selectStore(ctx context.Context, cfg *config.Config) storage.Store {
	if cfg.S3.MailDir != "" {
		slog.Info("reading messages from local directory", "dir", cfg.S3.MailDir)
		return storage.NewDirStore(cfg.S3.MailDir)
	}

	s, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket: cfg.S3.Bucket,
		Region: cfg.S3.Region,
	})
	if err != nil {
		slog.Error("failed to create S3 client", "error", err)
		os.Exit(1)
	}
	return s
}

// selectProvider chooses the outbound mail backend. Validate has already
// rejected unknown names.
func selectProvider(ctx context.Context, cfg *config.Config) provider.Provider {
	if cfg.Provider == config.ProviderStdout {
		slog.Info("using stdout provider")
		return stdout.New()
	}

	p, err := ses.New(ctx, ses.SESProviderConfig{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
	})
	if err != nil {
		slog.Error("failed to create SES provider", "error", err)
		os.Exit(1)
	}
	return p
}

// runOnce decodes one SES event from a file and handles it outside Lambda.
func runOnce(ctx context.Context, h *handler.Handler, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var event events.SimpleEmailEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}

	return h.HandleEvent(ctx, event)
}
