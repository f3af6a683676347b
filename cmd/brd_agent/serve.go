package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/brd-pipeline/internal/config"
	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/llm"
	"github.com/jonathan/brd-pipeline/internal/observability"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/server"
	"github.com/jonathan/brd-pipeline/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort            int
	serveConfigPath      string
	serveShutdownTimeout time.Duration
	serveVerbose         bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for running the BRD pipeline.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on (overrides PORT and the config file)")
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to a JSON or YAML config file")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "How long running stages may take to finish on shutdown")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print pipeline progress and artifact summaries")
	rootCmd.AddCommand(serveCmd)
}

// loadServeConfig resolves the configuration from the config file, the
// environment and the command flags, in increasing precedence.
func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := &config.Config{}
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	if merged.APIKey == "" {
		return config.Config{}, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	return merged, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewClient(ctx, cfg.LLMConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	adapter := generation.NewAdapter(client, generation.WithPolicy(cfg.RetryPolicy()))

	registry := jobs.NewRegistry()
	var opts []pipeline.Option
	if serveVerbose {
		opts = append(opts, pipeline.WithProgress(progressPrinter(observability.NewPrinter(cmd.OutOrStdout()), registry)))
	}
	orch := pipeline.New(registry, adapter, opts...)

	srv := server.New(server.Config{
		Port:             cfg.Port,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		DefaultArtifacts: cfg.DefaultArtifacts(),
		RateLimit:        ratelimit.LoadConfig(),
	}, orch)

	return srv.Start(ctx, serveShutdownTimeout)
}

// progressPrinter prints each progress event and, once a stage completes,
// the artifacts the job holds.
func progressPrinter(printer *observability.Printer, registry *jobs.Registry) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		printer.PrintProgress(e)
		if e.Type != pipeline.EventCompleted {
			return
		}
		job, err := registry.Get(e.JobID)
		if err != nil {
			log.Printf("[pipeline] progress: %v", err)
			return
		}
		printer.PrintStageSummary(job)
	}
}
