package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/giygas/sukl-mcp/config"
	"github.com/giygas/sukl-mcp/data"
	"github.com/giygas/sukl-mcp/documents"
	"github.com/giygas/sukl-mcp/handlers"
	"github.com/giygas/sukl-mcp/health"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/lookup"
	"github.com/giygas/sukl-mcp/opendata"
	"github.com/giygas/sukl-mcp/restapi"
	"github.com/giygas/sukl-mcp/scheduler"
	"github.com/giygas/sukl-mcp/server"
	"github.com/giygas/sukl-mcp/tools"
	"github.com/giygas/sukl-mcp/validation"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "4.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "sukl-mcp",
		Short:         "MCP server for the Czech SÚKL medicine registry",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or streamable HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logging.Close()

			if transport != "" {
				cfg.Transport = transport
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&transport, "transport", "t", "", "transport to serve on: stdio or http (default from MCP_TRANSPORT)")
	return cmd
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and parse the open data, then print a quality report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logging.Close()

			return runFetch(cmd.Context(), cfg)
		},
	}
}

// setup loads the environment and configuration and starts the logger
func setup() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		// If failed, try loading from executable directory
		if ex, exErr := os.Executable(); exErr == nil {
			_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
	})
	return cfg, nil
}

func newLoader(cfg *config.Config) *opendata.Loader {
	return opendata.NewLoader(opendata.Config{
		DLPURL:          cfg.OpenDataURL,
		PharmacyURL:     cfg.PharmacyURL,
		CacheDir:        cfg.CacheDir,
		DataDir:         cfg.DataDir,
		DownloadTimeout: cfg.DownloadTimeout,
		MaxArchiveSize:  cfg.MaxArchiveSize,
	})
}

func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now())

	validator := validation.NewDataValidator()
	loader := newLoader(cfg)
	api := restapi.NewClient(restapi.Config{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.APITimeout,
		MaxRetries: cfg.APIRetries,
		RetryDelay: time.Second,
		CacheTTL:   cfg.APICacheTTL,
		CacheSize:  cfg.APICacheSize,
		RateLimit:  cfg.APIRateLimit,
		RateWindow: cfg.APIRateWindow,
	}, nil)

	svc := lookup.NewService(store, validator,
		lookup.WithAPI(api),
		lookup.WithDocuments(documents.NewExtractor(documents.DefaultConfig(), nil)),
		lookup.WithReadiness(func(ctx context.Context) error {
			return store.EnsureLoaded(ctx, loader, validator)
		}),
		lookup.WithVersion(version),
	)
	checker := health.NewHealthChecker(store,
		health.WithAPI(api),
		health.WithRefreshTimes(cfg.RefreshSchedule()),
	)

	sched := scheduler.NewScheduler(scheduler.Config{
		Schedule:    cfg.RefreshSchedule(),
		InitialLoad: true,
	}, store, loader, validator)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	mcpServer := tools.NewServer(svc, checker, tools.Options{
		Version:        version,
		CallsPerSecond: float64(cfg.ToolRateLimit),
	})

	logging.Info("Starting SÚKL MCP server",
		"version", version,
		"transport", cfg.Transport,
		"env", cfg.Env.String(),
	)

	if cfg.Transport == config.TransportStdio {
		if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio transport: %w", err)
		}
		logging.Info("Stdio session ended")
		return nil
	}

	srv := server.NewServer(cfg, mcpServer, handlers.NewHTTPHandler(svc, checker, validator))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runFetch(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ds, err := newLoader(cfg).Load(ctx)
	if err != nil {
		return err
	}
	report := validation.NewDataValidator().ReportDataQuality(ds)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "medicines\t%d\n", len(ds.Medicines))
	fmt.Fprintf(w, "substances\t%d\n", len(ds.Substances))
	fmt.Fprintf(w, "compositions\t%d\n", len(ds.Compositions))
	fmt.Fprintf(w, "atc groups\t%d\n", len(ds.ATCGroups))
	fmt.Fprintf(w, "documents\t%d\n", len(ds.Documents))
	fmt.Fprintf(w, "prices\t%d\n", len(ds.Prices))
	fmt.Fprintf(w, "pharmacies\t%d\n", len(ds.Pharmacies))
	fmt.Fprintf(w, "duplicate codes\t%d\n", len(report.DuplicateCodes))
	fmt.Fprintf(w, "without composition\t%d\n", report.MedicinesWithoutComposition)
	fmt.Fprintf(w, "without atc\t%d\n", report.MedicinesWithoutATC)
	fmt.Fprintf(w, "orphan compositions\t%d\n", report.CompositionsUnknownMedicine+report.CompositionsUnknownSubstance)
	fmt.Fprintf(w, "orphan prices\t%d\n", report.PricesUnknownMedicine)
	fmt.Fprintf(w, "load time\t%s\n", time.Since(start).Round(time.Millisecond))
	return w.Flush()
}
