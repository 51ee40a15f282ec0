package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/httpapi"
	"inferd/internal/service"
	"inferd/internal/source"
	"inferd/internal/store"
)

func buildServeCmd(opts *rootOpts) *cobra.Command {
	var (
		configPath  string
		flagCfg     config.Config
		corsOrigins string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inference daemon",
		Example: "  inferd serve --models-dir ~/.inferd/models --max-quota-bytes 50000000000\n" +
			"  inferd serve --config /etc/inferd/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			mergeFlagConfig(cmd, &cfg, flagCfg)
			if cfg.Addr == "" {
				cfg.Addr = opts.Addr
			}
			if cfg.LogLevel == "" {
				cfg.LogLevel = opts.LogLevel
			}
			cfg.Normalize()
			return runServe(cfg, splitCSV(corsOrigins))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml)")
	cmd.Flags().StringVar(&flagCfg.ModelsDir, "models-dir", "", "Directory for stored model artifacts")
	cmd.Flags().Int64Var(&flagCfg.MaxQuotaBytes, "max-quota-bytes", 0, "Disk quota for stored artifacts (0=unlimited)")
	cmd.Flags().StringVar(&flagCfg.DefaultModel, "default-model", "", "Model id used when a request omits one")
	cmd.Flags().IntVar(&flagCfg.ResidencyLimit, "residency-limit", 0, "Models kept resident in memory (0=default, <0=unbounded)")
	cmd.Flags().IntVar(&flagCfg.BatchSize, "batch-size", 0, "Requests per inference batch")
	cmd.Flags().IntVar(&flagCfg.BatchWindowMS, "batch-window-ms", 0, "Max wait before dispatching a partial batch")
	cmd.Flags().IntVar(&flagCfg.PoolSize, "pool-size", 0, "Pre-allocated scratch contexts")
	cmd.Flags().IntVar(&flagCfg.MaxConcurrentTasks, "max-tasks", 0, "Background task concurrency ceiling")
	cmd.Flags().StringSliceVar(&flagCfg.Preload, "preload", nil, "Model ids to load at startup")
	cmd.Flags().StringVar(&flagCfg.SourceDir, "source-dir", "", "Directory to pull model artifacts from")
	cmd.Flags().IntVar(&flagCfg.EngineCtxSize, "engine-ctx-size", 0, "Engine context size in tokens")
	cmd.Flags().IntVar(&flagCfg.EngineThreads, "engine-threads", 0, "Engine worker threads")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated origins; empty disables CORS")
	return cmd
}

// mergeFlagConfig overlays explicitly-set flags onto the file config so
// flags always win.
func mergeFlagConfig(cmd *cobra.Command, cfg *config.Config, flags config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("models-dir") {
		cfg.ModelsDir = flags.ModelsDir
	}
	if set("max-quota-bytes") {
		cfg.MaxQuotaBytes = flags.MaxQuotaBytes
	}
	if set("default-model") {
		cfg.DefaultModel = flags.DefaultModel
	}
	if set("residency-limit") {
		cfg.ResidencyLimit = flags.ResidencyLimit
	}
	if set("batch-size") {
		cfg.BatchSize = flags.BatchSize
	}
	if set("batch-window-ms") {
		cfg.BatchWindowMS = flags.BatchWindowMS
	}
	if set("pool-size") {
		cfg.PoolSize = flags.PoolSize
	}
	if set("max-tasks") {
		cfg.MaxConcurrentTasks = flags.MaxConcurrentTasks
	}
	if set("preload") {
		cfg.Preload = flags.Preload
	}
	if set("source-dir") {
		cfg.SourceDir = flags.SourceDir
	}
	if set("engine-ctx-size") {
		cfg.EngineCtxSize = flags.EngineCtxSize
	}
	if set("engine-threads") {
		cfg.EngineThreads = flags.EngineThreads
	}
}

func runServe(cfg config.Config, corsOrigins []string) error {
	logger := newLogger(cfg.LogLevel)

	dir, err := config.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return err
	}
	st, err := store.Open(dir, cfg.MaxQuotaBytes)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	eng := engine.NewLlama(cfg.EngineCtxSize, cfg.EngineThreads)

	var src source.Source
	if cfg.SourceDir != "" {
		srcDir, err := config.ExpandHome(cfg.SourceDir)
		if err != nil {
			return err
		}
		src = source.NewDir(srcDir)
	}

	svc := service.New(service.Config{
		Store:          st,
		Engine:         eng,
		Source:         src,
		DefaultModel:   cfg.DefaultModel,
		ResidencyLimit: cfg.ResidencyLimit,
		BatchSize:      cfg.BatchSize,
		BatchWindow:    time.Duration(cfg.BatchWindowMS) * time.Millisecond,
		PoolSize:       cfg.PoolSize,
		MaxTasks:       cfg.MaxConcurrentTasks,
		PruneInterval:  time.Duration(cfg.PruneIntervalS) * time.Second,
		Preload:        cfg.Preload,
		Logger:         logger,
	})
	svc.Start()
	defer svc.Close()

	if len(corsOrigins) > 0 {
		httpapi.SetCORSOptions(true, corsOrigins,
			[]string{"GET", "PUT", "POST", "DELETE"},
			[]string{"Content-Type"})
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc, logger)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", dir).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	// Stop handing new requests to batchers, then drain connections.
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
