package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"localchat/internal/config"
	"localchat/internal/httpapi"
	"localchat/internal/manager"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	addr         string
	modelsDir    string
	budgetMB     int
	maxQueue     int
	maxBodyBytes int64
	cors         bool
	corsOrigins  string
	corsMethods  string
	corsHeaders  string
	model        string
}

func newServeCmd(root *rootOpts) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, f.model, log)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :8080 (default LOCALCHAT_ADDR or :8080)")
	fl.StringVar(&f.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files (default ~/models/llm)")
	fl.IntVar(&f.budgetMB, "budget-mb", 0, "Memory budget in MB for the loaded model (0=unlimited)")
	fl.IntVar(&f.maxQueue, "max-queue", 0, "Requests allowed to wait behind the running generation")
	fl.Int64Var(&f.maxBodyBytes, "max-body-bytes", 0, "Maximum request body size in bytes (default 1 MiB)")
	fl.BoolVar(&f.cors, "cors", false, "Enable CORS")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	fl.StringVar(&f.corsMethods, "cors-methods", "", "Comma-separated allowed methods")
	fl.StringVar(&f.corsHeaders, "cors-headers", "", "Comma-separated allowed headers")
	fl.StringVar(&f.model, "model", "", "Model file name in the models directory to load at startup")
	return cmd
}

// applyServeFlags lets explicitly set flags override file values.
func applyServeFlags(cmd *cobra.Command, f *serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if changed("budget-mb") {
		cfg.MemoryBudgetMB = f.budgetMB
	}
	if changed("max-queue") {
		cfg.MaxQueueDepth = f.maxQueue
	}
	if changed("max-body-bytes") {
		cfg.MaxBodyBytes = f.maxBodyBytes
	}
	if changed("cors") {
		cfg.CORSEnabled = f.cors
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(f.corsOrigins)
	}
	if changed("cors-methods") {
		cfg.CORSMethods = splitCSV(f.corsMethods)
	}
	if changed("cors-headers") {
		cfg.CORSHeaders = splitCSV(f.corsHeaders)
	}
}

// serve runs the HTTP server and the catalog watcher until ctx is done.
func serve(ctx context.Context, cfg config.Config, initialModel string, log zerolog.Logger) error {
	mgr, err := newManager(cfg, cfg.ModelsDir, nil, log)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, mgr.Catalog().Dir()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	errCh := make(chan error, 1)
	wg.Go(func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("localchat listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	})
	wg.Go(func() {
		if err := mgr.Catalog().Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("catalog watcher stopped; /models refreshes on lookup only")
		}
	})
	if initialModel != "" {
		wg.Go(func() { loadInitial(ctx, mgr, initialModel, log) })
	}

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	default:
		return nil
	}
}

func loadInitial(ctx context.Context, mgr *manager.Manager, name string, log zerolog.Logger) {
	art, err := mgr.LoadByName(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("model", name).Msg("initial model load failed")
		return
	}
	log.Info().Str("model", art.Name).Str("size", art.HumanSize()).Msg("model loaded")
}
