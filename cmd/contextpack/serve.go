package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	contexthttp "github.com/fyrsmithlabs/contextpack/internal/http"
	"github.com/fyrsmithlabs/contextpack/internal/ingest"
)

type serveOptions struct {
	watch string
	host  string
	port  int
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the context HTTP API",
		Long: `Start the HTTP API. With --watch, the directory is ingested at startup
and new or modified files are added as they are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.watch, "watch", "", "directory to ingest and watch")
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger.Underlying()

	if opts.watch != "" {
		w, err := startWatch(ctx, a, opts.watch)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	httpCfg := &contexthttp.Config{
		Host:      a.cfg.Server.Host,
		Port:      a.cfg.Server.Port,
		BodyLimit: a.cfg.Server.BodyLimit,
	}
	if opts.host != "" {
		httpCfg.Host = opts.host
	}
	if opts.port != 0 {
		httpCfg.Port = opts.port
	}
	srv, err := contexthttp.NewServer(a.manager, logger.Named("http"), httpCfg)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return <-errCh
}

// startWatch ingests dir and then watches it for new content.
func startWatch(ctx context.Context, a *app, dir string) (*ingest.Watcher, error) {
	cfg := a.ingestConfig()
	ids, skipped, err := ingest.IngestDir(ctx, a.manager, dir, cfg)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", dir, err)
	}
	for _, s := range skipped {
		a.logger.Warn(ctx, "file skipped", zap.String("path", s.Path), zap.Error(s.Err))
	}
	a.logger.Info(ctx, "directory ingested", zap.String("path", dir), zap.Int("documents", len(ids)))

	w, err := ingest.NewWatcher(dir, a.manager, cfg, a.logger.Underlying().Named("ingest"))
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	w.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.Events():
				if ev.Err != nil {
					a.logger.Warn(ctx, "watched file not ingested", zap.String("path", ev.Path), zap.Error(ev.Err))
				}
			}
		}
	}()
	return w, nil
}
