package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/config"
	"github.com/fyrsmithlabs/contextpack/internal/ingest"
	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

type buildOptions struct {
	query     string
	maxTokens int
	verbose   bool
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build PATH...",
		Short: "Print the assembled context for a query",
		Long: `Ingest files and directories, then print the context assembled for --query.

Directories are read recursively in lexical order; only files with the
configured extensions are ingested.

Examples:
  # Query a directory of notes
  contextpack build --query "heat pumps" ./notes

  # Use a smaller budget and a config file
  contextpack build --config contextpack.toml --max-tokens 200 --query wind a.md b.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "query to rank chunks against")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "token budget (default from configuration)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "keep configured log level")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runBuild(cmd *cobra.Command, paths []string, opts buildOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// stdout carries the context, so logs stay quiet unless asked for.
	quiet := func(c *config.Config) {
		if !opts.verbose {
			c.Logging.Level = "error"
		}
	}
	a, err := newApp(ctx, configPath, quiet)
	if err != nil {
		return err
	}
	defer a.close()

	if err := ingestPaths(ctx, a, paths); err != nil {
		return err
	}

	var qopts []orchestrator.QueryOption
	if opts.maxTokens != 0 {
		qopts = append(qopts, orchestrator.WithMaxContextSize(opts.maxTokens))
	}
	out, err := a.manager.GenerateContext(ctx, opts.query, qopts...)
	if err != nil {
		return fmt.Errorf("generating context: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// ingestPaths adds every file and directory in paths, in argument order.
func ingestPaths(ctx context.Context, a *app, paths []string) error {
	cfg := a.ingestConfig()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		if info.IsDir() {
			ids, skipped, err := ingest.IngestDir(ctx, a.manager, p, cfg)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", p, err)
			}
			for _, s := range skipped {
				a.logger.Warn(ctx, "file skipped", zap.String("path", s.Path), zap.Error(s.Err))
			}
			a.logger.Info(ctx, "directory ingested", zap.String("path", p), zap.Int("documents", len(ids)))
			continue
		}

		doc, err := ingest.LoadFile(p, cfg)
		if err != nil {
			return err
		}
		if _, err := a.manager.AddDocument(ctx, doc.Content, doc.Metadata); err != nil {
			return fmt.Errorf("ingesting %s: %w", p, err)
		}
	}
	return nil
}
