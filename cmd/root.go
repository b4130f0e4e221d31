// Package cmd defines the quotescrawler CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/app"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/logging"
)

type appKeyType struct{}

// overrides are flag values applied on top of the loaded configuration.
type overrides struct {
	cfgFile  string
	dsn      string
	driver   string
	maxPages int
	renderJS bool
	port     int
}

// newLogger is swapped in tests to keep output quiet.
var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var ov overrides
	cmd := &cobra.Command{
		Use:   "quotescrawler",
		Short: "Crawl, store and query quotes and author biographies.",
		Long: `quotescrawler walks the listing pages of a quotes site, resolves every
author's biography, writes both as JSON corpus files, loads them into SQLite
or Postgres and answers questions about the loaded data from the command
line or over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(ov.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := ov.apply(cmd, &cfg); err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), appKeyType{}, app.New(cfg, logger))
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKeyType{}).(*app.App); ok {
				if err := a.Close(); err != nil {
					zap.L().Warn("shutdown incomplete", zap.Error(err))
				}
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&ov.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.StringVar(&ov.driver, "db-driver", "", "store driver: sqlite or postgres")
	flags.StringVar(&ov.dsn, "dsn", "", "store DSN (SQLite path or Postgres URL)")

	cmd.AddCommand(
		newCrawlCmd(&ov),
		newLoadCmd(),
		newRunCmd(&ov),
		newQueryCmd(),
		newExportCmd(),
		newServeCmd(&ov),
	)
	return cmd
}

func (ov overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("db-driver") {
		cfg.DB.Driver = ov.driver
	}
	if changed("dsn") {
		cfg.DB.DSN = ov.dsn
	}
	if changed("max-pages") {
		cfg.Crawler.MaxPages = ov.maxPages
	}
	if changed("render-js") {
		cfg.Source.RenderJS = ov.renderJS
	}
	if changed("port") {
		cfg.Server.Port = ov.port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
