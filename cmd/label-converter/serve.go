// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/label-converter/internal/cache"
	"github.com/pdiddy/label-converter/internal/convert"
	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and upload page",
	Long: `Serve exposes GET /health, POST /convert (multipart field "file") and
POST /convert/batch (multipart field "files"), plus a browser upload page on /.

When cache.redis_addr is set, results are cached in Redis and rate limit
counters are shared there; otherwise both stay in memory (no caching).
The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if err := cfg.Conversion.Validate(); err != nil {
		return err
	}

	deps := server.Deps{
		Converter:   convert.New(),
		Defaults:    cfg.Conversion,
		Config:      cfg.Server,
		RateStorage: server.NewRateStorage(cfg.Cache),
	}

	if cfg.Cache.Enabled() {
		c := cache.New(cfg.Cache)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := c.Ping(ctx)
		cancel()
		if err != nil {
			logging.Warn("Result cache unavailable, continuing without it", "addr", cfg.Cache.RedisAddr, "error", err)
			c.Close()
		} else {
			logging.Info("Caching results in Redis", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL.String())
			deps.Cache = c
			defer c.Close()
		}
	}

	journal, err := openJournal(cfg.History)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
		deps.History = journal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.New(deps)
	return server.Run(ctx, app, cfg.Server.Addr(), cfg.Server.ShutdownTimeout)
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default from config: 0.0.0.0)")
	serveCmd.Flags().Int("port", 0, "listen port (default from config: 8000)")
	serveCmd.Flags().Int("rate-limit", 0, "conversions per client per interval (0 disables)")
	serveCmd.Flags().String("redis", "", "Redis address for the result cache and rate limiter")
	serveCmd.Flags().Bool("no-ui", false, "do not serve the upload page on /")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
	_ = viper.BindPFlag("cache.redis_addr", serveCmd.Flags().Lookup("redis"))

	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			viper.Set("server.ui", false)
		}
	}

	rootCmd.AddCommand(serveCmd)
}
