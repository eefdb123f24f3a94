package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/uplinkd/git-uplink/auth"
	"github.com/uplinkd/git-uplink/project"
	"github.com/uplinkd/git-uplink/syncer"
)

const metricsNamespace = "uplink"

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("GIT_UPLINK_CONFIG"),
			Value:   "/etc/git-uplink/config.yaml",
			Usage:   "Absolute path to the config file.",
		},
		&cli.BoolFlag{
			Name:    "watch-config",
			Sources: cli.EnvVars("GIT_UPLINK_WATCH_CONFIG"),
			Value:   true,
			Usage:   "Watch config file for changes and reload projects.",
		},
		&cli.StringFlag{
			Name:    "http-bind-address",
			Sources: cli.EnvVars("GIT_UPLINK_HTTP_BIND"),
			Value:   ":9023",
			Usage:   "Address to bind the metrics and webhook HTTP server.",
		},
		&cli.StringFlag{
			Name:    "webhook-secret",
			Sources: cli.EnvVars("GIT_UPLINK_WEBHOOK_SECRET"),
			Usage:   "Shared secret for trigger webhook signature verification.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func main() {
	cmd := &cli.Command{
		Name:  "git-uplink",
		Usage: "git-uplink is a daemon to incrementally replicate local repositories to an uplink server.",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {

			// set log level according to argument
			if v, ok := levelStrings[strings.ToLower(c.String("log-level"))]; ok {
				loggerLevel.Set(v)
			}

			conf, err := parseConfigFile(c.String("config"))
			if err != nil {
				logger.Error("unable to parse uplink config file", "err", err)
				os.Exit(1)
			}

			applyDefaults(conf)
			if err := validateProjects(conf); err != nil {
				logger.Error("invalid config", "err", err)
				os.Exit(1)
			}

			if err := os.MkdirAll(filepath.Dir(conf.Defaults.StorePath), 0o750); err != nil {
				logger.Error("unable to create store directory", "err", err)
				os.Exit(1)
			}
			store, err := project.NewBoltStore(conf.Defaults.StorePath)
			if err != nil {
				logger.Error("unable to open project store", "err", err)
				os.Exit(1)
			}
			defer store.Close()

			var creds auth.Source = auth.None{}
			if conf.Defaults.Auth.PrivateKeyPath != "" {
				creds = auth.NewTokenProvider(
					conf.Defaults.Auth.Issuer,
					conf.Defaults.Auth.PrivateKeyPath,
					conf.Defaults.Auth.TokenTTL,
				)
			}

			syncer.EnableMetrics(metricsNamespace, prometheus.DefaultRegisterer)
			prometheus.MustRegister(configSuccess, configSuccessTime)

			sync := syncer.New(store, creds, conf.Defaults.BatchSize, logger.With("logger", "syncer"))

			// one-time removal of records orphaned while the app was
			// down, before the first seed marks the rest disabled
			cleanupOrphanedProjects(store, conf)

			if !ensureProjects(store, conf) {
				logger.Error("unable to seed projects from config")
				os.Exit(1)
			}

			ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// reload projects on config file change
			go WatchConfig(ctx, c.String("config"), c.Bool("watch-config"), 10*time.Second,
				func(newConfig *Config) bool {
					return ensureProjects(store, newConfig)
				})

			go syncLoop(ctx, sync, store, conf.Defaults.Interval, conf.Defaults.SyncTimeout)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/webhook", &SyncWebhookHandler{
				syncer: sync,
				store:  store,
				secret: c.String("webhook-secret"),
				log:    logger.With("logger", "webhook"),
			})
			server := &http.Server{Addr: c.String("http-bind-address"), Handler: mux}

			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server terminated", "err", err)
					cancel()
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("unable to shut down http server", "err", err)
			}

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}

// syncLoop triggers a sync of every enabled project once per interval.
// Projects are synced sequentially; the engine's single-flight gate drops
// any overlapping trigger from the webhook.
func syncLoop(ctx context.Context, sync *syncer.Syncer, store project.Store, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		projects, err := store.List()
		if err != nil {
			logger.Error("unable to list projects for sync cycle", "err", err)
		}

		for _, p := range projects {
			if !p.SyncEnabled {
				continue
			}

			syncCtx, cancel := context.WithTimeout(ctx, timeout)
			if _, err := sync.Handle(syncCtx, p.ID); err != nil {
				logger.Error("sync failed", "project", p.ID, "err", err)
			}
			cancel()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
