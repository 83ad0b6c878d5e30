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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shindakun/btweet/internal/apiclient"
	"github.com/shindakun/btweet/internal/auth"
	"github.com/shindakun/btweet/internal/config"
	"github.com/shindakun/btweet/internal/logging"
	"github.com/shindakun/btweet/internal/login"
	"github.com/shindakun/btweet/internal/metrics"
	"github.com/shindakun/btweet/internal/querycache"
	"github.com/shindakun/btweet/internal/storage"
	"github.com/shindakun/btweet/internal/version"
	"github.com/shindakun/btweet/internal/web"
	"github.com/shindakun/btweet/internal/web/handlers"
)

const purgeInterval = time.Hour

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "btweet",
	Short:         "B-Tweet web frontend",
	Version:       version.GetFullVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the login page and signed-in home page",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
	},
}

func init() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "./config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfig, "path to config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "btweet:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting B-Tweet", zap.String("version", version.GetVersion()))

	// Initialize database
	db, err := storage.InitDB(cfg.Session.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", cfg.Session.DBPath))

	sessionManager := auth.InitSessions(
		cfg.Session.Secret,
		cfg.Session.MaxAge,
		cfg.CookieSecure(),
		auth.ParseSameSite(cfg.Session.CookieSameSite),
		db,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	g, gctx := errgroup.WithContext(ctx)

	cacheOpts := []querycache.Option{querycache.WithMetrics(m), querycache.WithLogger(logger)}
	var bus *querycache.RedisBus
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		bus = querycache.NewRedisBus(client, cfg.Cache.RedisChannel, logger)
		cacheOpts = append(cacheOpts, querycache.WithPublisher(bus))
	}
	cache := querycache.New(cfg.Cache.Size, cfg.Cache.TTL, cacheOpts...)

	if bus != nil {
		listener, err := bus.Subscribe(ctx, cache)
		if err != nil {
			return err
		}
		defer listener.Close()
		g.Go(func() error {
			if err := listener.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info("sharing cache invalidations over redis", zap.String("channel", cfg.Cache.RedisChannel))
	}

	api, err := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		return err
	}
	logger.Info("auth API configured", zap.String("base_url", api.BaseURL()))

	pages := login.NewRegistry(cfg.Login.MaxPages, cfg.Login.PageTTL, func(clientID string) *login.Coordinator {
		return login.NewCoordinator(api, cache, querycache.AuthUser(clientID), m, logger.With(zap.String("client_id", clientID)))
	})

	renderer, err := handlers.NewRenderer()
	if err != nil {
		return err
	}
	h := handlers.New(sessionManager, pages, cache, renderer, logger, version.GetVersion())

	router := web.NewRouter(web.Deps{
		Config:   cfg,
		Handlers: h,
		Sessions: sessionManager,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})

	// HTTP server configuration
	srv := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		logger.Info("server starting", zap.String("url", cfg.GetBaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := sessionManager.PurgeExpired()
				if err != nil {
					logger.Warn("failed to purge expired sessions", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Info("purged expired sessions", zap.Int64("count", n))
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
