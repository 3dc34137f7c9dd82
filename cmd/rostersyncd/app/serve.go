package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/api"
	"github.com/xraph/rostersync/daemon"
	"github.com/xraph/rostersync/downstream/chat"
	"github.com/xraph/rostersync/downstream/course"
	"github.com/xraph/rostersync/downstream/meeting"
	"github.com/xraph/rostersync/store"
	"github.com/xraph/rostersync/store/memory"
	"github.com/xraph/rostersync/store/postgres"
	redisstore "github.com/xraph/rostersync/store/redis"
)

const (
	serverReadTimeout = 10 * time.Second
	serverIdleTimeout = 60 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	Long: `Run the recurring sync pass and serve the HTTP API for on-demand
syncs. Requires at least the course platform URL (downstream.course.url).`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := newLogger()
	slog.SetDefault(logger)

	ctx := context.Background()

	st, err := buildStore(ctx, logger)
	if err != nil {
		return err
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	d, err := buildDaemon(st, logger)
	if err != nil {
		return err
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	address := viper.GetString("api.address")
	apiServer := api.NewServer(d.Runner(),
		api.WithLogger(logger),
		api.WithPinger(st),
	)
	srv := &http.Server{
		Addr:        address,
		Handler:     apiServer.Handler(),
		ReadTimeout: serverReadTimeout,
		IdleTimeout: serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", slog.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, d.Service().Config().ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	return d.Stop(shutdownCtx)
}

// buildStore selects the persistence backend from configuration. When
// redis.addr is set, locks are served from Redis in front of the primary
// store.
func buildStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	var primary store.Store
	switch driver := viper.GetString("store.driver"); driver {
	case "memory":
		primary = memory.New()
	case "postgres":
		dsn := viper.GetString("postgres.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("postgres.dsn is required for the postgres store")
		}
		pg, err := postgres.New(ctx, dsn, postgres.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		primary = pg
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	if addr := viper.GetString("redis.addr"); addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		locks := redisstore.New(client, redisstore.WithLogger(logger))
		return store.NewSplit(locks, primary), nil
	}
	return primary, nil
}

// buildDaemon assembles the service and all subsystems from configuration.
func buildDaemon(st store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	cfg := rostersync.DefaultConfig()
	cfg.SyncSchedule = viper.GetString("sync.schedule")
	cfg.Concurrency = viper.GetInt("sync.concurrency")
	if d := viper.GetDuration("sync.lock_ttl"); d > 0 {
		cfg.LockTTL = d
	}
	if d := viper.GetDuration("sync.fleet_lock_ttl"); d > 0 {
		cfg.FleetLockTTL = d
	}
	if d := viper.GetDuration("sync.run_timeout"); d > 0 {
		cfg.RunTimeout = d
	}

	svc, err := rostersync.New(
		rostersync.WithConfig(cfg),
		rostersync.WithLogger(logger),
		rostersync.WithStore(st),
	)
	if err != nil {
		return nil, err
	}

	courseURL := viper.GetString("downstream.course.url")
	if courseURL == "" {
		return nil, fmt.Errorf("downstream.course.url is required")
	}
	opts := []daemon.Option{
		daemon.WithSystem(course.New(courseURL, course.WithLogger(logger))),
	}
	if u := viper.GetString("downstream.chat.url"); u != "" {
		opts = append(opts, daemon.WithSystem(chat.New(u, chat.WithLogger(logger))))
	}
	if u := viper.GetString("downstream.meeting.url"); u != "" {
		opts = append(opts, daemon.WithSystem(meeting.New(u, meeting.WithLogger(logger))))
	}

	return daemon.Build(svc, opts...)
}
