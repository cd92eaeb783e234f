// The soclite server hosts the event ingest API, the correlation
// scheduler, and the job queue and escalation endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/config"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/correlator"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/escalation"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/events"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/handlers"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/jobqueue"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/natsmsg"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/scheduler"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.SetDefault()

	connString := cfg.Database.Postgres.ConnString()

	// Run database migrations
	log.Info("running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Error("failed to initialize migrations", logging.Err(err))
		os.Exit(1)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("failed to run migrations", logging.Err(err))
		os.Exit(1)
	}

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Error("failed to connect to postgres", logging.Err(err))
		os.Exit(1)
	}
	defer repo.Close()

	// NATS powers the notification channel; the server still runs
	// without it, escalations just record the channel failure.
	var natsClient *natsmsg.Client
	if cfg.NATS.Enabled {
		natsCfg := natsmsg.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name
		natsClient, err = natsmsg.NewClient(natsCfg, log)
		if err != nil {
			log.Error("failed to connect to nats", logging.Err(err))
			os.Exit(1)
		}
		defer natsClient.Drain()
	}

	var blockCache *escalation.BlockCache
	if cfg.Redis.Enabled {
		blockCache, err = escalation.NewBlockCache(cfg.Redis.URL)
		if err != nil {
			log.Error("failed to connect to redis", logging.Err(err))
			os.Exit(1)
		}
		defer blockCache.Close()
	}

	var pub natsmsg.Publisher
	if natsClient != nil {
		pub = natsClient
	}

	channels := []escalation.Channel{}
	if natsClient != nil {
		channels = append(channels, escalation.NewNotificationChannel(natsClient))
	}
	if cfg.Ticketing.URL != "" {
		channels = append(channels,
			escalation.NewTicketChannel(cfg.Ticketing.URL, cfg.Ticketing.APIKey, cfg.Ticketing.Timeout))
	}
	channels = append(channels, escalation.NewBlocklistChannel(repo, blockCache, pub, log))

	eventSvc := events.NewService(repo, log)
	jobSvc := jobqueue.NewService(repo, log)
	escSvc := escalation.NewService(repo, pub, log, channels...)
	corr := correlator.New(repo, log)

	// Scheduled correlation runs alongside the manual API trigger;
	// generation is idempotent so the two never conflict.
	sched := scheduler.New(corr, cfg.Correlator.Interval, log)
	go sched.Start(context.Background())

	handler := handlers.NewHandler(eventSvc, corr, jobSvc, escSvc, repo, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("soclite server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logging.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", logging.Err(err))
		os.Exit(1)
	}

	log.Info("server stopped")
}
