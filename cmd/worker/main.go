// The worker binary polls the job queue, runs analysis jobs against the
// analysis service, and escalates high-severity findings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/analysis"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/config"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/escalation"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/jobqueue"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/natsmsg"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/worker"
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

	repo, err := repository.NewPostgresRepository(context.Background(), cfg.Database.Postgres.ConnString())
	if err != nil {
		log.Error("failed to connect to postgres", logging.Err(err))
		os.Exit(1)
	}
	defer repo.Close()

	var natsClient *natsmsg.Client
	var pub natsmsg.Publisher
	if cfg.NATS.Enabled {
		natsCfg := natsmsg.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name + "-worker"
		natsClient, err = natsmsg.NewClient(natsCfg, log)
		if err != nil {
			log.Error("failed to connect to nats", logging.Err(err))
			os.Exit(1)
		}
		defer natsClient.Drain()
		pub = natsClient
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

	channels := []escalation.Channel{}
	if natsClient != nil {
		channels = append(channels, escalation.NewNotificationChannel(natsClient))
	}
	if cfg.Ticketing.URL != "" {
		channels = append(channels,
			escalation.NewTicketChannel(cfg.Ticketing.URL, cfg.Ticketing.APIKey, cfg.Ticketing.Timeout))
	}
	channels = append(channels, escalation.NewBlocklistChannel(repo, blockCache, pub, log))

	jobSvc := jobqueue.NewService(repo, log)
	escSvc := escalation.NewService(repo, pub, log, channels...)
	analyzer := analysis.NewHTTPClient(cfg.Analysis.URL, cfg.Analysis.Timeout)

	w := worker.New(jobSvc, repo, analyzer, escSvc,
		cfg.Worker.Name, cfg.Worker.PollInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker")
	w.Stop()
	log.Info("worker stopped")
}
