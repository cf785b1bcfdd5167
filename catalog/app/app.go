package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/config"
	"github.com/Astemirdum/library-catalog/catalog/internal/events"
	"github.com/Astemirdum/library-catalog/catalog/internal/handler"
	"github.com/Astemirdum/library-catalog/catalog/internal/repository"
	"github.com/Astemirdum/library-catalog/catalog/internal/server"
	"github.com/Astemirdum/library-catalog/catalog/internal/service"
	"github.com/Astemirdum/library-catalog/catalog/migrations"
	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg config.Config) {
	log := logger.NewLogger(cfg.Log, "catalog")
	defer log.Sync() //nolint:errcheck

	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	store, err := assets.NewStore(cfg.Assets, log)
	if err != nil {
		log.Fatal("assets", zap.Error(err))
	}
	creds := auth.NewCredentials(cfg.Auth)

	publisher := events.Nop()
	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		publisher = events.NewPublisher(producer, cfg.Kafka.Topic, log)
	}

	svc := service.NewService(repo, creds, store, publisher, log)
	h := handler.New(svc, svc, svc, creds, store, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server", zap.Error(err))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("producer close", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("db close", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}
