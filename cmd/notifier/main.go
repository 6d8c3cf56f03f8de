package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/notification"
)

// Event payloads are self-contained, so the notifier runs with no database
// connection at all.
const consumerGroup = "email-notifier"

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}

	log.WithFields(log.Fields{
		"kafka_brokers": cfg.KafkaBrokers,
		"kafka_topic":   cfg.KafkaTopic,
		"group":         consumerGroup,
		"smtp":          cfg.SMTPHost + ":" + cfg.SMTPPort,
	}).Info("starting notifier")

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.StoreName, cfg.BaseURL)
	handler := notification.NewHandler(mailer, cfg.OwnerEmail)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Info("consuming order events")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			log.WithError(err).Fatal("consumer failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
}
