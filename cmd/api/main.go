package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/payment/square"
	"github.com/example/storefront/internal/payment/stripe"
	"github.com/example/storefront/internal/shipping"
	"github.com/example/storefront/internal/webhook"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	verifyMode, err := payment.ParseVerifyMode(cfg.WebhookVerify)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.WithFields(log.Fields{
		"addr":           cfg.HTTPAddr,
		"kafka_brokers":  cfg.KafkaBrokers,
		"kafka_topic":    cfg.KafkaTopic,
		"webhook_verify": string(verifyMode),
	}).Info("starting storefront api")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connecting to postgres failed")
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.WithError(err).Fatal("running migrations failed")
	}
	log.Info("postgres ready")

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	orders := store.NewPostgresOrderStore(db)
	products := store.NewPostgresProductStore(db)
	users := store.NewPostgresUserStore(db)

	jwtService := auth.NewJWTService(cfg.JWTSecret, 15*time.Minute, 7*24*time.Hour)
	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.StoreName, cfg.BaseURL)

	stripeClient := stripe.NewClient(cfg.StripeAPIKey)
	squareClient := square.NewClient(cfg.SquareAccessToken, cfg.SquareLocationID)
	stripeWebhook := stripe.NewWebhook(cfg.StripeWebhookSecret, verifyMode)
	squareWebhook := square.NewWebhook(cfg.SquareWebhookSecret, verifyMode, squareClient)

	receiver := webhook.NewReceiver(orders, producer)

	shippingSvc := shipping.NewService(
		shipping.NewEasyPostClient(cfg.EasyPostAPIKey),
		orders,
		producer,
		shipping.EPAddress{
			Name:    cfg.StoreName,
			Street1: cfg.StoreStreet,
			City:    cfg.StoreCity,
			State:   cfg.StoreState,
			Zip:     cfg.StoreZip,
			Country: "US",
		},
	)

	router := api.NewRouter(
		api.NewHandlers(products, orders, shippingSvc, producer),
		api.NewAuthHandlers(users, jwtService, mailer),
		api.NewCheckoutHandlers(stripeClient, squareClient, cfg.BaseURL),
		api.NewWebhookHandlers(stripeWebhook, squareWebhook, receiver),
		jwtService,
	)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
