package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"cadence/classifier"
	"cadence/config"
	"cadence/generator"
	"cadence/ingest"
	"cadence/middleware"
	"cadence/models"
	"cadence/repository"
	"cadence/routes"
	"cadence/sequence"
	"cadence/suppression"
	"cadence/transport"
	"cadence/worker"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.CreateDefaultSequences(config.DB); err != nil {
		logger.Fatalf("Failed to seed default sequences: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Data access
	contacts := repository.NewContactStore(config.DB)
	states := repository.NewSequenceStore(config.DB)
	suppressions := repository.NewSuppressionStore(config.DB)
	inbound := repository.NewInboundStore(config.DB)

	// Services
	registry := suppression.NewRegistry(suppressions, states, contacts, logger)

	completer, err := generator.NewBedrockCompleter(ctx, config.AppConfig.Bedrock.Region, config.AppConfig.Bedrock.ModelID)
	if err != nil {
		logger.Fatalf("Failed to initialize content generation: %v", err)
	}
	gateway := generator.NewGateway(completer, generator.DefaultRetryPolicy(), logger)

	mailer := transport.NewSMTPMailer(transport.SMTPConfig{
		Host:       config.AppConfig.SMTP.Host,
		Port:       config.AppConfig.SMTP.Port,
		Username:   config.AppConfig.SMTP.Username,
		Password:   config.AppConfig.SMTP.Password,
		FromEmail:  config.AppConfig.SMTP.FromEmail,
		FromName:   config.AppConfig.SMTP.FromName,
		Encryption: config.AppConfig.SMTP.Encryption,
	}, logger)

	fetcher := transport.NewIMAPFetcher(transport.IMAPConfig{
		Host:       config.AppConfig.IMAP.Host,
		Port:       config.AppConfig.IMAP.Port,
		Username:   config.AppConfig.IMAP.Username,
		Password:   config.AppConfig.IMAP.Password,
		Mailbox:    config.AppConfig.IMAP.Mailbox,
		Encryption: config.AppConfig.IMAP.Encryption,
	}, logger)

	engine := sequence.NewEngine(states, contacts, registry, gateway, mailer, config.AppConfig.SendBatchSize, logger)
	ingestor := ingest.NewIngestor(fetcher, classifier.NewKeywordClassifier(), registry, inbound, contacts, states, config.AppConfig.IMAP.Mailbox, logger)

	// Background workers
	go worker.NewSequenceWorker(engine, config.AppConfig.SequenceInterval, logger).Start(ctx)
	go worker.NewIngestWorker(ingestor, config.AppConfig.IngestInterval, logger).Start(ctx)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(app, routes.Dependencies{
		DB:       config.DB,
		Engine:   engine,
		Registry: registry,
		Ingestor: ingestor,
		Logger:   logger,
	})

	// Start server
	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
