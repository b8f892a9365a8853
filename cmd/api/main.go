package main

import (
	"log"
	"os"

	"quantlab/internal/handlers"
	"quantlab/internal/relay"
	"quantlab/internal/routes"
	"quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"
)

func main() {
	// Load .env if present; real deployments use actual env vars
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	config.InitDB()

	// SQL migrations cover what AutoMigrate cannot change in place
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		config.ExecuteMigrations()
	}

	// Initialize RabbitMQ (optional, will log warning if not configured)
	var jobsPub *config.Publisher
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer func() {
			if config.RabbitMQ != nil {
				config.RabbitMQ.Close()
			}
		}()

		var err error
		jobsPub, err = config.NewPublisher()
		if err != nil {
			log.Fatal("Create publisher failed:", err)
		}
		defer jobsPub.Close()
		log.Println("RabbitMQ initialized successfully")
	} else {
		log.Println("RabbitMQ not configured, backtests will run inline")
	}

	// Engine client and the relay wiring
	ec := engine.NewClient("")
	registry := relay.NewRegistry()
	coordinator := relay.NewCoordinator(config.DB, registry)

	// Set up router
	r := routes.SetupRouter(routes.Handlers{
		Strategy: handlers.NewStrategyHandler(ec),
		Backtest: handlers.NewBacktestHandler(ec, jobsPub),
		Paper:    handlers.NewPaperHandler(ec),
		Event:    handlers.NewPaperEventHandler(coordinator),
		WS:       handlers.NewWSHandler(registry),
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
