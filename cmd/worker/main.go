package main

import (
	"encoding/json"
	"log"

	"quantlab/internal/jobs"
	"quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	ec := engine.NewClient("")

	// Reconcile orphaned ACTIVE runs once a minute
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc("0 * * * * *", func() {
		if err := jobs.ReconcilePaperRuns(config.DB, ec); err != nil {
			logrus.Errorf("Reconcile pass failed: %v", err)
		}
	}); err != nil {
		logrus.Fatal("Failed to schedule reconcile task: ", err)
	}
	c.Start()
	defer c.Stop()

	// Create consumer for the backtest jobs queue
	msgConsumer, err := config.NewConsumer(config.BacktestJobsQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	logrus.Info("Backtest worker started, waiting for messages...")

	// Start consuming messages
	err = msgConsumer.Consume(func(msg []byte) error {
		var job jobs.BacktestJob
		if err := json.Unmarshal(msg, &job); err != nil {
			logrus.Errorf("Failed to unmarshal job message: %v", err)
			// Malformed payloads never become valid; drop them
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"backtest_id": job.BacktestID,
		}).Info("Received backtest job")

		return jobs.RunBacktest(config.DB, ec, job)
	})

	if err != nil {
		log.Fatal("Failed to start consumer: ", err)
	}
}
