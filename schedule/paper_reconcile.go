package main

import (
	"os"

	"quantlab/internal/jobs"
	dbconfig "quantlab/pkg/config"
	"quantlab/pkg/engine"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

func main() {
	os.MkdirAll("logs", 0755)
	file, err := os.OpenFile("logs/paper_reconcile.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logger.SetOutput(file)
	} else {
		logger.Warn("Failed to open log file, logging to stdout")
	}

	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logger.InfoLevel)
	logger.Info("> Starting paper run reconciler...")

	dbconfig.InitDB()
	if dbconfig.DB == nil {
		logger.Fatal("Failed to initialize database")
		return
	}

	ec := engine.NewClient("")

	c := cron.New(cron.WithSeconds())

	// Every minute
	_, err = c.AddFunc("0 * * * * *", func() {
		if err := jobs.ReconcilePaperRuns(dbconfig.DB, ec); err != nil {
			logger.Errorf("> Reconcile pass failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("> Failed to schedule reconcile task: %v", err)
	}

	c.Start()

	select {}
}
