// Command satinalma-worker mirrors ledger changes into Google Sheets. It
// consumes the events published by satinalma serve and rewrites the ledger
// tab and one tab per touched invoice.
package main

import (
	"context"
	"os"

	"satinalma/internal/amqp"
	"satinalma/internal/backend"
	"satinalma/internal/cli"
	"satinalma/internal/config"
	"satinalma/internal/log"
	"satinalma/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting satinalma-worker")

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	sheets, err := backend.NewSheetsClient(ctx, backend.Config{
		Type:                     backend.SheetsBackend,
		GoogleSpreadsheetID:      cfg.GoogleSpreadsheetID,
		GoogleSheetName:          cfg.GoogleSheetName,
		GoogleServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(sheets, cfg.GoogleSheetName, logger)

	if err := amqpClient.ConsumeLedgerEvents(ctx, mirror.HandleEvent); err != nil && !cli.IsShutdown(ctx) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
