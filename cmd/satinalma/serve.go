package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"satinalma/internal/amqp"
	"satinalma/internal/backend"
	"satinalma/internal/cache"
	"satinalma/internal/cli"
	apphttp "satinalma/internal/http"
	"satinalma/internal/importer"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	"satinalma/internal/services"
	"satinalma/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API",
	Long: `Run the JSON API on PORT.

Exports go to EXPORT_BACKEND with a CSV fallback under EXPORT_DIR. When
AMQP_URL is set, every ledger change is published for satinalma-worker.`,
	Example: `  # Start with an empty ledger
  satinalma serve

  # Resume from the last snapshot and write it back on exit
  satinalma serve --load-snapshot --save-on-exit`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("load-snapshot", false, "Restore the ledger from SNAPSHOT_DB_PATH on start")
	serveCmd.Flags().Bool("save-on-exit", false, "Write the ledger to SNAPSHOT_DB_PATH on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	loadSnapshot, _ := cmd.Flags().GetBool("load-snapshot")
	saveOnExit, _ := cmd.Flags().GetBool("save-on-exit")

	cfg, err := cli.LoadConfig(nil)
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.SignalContext(cmd.Context(), logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	exports, err := backend.NewFactory(logger).CreateExport(ctx, bcfg)
	if err != nil {
		return err
	}
	defer exports.Cleanup()

	im := importer.New(
		importer.WithLogger(logger),
		importer.WithMaxRows(cfg.ImportMaxRows),
		importer.WithHeaderCacheSize(cfg.HeaderCacheSize),
	)
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithImporter(im),
		services.WithExportWriters(exports.Primary, exports.Fallback),
	}

	var ready func(context.Context) error
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithEvents(client))
			ready = client.Ready
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewLedgerService(ledger.New(), opts...)
	if loadSnapshot {
		switch err := svc.LoadSnapshot(ctx, cfg.SnapshotDBPath); {
		case errors.Is(err, storage.ErrNoSnapshot):
			logger.Info("No snapshot to restore", "path", cfg.SnapshotDBPath)
		case err != nil:
			return err
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              ready,
		TrustedProxies:     cfg.TrustedProxies,
	})

	caches := cache.NewManager(logger)
	caches.Register(im.HeaderCache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting satinalma server", "port", cfg.Port, "backend", exports.Name.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, 5*time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if saveOnExit {
		if serr := svc.SaveSnapshot(context.Background(), cfg.SnapshotDBPath); serr != nil {
			logger.Error("Failed to save snapshot", log.FieldError, serr, "path", cfg.SnapshotDBPath)
			err = errors.Join(err, serr)
		}
	}
	if err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
