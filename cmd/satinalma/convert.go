package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"satinalma/internal/config"
	"satinalma/internal/importer"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	"satinalma/internal/services"
	"satinalma/internal/sheets/csv"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.csv>",
	Short: "Import a purchase CSV and write the normalized ledger export",
	Long: `Read a purchase list (comma or semicolon separated, Turkish or English
headers), group it into invoices and write the ledger export CSV with every
derived column filled in.`,
	Example: `  satinalma convert alislar.csv --out ledger.csv
  satinalma convert alislar.csv --sort -total_net --snapshot ledger.db`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <snapshot.db>",
	Short: "Print the ledger export of a snapshot file as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	rootCmd.AddCommand(convertCmd, dumpCmd)

	for _, c := range []*cobra.Command{convertCmd, dumpCmd} {
		c.Flags().String("out", "", "Output file (default: stdout)")
		c.Flags().String("sort", "date", "Sort column, prefix with - for descending")
	}
	convertCmd.Flags().String("snapshot", "", "Also save the imported ledger to this SQLite file")
}

// offlineService logs to stderr so that stdout carries only CSV.
func offlineService() *services.LedgerService {
	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentImport,
		Output:    os.Stderr,
	})
	return services.NewLedgerService(ledger.New(),
		services.WithLogger(logger),
		services.WithImporter(importer.New(
			importer.WithLogger(logger),
			importer.WithMaxRows(cfg.ImportMaxRows),
			importer.WithHeaderCacheSize(cfg.HeaderCacheSize),
		)),
	)
}

func runConvert(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	svc := offlineService()
	report, _, err := svc.Import(ctx, csv.NewReader(f))
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d rows read, %d skipped, %d invoices, %d lines\n",
		report.Rows, report.Skipped, report.Invoices, report.Lines)

	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		if err := svc.SaveSnapshot(ctx, path); err != nil {
			return err
		}
	}
	return writeExport(cmd, svc)
}

func runDump(cmd *cobra.Command, args []string) error {
	svc := offlineService()
	if err := svc.LoadSnapshot(cmd.Context(), args[0]); err != nil {
		return err
	}
	return writeExport(cmd, svc)
}

func writeExport(cmd *cobra.Command, svc *services.LedgerService) error {
	raw, _ := cmd.Flags().GetString("sort")
	desc := len(raw) > 0 && raw[0] == '-'
	if desc {
		raw = raw[1:]
	}
	key, ok := ledger.ParseSortKey(raw)
	if !ok {
		return fmt.Errorf("unknown sort column %q", raw)
	}

	var out io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return csv.Encode(out, ledger.Header(), ledger.ExportRecords(svc.Rows(ledger.Filter{}, key, desc)))
}
