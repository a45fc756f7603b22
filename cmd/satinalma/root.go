package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"satinalma/internal/cli"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "satinalma",
	Short: "Purchasing ledger: supplier invoices, line pricing and exports",
	Long: `satinalma keeps a ledger of supplier invoices and their lines, derives
net and VAT-inclusive prices, spreads invoice discounts over lines and
exports the result as CSV, Google Sheets or SQLite.

Settings come from the environment; a .env file in the working directory
is loaded first when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return cli.LoadEnvFile(envFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file to load before reading the environment")
}
