package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"satinalma/internal/core"
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute the prices of one line",
	Long: `Compute unit net, unit VAT-inclusive, totals and VAT amount for one line.

Numbers are read in either convention: "1.234,56" and "1234.56" are the
same value.`,
	Example: `  satinalma calc --qty 3 --price "1.250,00" --discount 10 --vat 20
  satinalma calc --qty 3 --price 1250 --vat 20 --json`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

var deriveCmd = &cobra.Command{
	Use:   "derive <unit_net|unit_vat_incl> <value>",
	Short: "Solve the discount (or price) that yields a target net or gross price",
	Example: `  # Which discount turns a 100 list price into 82,50 net?
  satinalma derive unit_net "82,50" --price 100 --vat 20`,
	Args: cobra.ExactArgs(2),
	RunE: runDerive,
}

func init() {
	for _, c := range []*cobra.Command{calcCmd, deriveCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("qty", "1", "Quantity")
		c.Flags().String("price", "0", "Unit price before discount")
		c.Flags().String("discount", "0", "Discount rate in percent")
		c.Flags().String("vat", "0", "VAT rate in percent")
		c.Flags().Bool("json", false, "Print JSON instead of a table")
	}
}

func pricingFromFlags(cmd *cobra.Command) core.Pricing {
	get := func(name string) core.RawInput {
		v, _ := cmd.Flags().GetString(name)
		return core.RawInput(v)
	}
	return core.Pricing{
		Quantity:     get("qty").Value(),
		UnitPrice:    get("price").Value(),
		DiscountRate: get("discount").Value(),
		VATRate:      get("vat").Value(),
	}.Normalize()
}

func runCalc(cmd *cobra.Command, args []string) error {
	p := pricingFromFlags(cmd)
	asJSON, _ := cmd.Flags().GetBool("json")
	return printLine(cmd.OutOrStdout(), p, asJSON)
}

func runDerive(cmd *cobra.Command, args []string) error {
	p, err := core.Resolve(pricingFromFlags(cmd), core.DerivedField(args[0]), core.ParseNumber(args[1]))
	if err != nil {
		return fmt.Errorf("%w (use %s or %s)", err, core.FieldUnitNet, core.FieldUnitVatIncl)
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	return printLine(cmd.OutOrStdout(), p, asJSON)
}

func printLine(w io.Writer, p core.Pricing, asJSON bool) error {
	c := core.ComputeLine(p)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			core.Pricing
			core.LineComputed
		}{p, c})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Quantity", core.FormatDisplay(p.Quantity, 4)},
		{"Unit price", core.FormatDisplay(p.UnitPrice, 2)},
		{"Discount %", core.FormatDisplay(p.DiscountRate, 4)},
		{"VAT %", core.FormatDisplay(p.VATRate, 2)},
		{"Unit net", core.FormatDisplay(c.UnitNet, 2)},
		{"Unit VAT incl.", core.FormatDisplay(c.UnitVatIncl, 2)},
		{"Total net", core.FormatDisplay(c.TotalNet, 2)},
		{"VAT amount", core.FormatDisplay(c.VATAmount, 2)},
		{"Total VAT incl.", core.FormatDisplay(c.TotalVatIncl, 2)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.label, r.value)
	}
	return tw.Flush()
}
