package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"audiolicense/internal/certificate"
)

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Work with certificate serials offline",
}

var serialParseCmd = &cobra.Command{
	Use:     "parse [serial]",
	Short:   "Split a certificate serial into prefix, year, order and item",
	Example: `  licensectl serial parse PFX-2024-00010-00003`,
	Args:    cobra.ExactArgs(1),
	RunE:    serialParseCmdRun,
}

type serialParseFlags struct {
	output string
}

var serialParseArgs = serialParseFlags{output: "text"}

func init() {
	serialParseCmd.Flags().StringVarP(&serialParseArgs.output, "output", "o", serialParseArgs.output,
		"Output format, one of: text, json.")
	serialCmd.AddCommand(serialParseCmd)
	rootCmd.AddCommand(serialCmd)
}

type serialOutput struct {
	Serial  string `json:"serial"`
	Prefix  string `json:"prefix"`
	Year    int    `json:"year"`
	OrderID int64  `json:"order_id"`
	ItemID  int64  `json:"order_item_id"`
}

func serialParseCmdRun(cmd *cobra.Command, args []string) error {
	s, err := certificate.ParseSerial(args[0])
	if err != nil {
		return fmt.Errorf("invalid serial: %w", err)
	}
	out := serialOutput{
		Serial:  s.String(),
		Prefix:  s.Prefix,
		Year:    s.Year,
		OrderID: s.OrderID,
		ItemID:  s.ItemID,
	}

	w := cmd.OutOrStdout()
	switch serialParseArgs.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "text":
		_, err = fmt.Fprintf(w, "serial:   %s\nprefix:   %s\nyear:     %d\norder:    %d\nitem:     %d\n",
			out.Serial, out.Prefix, out.Year, out.OrderID, out.ItemID)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", serialParseArgs.output)
	}
}
