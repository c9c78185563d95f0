package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"audiolicense/pkg/contracts/domain"
)

var verifyCmd = &cobra.Command{
	Use:     "verify [serial]",
	Short:   "Verify a certificate serial against the licensing server",
	Example: `  licensectl verify PFX-2024-00010-00003 --server https://licensing.example.com`,
	Args:    cobra.ExactArgs(1),
	RunE:    verifyCmdRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var res domain.VerificationResult
	if err := client.do(ctx, "GET", "/api/verify/"+url.PathEscape(args[0]), nil, &res); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !res.Valid {
		if _, err := fmt.Fprintf(w, "✗ %s is not valid: %s\n", args[0], res.Reason); err != nil {
			return err
		}
		return fmt.Errorf("certificate %s did not verify", args[0])
	}

	d := res.Details
	_, err = fmt.Fprintf(w, "✔ %s is valid\nasset:     %s\nlicense:   %s\nissued:    %s\npurchaser: %s\n",
		d.Serial, d.AssetTitle, d.TierName, d.IssuedAt.Format("2006-01-02"), d.PurchaserEmail)
	return err
}
