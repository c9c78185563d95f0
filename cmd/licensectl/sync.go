package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiv1 "audiolicense/pkg/contracts/api/v1"
	"audiolicense/pkg/contracts/domain"
)

var syncCmd = &cobra.Command{
	Use:     "sync [asset id]",
	Short:   "Synchronize the commerce product of an asset with the license catalog",
	Example: `  licensectl sync track-1 --api-key $LICENSING_API_KEY`,
	Args:    cobra.ExactArgs(1),
	RunE:    syncCmdRun,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncCmdRun(cmd *cobra.Command, args []string) error {
	if rootArgs.apiKey == "" {
		return fmt.Errorf("an admin API key is required, set --api-key or LICENSING_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var res domain.SyncResult
	if err := client.do(ctx, "POST", "/api/commerce/synchronize", apiv1.SynchronizeRequest{AssetID: args[0]}, &res); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(w, "product %s (%s): %d created, %d updated, %d deleted\n",
		res.Product.ProductID, res.Product.Type, res.Created, res.Updated, res.Deleted); err != nil {
		return err
	}
	for _, v := range res.Variations {
		if _, err := fmt.Fprintf(w, "  %-24s %s  %s\n", v.TierSlug, v.Price.StringFixed(2), v.VariationID); err != nil {
			return err
		}
	}
	if res.Partial() {
		for _, f := range res.Failures {
			if _, err := fmt.Fprintf(w, "✗ %s %s: %s\n", f.Step, f.TierID, f.Error); err != nil {
				return err
			}
		}
		return fmt.Errorf("synchronization of %s was partial, %d steps failed", args[0], len(res.Failures))
	}
	return nil
}
