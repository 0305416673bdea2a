package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/kartta/awsauth"
	"github.com/yairfalse/kartta/inventory"
)

var (
	refreshRegions  string
	refreshAccounts string
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [service]",
	Short: "Collect inventory and persist snapshots",
	Long: `Collect fresh inventory and replace the stored snapshot for every
(service, account, region) partition that produced records.

With no service argument, every supported service is refreshed.`,
	Example: `  kartta refresh              # Refresh every service
  kartta refresh ec2          # Refresh one service
  kartta refresh s3 -r us-east-1,eu-west-1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVarP(&refreshRegions, "regions", "r", "", "Comma-separated regions (default: configured sweep)")
	refreshCmd.Flags().StringVarP(&refreshAccounts, "accounts", "a", "", "Comma-separated account ids (default: configured accounts)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	refresher := inventory.NewRefresher(orchestrator, store)

	regions := regionSweep(cfg, refreshRegions)
	accounts := awsauth.AccountTargets(splitList(refreshAccounts), cfg.Accounts, cfg.RoleName)
	if len(accounts) == 0 {
		accounts = cfg.Accounts
	}

	var results []*inventory.RefreshResult
	if len(args) == 1 {
		result, err := refresher.RefreshService(cmd.Context(), args[0], regions, accounts)
		if err != nil {
			return err
		}
		results = append(results, result)
	} else {
		results, err = refresher.RefreshAll(cmd.Context(), regions, accounts)
		if err != nil {
			return err
		}
	}

	for _, result := range results {
		for _, diag := range result.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s\n", diag)
		}
		fmt.Printf("%s: %d records across %d partitions\n", result.Service, result.Records, result.Partitions)
	}
	return nil
}
