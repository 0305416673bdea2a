package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yairfalse/kartta/awsauth"
	"github.com/yairfalse/kartta/inventory"
)

var (
	collectRegions  string
	collectAccounts string
	collectSearch   string
	collectOutput   string
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <service>",
	Short: "Collect inventory for one service and print it",
	Long: `Collect resource inventory for one service across the configured
accounts and regions and print the merged result without persisting it.`,
	Example: `  kartta collect ec2                          # All configured regions
  kartta collect s3 --regions us-east-1       # One region
  kartta collect rds --accounts 111122223333  # One account, assumed role
  kartta collect ec2 --output csv > ec2.csv   # Flattened CSV`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVarP(&collectRegions, "regions", "r", "", "Comma-separated regions (default: configured sweep)")
	collectCmd.Flags().StringVarP(&collectAccounts, "accounts", "a", "", "Comma-separated account ids (default: caller's own)")
	collectCmd.Flags().StringVarP(&collectSearch, "search", "s", "", "Free-text filter over the normalized records")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "json", "Output format: json, csv")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orchestrator, err := buildOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	regions := regionSweep(cfg, collectRegions)
	accounts := awsauth.AccountTargets(splitList(collectAccounts), cfg.Accounts, cfg.RoleName)

	result, err := orchestrator.CollectInventory(cmd.Context(), args[0], regions, accounts, collectSearch)
	if err != nil {
		return err
	}

	for _, diag := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", diag)
	}

	switch collectOutput {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Records)
	case "csv":
		return inventory.WriteCSV(os.Stdout, result.Records)
	default:
		return fmt.Errorf("unknown output format %q", collectOutput)
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
