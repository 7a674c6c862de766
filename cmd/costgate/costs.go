package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/costgate/adapters/sqlite"
	"github.com/artpar/costgate/config"
	"github.com/artpar/costgate/domain/money"
	"github.com/spf13/cobra"
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Inspect archived cost records",
	Long: `Inspect cost records from the write-behind archive.

The archive only contains data when archive.enabled is true in the
configuration. The in-memory session ledger itself is not inspectable
from the CLI; query GET /api/cost on a running server for that.

Examples:
  costgate costs summary --user=u1
  costgate costs global
  costgate costs global --since-days=7
  costgate costs recent --user=u1 --limit=20`,
}

var costsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-service spend for a user",
	RunE:  runCostsSummary,
}

var costsGlobalCmd = &cobra.Command{
	Use:   "global",
	Short: "Show total spend across all users",
	RunE:  runCostsGlobal,
}

var costsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent cost records for a user",
	RunE:  runCostsRecent,
}

var (
	costsUserID    string
	costsLimit     int
	costsSinceDays int
)

func init() {
	rootCmd.AddCommand(costsCmd)

	costsCmd.AddCommand(costsSummaryCmd)
	costsCmd.AddCommand(costsGlobalCmd)
	costsCmd.AddCommand(costsRecentCmd)

	costsSummaryCmd.Flags().StringVar(&costsUserID, "user", "", "user ID (required)")

	costsGlobalCmd.Flags().IntVar(&costsSinceDays, "since-days", 0, "only count records from the last N days (0 = current month)")

	costsRecentCmd.Flags().StringVar(&costsUserID, "user", "", "user ID (required)")
	costsRecentCmd.Flags().IntVar(&costsLimit, "limit", 20, "number of records to show")
}

func openArchive() (*sqlite.DB, *sqlite.CostArchive, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, sqlite.NewCostArchive(db), nil
}

func runCostsSummary(cmd *cobra.Command, args []string) error {
	if costsUserID == "" {
		return fmt.Errorf("--user is required")
	}

	db, archive, err := openArchive()
	if err != nil {
		return err
	}
	defer db.Close()

	totals, err := archive.ServiceTotals(context.Background(), costsUserID)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Printf("No archived records for %s\n", costsUserID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tTOTAL (USD)")

	var total money.Amount
	for service, amount := range totals {
		fmt.Fprintf(w, "%s\t%s\n", service, amount)
		total = total.Add(amount)
	}
	fmt.Fprintf(w, "\t\n")
	fmt.Fprintf(w, "total\t%s\n", total)
	return w.Flush()
}

func runCostsGlobal(cmd *cobra.Command, args []string) error {
	db, archive, err := openArchive()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	label := "since " + since.Format("2006-01-02")
	if costsSinceDays > 0 {
		since = now.AddDate(0, 0, -costsSinceDays)
		label = fmt.Sprintf("last %d days", costsSinceDays)
	}

	total, err := archive.GlobalTotal(context.Background(), since)
	if err != nil {
		return err
	}

	fmt.Printf("Global spend (%s): %s USD\n", label, total)
	return nil
}

func runCostsRecent(cmd *cobra.Command, args []string) error {
	if costsUserID == "" {
		return fmt.Errorf("--user is required")
	}

	db, archive, err := openArchive()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := archive.RecentRecords(context.Background(), costsUserID, costsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No archived records for %s\n", costsUserID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSERVICE\tAMOUNT (USD)")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.CreatedAt.Format(time.RFC3339), rec.Service, rec.Amount)
	}
	return w.Flush()
}
