package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a summary of the library, wanted albums and downloads",
	Long: `Print a Markdown status report: album counts per status, the wanted
list, recent and failed snatches and the most frequent errors of the
event log. Use --out to write the report to a file.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("out", "", "write the report to this file")
	statusCmd.Flags().Int("recent", 10, "number of recent snatches to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := store.Open(s.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	recent, _ := cmd.Flags().GetInt("recent")
	rep, err := report.GenerateStatusReport(db, s.DB, s.EventLog, recent)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return report.WriteMarkdownReport(rep, os.Stdout)
	}
	if err := report.WriteMarkdownFile(rep, out); err != nil {
		return err
	}
	util.SuccessLog("Report saved to: %s", out)
	return nil
}
