package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export attendance records to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()

			if err := ledger.ExportCSV(f, mustGetString(cmd, "start"), mustGetString(cmd, "end")); err != nil {
				return err
			}
			fmt.Printf("Attendance data exported to %s\n", args[0])
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import check-ins from a legacy register-log CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			stat, err := f.Stat()
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions64(stat.Size(),
				progressbar.OptionSetDescription("Importing"),
				progressbar.OptionShowBytes(true),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)

			reader := progressbar.NewReader(f, bar)
			imported, err := ledger.ImportCSV(&reader)
			fmt.Println()
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d check-ins from %s\n", imported, args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
}
