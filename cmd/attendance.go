package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <name>",
	Short: "Record a manual check-in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			ok, err := ledger.CheckIn(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s already checked in today\n", args[0])
				return nil
			}
			fmt.Printf("%s checked in\n", args[0])
			return nil
		})
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <name>",
	Short: "Record a manual check-out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			ok, err := ledger.CheckOut(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("No open check-in for %s today\n", args[0])
				return nil
			}
			fmt.Printf("%s checked out\n", args[0])
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the attendance report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			records, err := ledger.Report(
				mustGetString(cmd, "start"),
				mustGetString(cmd, "end"),
				mustGetString(cmd, "name"),
			)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No attendance records")
				return nil
			}
			for _, r := range records {
				out := ""
				if r.CheckOutTime != "" {
					out = fmt.Sprintf("out %s (%.2fh)", r.CheckOutTime, r.TotalHours)
				} else {
					out = "still in"
				}
				fmt.Printf("%s  %s  in %s  %s\n", r.Date, r.Name, r.CheckInTime, out)
			}
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the daily attendance summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			s, err := ledger.DailySummary(mustGetString(cmd, "date"))
			if err != nil {
				return err
			}
			fmt.Printf("Date:            %s\n", s.Date)
			fmt.Printf("Total employees: %d\n", s.TotalEmployees)
			fmt.Printf("Present:         %d\n", s.Present)
			fmt.Printf("Absent:          %d\n", s.Absent)
			fmt.Printf("Attendance rate: %.1f%%\n", s.AttendanceRate)
			fmt.Printf("Average hours:   %.2f\n", s.AverageHours)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(checkinCmd, checkoutCmd, reportCmd, summaryCmd)

	reportCmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
	reportCmd.Flags().String("name", "", "Filter by employee name")

	summaryCmd.Flags().String("date", "", "Date (YYYY-MM-DD), today by default")
}
