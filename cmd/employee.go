package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/config"
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage the employee roster",
}

var employeeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new employee",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			ok, err := ledger.AddEmployee(attendance.Employee{
				Name:       args[0],
				EmployeeID: mustGetString(cmd, "id"),
				Department: mustGetString(cmd, "department"),
				Position:   mustGetString(cmd, "position"),
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("Employee %s already exists\n", args[0])
				return nil
			}
			fmt.Printf("Employee %s added\n", args[0])
			return nil
		})
	},
}

var employeeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active employees",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			employees, err := ledger.Employees()
			if err != nil {
				return err
			}
			if len(employees) == 0 {
				fmt.Println("No employees registered")
				return nil
			}
			for _, e := range employees {
				line := e.Name
				if e.EmployeeID != "" {
					line += " (" + e.EmployeeID + ")"
				}
				if e.Department != "" {
					line += " - " + e.Department
				}
				fmt.Println(line)
			}
			return nil
		})
	},
}

var employeeAttendanceCmd = &cobra.Command{
	Use:   "attendance <name>",
	Short: "Print one employee's recent attendance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			records, err := ledger.EmployeeAttendance(args[0], mustGetInt(cmd, "days"))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No attendance records for %s\n", args[0])
				return nil
			}
			for _, r := range records {
				out := "still in"
				if r.CheckOutTime != "" {
					out = fmt.Sprintf("out %s (%.2fh)", r.CheckOutTime, r.TotalHours)
				}
				fmt.Printf("%s  in %s  %s\n", r.Date, r.CheckInTime, out)
			}
			return nil
		})
	},
}

var employeeDeactivateCmd = &cobra.Command{
	Use:   "deactivate <name>",
	Short: "Remove an employee from the active roster, keeping history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			ok, err := ledger.DeactivateEmployee(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("No active employee named %s\n", args[0])
				return nil
			}
			fmt.Printf("Employee %s deactivated\n", args[0])
			return nil
		})
	},
}

var employeeRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete an employee and all of their attendance records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *attendance.Ledger) error {
			ok, err := ledger.DeleteEmployee(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("Employee %s not found\n", args[0])
				return nil
			}
			fmt.Printf("Employee %s and all their records deleted\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(employeeCmd)
	employeeCmd.AddCommand(employeeAddCmd, employeeListCmd, employeeAttendanceCmd, employeeDeactivateCmd, employeeRemoveCmd)

	employeeAddCmd.Flags().String("id", "", "External employee id")
	employeeAddCmd.Flags().String("department", "", "Department")
	employeeAddCmd.Flags().String("position", "", "Position")

	employeeAttendanceCmd.Flags().Int("days", 30, "How many days back to report")
}

// withLedger opens the attendance database for a one-shot CLI operation.
func withLedger(fn func(*attendance.Ledger) error) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	ledger, err := attendance.Open(cfg.Attendance.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening attendance database: %w", err)
	}
	defer ledger.Close()
	return fn(ledger)
}
