// Package attendance is the durable ledger of check-in and check-out events.
// The camera loop, the web API and the CLI all write through it; it is the
// only component that touches the database.
package attendance

// Layouts used for all dates and timestamps stored in the ledger.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "2006-01-02 15:04:05"
)

// Employee is a registered person. Only active employees count toward the
// daily summary.
type Employee struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id,omitempty"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
}

// Record is one attendance row: at most one per (name, date). CheckOutTime is
// empty and TotalHours zero while the person is still checked in.
type Record struct {
	Name         string  `json:"name"`
	Date         string  `json:"date"`
	CheckInTime  string  `json:"check_in_time"`
	CheckOutTime string  `json:"check_out_time,omitempty"`
	TotalHours   float64 `json:"total_hours,omitempty"`
	Status       string  `json:"status"`
}

// CheckedIn is a person currently on premises: checked in today with no
// check-out yet.
type CheckedIn struct {
	Name        string `json:"name"`
	CheckInTime string `json:"check_in_time"`
}

// DailySummary aggregates one day of attendance against the active roster.
type DailySummary struct {
	Date           string  `json:"date"`
	TotalEmployees int     `json:"total_employees"`
	Present        int     `json:"present_employees"`
	Absent         int     `json:"absent_employees"`
	AttendanceRate float64 `json:"attendance_rate"`
	AverageHours   float64 `json:"average_hours"`
}
