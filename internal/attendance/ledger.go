package attendance

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger wraps the SQLite attendance database with thread-safe access.
//
// Check-in and check-out are idempotent per person and day: repeating an
// operation that already happened is reported with a false boolean, never an
// error. Errors are reserved for the database actually failing.
type Ledger struct {
	conn *sql.DB
	mu   sync.RWMutex
	now  func() time.Time
}

// Open creates and initializes the attendance database.
func Open(dbPath string) (*Ledger, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; serialize at the pool level.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	l := &Ledger{conn: conn, now: time.Now}

	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in_time TEXT,
		check_out_time TEXT,
		total_hours REAL,
		status TEXT DEFAULT 'present',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		employee_id TEXT UNIQUE,
		department TEXT,
		position TEXT,
		is_active BOOLEAN DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_name_date ON attendance(name, date);
	`

	_, err := l.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// CheckIn records a check-in for name at the current time. Returns false if
// the person already checked in today.
func (l *Ledger) CheckIn(name string) (bool, error) {
	return l.CheckInAt(name, l.now())
}

// CheckInAt records a check-in at an explicit time. The attendance day is
// derived from that time.
func (l *Ledger) CheckInAt(name string, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	date := at.Format(DateLayout)

	var id int64
	err := l.conn.QueryRow(
		`SELECT id FROM attendance WHERE name = ? AND date = ? AND check_in_time IS NOT NULL`,
		name, date,
	).Scan(&id)
	if err == nil {
		return false, nil // already checked in today
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to query attendance: %w", err)
	}

	_, err = l.conn.Exec(
		`INSERT INTO attendance (name, date, check_in_time) VALUES (?, ?, ?)`,
		name, date, at.Format(TimeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record check-in: %w", err)
	}
	return true, nil
}

// CheckOut records a check-out for name at the current time and computes the
// hours worked. Returns false if there is no open check-in today or the
// check-out would not be after the check-in.
func (l *Ledger) CheckOut(name string) (bool, error) {
	return l.CheckOutAt(name, l.now())
}

// CheckOutAt records a check-out at an explicit time.
func (l *Ledger) CheckOutAt(name string, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	date := at.Format(DateLayout)

	var id int64
	var checkIn string
	var checkOut sql.NullString
	err := l.conn.QueryRow(
		`SELECT id, check_in_time, check_out_time FROM attendance
		 WHERE name = ? AND date = ? AND check_in_time IS NOT NULL`,
		name, date,
	).Scan(&id, &checkIn, &checkOut)
	if err == sql.ErrNoRows {
		return false, nil // never checked in today
	}
	if err != nil {
		return false, fmt.Errorf("failed to query attendance: %w", err)
	}
	if checkOut.Valid {
		return false, nil // already checked out
	}

	checkInAt, err := time.ParseInLocation(TimeLayout, checkIn, at.Location())
	if err != nil {
		return false, fmt.Errorf("invalid stored check-in time %q: %w", checkIn, err)
	}
	if !at.After(checkInAt) {
		return false, nil // a shift must have positive duration
	}

	totalHours := at.Sub(checkInAt).Seconds() / 3600

	_, err = l.conn.Exec(
		`UPDATE attendance SET check_out_time = ?, total_hours = ? WHERE id = ?`,
		at.Format(TimeLayout), totalHours, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record check-out: %w", err)
	}
	return true, nil
}

// DeleteCheckIn removes the attendance record matching name and the exact
// check-in timestamp. The attendance day is derived from the timestamp itself,
// so older records can be corrected too. Returns false if no such record
// exists.
func (l *Ledger) DeleteCheckIn(name, checkInTime string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	at, err := time.Parse(TimeLayout, checkInTime)
	if err != nil {
		return false, fmt.Errorf("invalid check-in time %q: %w", checkInTime, err)
	}

	res, err := l.conn.Exec(
		`DELETE FROM attendance WHERE name = ? AND date = ? AND check_in_time = ?`,
		name, at.Format(DateLayout), checkInTime,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete check-in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Report returns attendance records, newest day first, people alphabetical
// within a day. Empty filters are ignored.
func (l *Ledger) Report(startDate, endDate, name string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `SELECT name, date, COALESCE(check_in_time, ''), COALESCE(check_out_time, ''),
	                 COALESCE(total_hours, 0), status
	          FROM attendance WHERE 1=1`
	var params []any

	if startDate != "" {
		query += " AND date >= ?"
		params = append(params, startDate)
	}
	if endDate != "" {
		query += " AND date <= ?"
		params = append(params, endDate)
	}
	if name != "" {
		query += " AND name = ?"
		params = append(params, name)
	}
	query += " ORDER BY date DESC, name"

	rows, err := l.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.Date, &r.CheckInTime, &r.CheckOutTime, &r.TotalHours, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// EmployeeAttendance returns one person's records for the last N days.
func (l *Ledger) EmployeeAttendance(name string, days int) ([]Record, error) {
	end := l.now()
	start := end.AddDate(0, 0, -days)
	return l.Report(start.Format(DateLayout), end.Format(DateLayout), name)
}

// DailySummary aggregates attendance for one day (today if date is empty)
// against the active employee roster.
func (l *Ledger) DailySummary(date string) (DailySummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if date == "" {
		date = l.now().Format(DateLayout)
	}

	summary := DailySummary{Date: date}

	err := l.conn.QueryRow(`SELECT COUNT(*) FROM employees WHERE is_active = 1`).
		Scan(&summary.TotalEmployees)
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to count employees: %w", err)
	}

	err = l.conn.QueryRow(
		`SELECT COUNT(DISTINCT name) FROM attendance WHERE date = ? AND check_in_time IS NOT NULL`,
		date,
	).Scan(&summary.Present)
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to count present employees: %w", err)
	}

	var avg sql.NullFloat64
	err = l.conn.QueryRow(
		`SELECT AVG(total_hours) FROM attendance WHERE date = ? AND total_hours IS NOT NULL`,
		date,
	).Scan(&avg)
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to average hours: %w", err)
	}

	summary.Absent = summary.TotalEmployees - summary.Present
	if summary.TotalEmployees > 0 {
		summary.AttendanceRate = float64(summary.Present) / float64(summary.TotalEmployees) * 100
	}
	summary.AverageHours = avg.Float64

	return summary, nil
}

// CheckedInNow lists everyone checked in today without a check-out yet.
func (l *Ledger) CheckedInNow() ([]CheckedIn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.conn.Query(
		`SELECT name, check_in_time FROM attendance
		 WHERE date = ? AND check_in_time IS NOT NULL AND check_out_time IS NULL
		 ORDER BY name`,
		l.now().Format(DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query checked-in employees: %w", err)
	}
	defer rows.Close()

	var out []CheckedIn
	for rows.Next() {
		var c CheckedIn
		if err := rows.Scan(&c.Name, &c.CheckInTime); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasRecord reports whether any attendance row exists for (name, date).
// Used by the CSV importer to keep re-imports idempotent.
func (l *Ledger) HasRecord(name, date string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var id int64
	err := l.conn.QueryRow(
		`SELECT id FROM attendance WHERE name = ? AND date = ?`, name, date,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query attendance: %w", err)
	}
	return true, nil
}

// AddEmployee registers a new employee. Returns false if the name or employee
// id is already taken.
func (l *Ledger) AddEmployee(e Employee) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.conn.Exec(
		`INSERT INTO employees (name, employee_id, department, position)
		 VALUES (?, NULLIF(?, ''), ?, ?)`,
		e.Name, e.EmployeeID, e.Department, e.Position,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add employee: %w", err)
	}
	return true, nil
}

// Employees lists all active employees, alphabetically.
func (l *Ledger) Employees() ([]Employee, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.conn.Query(
		`SELECT id, name, COALESCE(employee_id, ''), COALESCE(department, ''), COALESCE(position, '')
		 FROM employees WHERE is_active = 1 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.EmployeeID, &e.Department, &e.Position); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeactivateEmployee removes a person from the active roster but keeps their
// attendance history. Returns false if no active employee has that name.
func (l *Ledger) DeactivateEmployee(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.conn.Exec(
		`UPDATE employees SET is_active = 0 WHERE name = ? AND is_active = 1`, name,
	)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate employee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEmployee removes an employee and all of their attendance records.
// Returns false if the employee does not exist.
func (l *Ledger) DeleteEmployee(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var id int64
	err := l.conn.QueryRow(`SELECT id FROM employees WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query employee: %w", err)
	}

	tx, err := l.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM attendance WHERE name = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete attendance records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM employees WHERE name = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete employee: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// isUniqueViolation matches sqlite's UNIQUE constraint failures without
// depending on driver error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}
