package attendance

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// registerLogLayout is the timestamp format of legacy register-log CSV files.
const registerLogLayout = "2006/01/02, 15:04:05"

// ExportCSV writes attendance records in the date range to w. Empty dates
// export everything.
func (l *Ledger) ExportCSV(w io.Writer, startDate, endDate string) error {
	records, err := l.Report(startDate, endDate, "")
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Date", "Check In Time", "Check Out Time", "Total Hours", "Status"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range records {
		hours := ""
		if r.TotalHours != 0 {
			hours = strconv.FormatFloat(r.TotalHours, 'f', -1, 64)
		}
		row := []string{r.Name, r.Date, r.CheckInTime, r.CheckOutTime, hours, r.Status}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ImportCSV reads a legacy register log ("Name","Datetime" columns, one row
// per sighting) and records the first sighting of each person per day as a
// check-in. Rows for "Unknown", rows that fail to parse, and days the ledger
// already has a record for are skipped. Returns the number of check-ins
// imported.
func (l *Ledger) ImportCSV(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // legacy files are not always rectangular

	header, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	nameCol, dtCol := -1, -1
	for i, col := range header {
		switch col {
		case "Name":
			nameCol = i
		case "Datetime":
			dtCol = i
		}
	}
	if nameCol < 0 || dtCol < 0 {
		return 0, fmt.Errorf("missing Name/Datetime columns in header %v", header)
	}

	imported := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("failed to read row: %w", err)
		}
		if nameCol >= len(row) || dtCol >= len(row) {
			continue
		}

		name := row[nameCol]
		if name == "" || name == "Unknown" {
			continue
		}

		at, err := time.Parse(registerLogLayout, row[dtCol])
		if err != nil {
			continue // malformed timestamp, skip the row
		}

		exists, err := l.HasRecord(name, at.Format(DateLayout))
		if err != nil {
			return imported, err
		}
		if exists {
			continue
		}

		ok, err := l.CheckInAt(name, at)
		if err != nil {
			return imported, err
		}
		if ok {
			imported++
		}
	}
	return imported, nil
}
