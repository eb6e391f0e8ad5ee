package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/HermYeh/face-attendance/internal/attendance"
)

// AttendanceHandler exposes the attendance ledger over HTTP.
type AttendanceHandler struct {
	ledger *attendance.Ledger
}

// NewAttendanceHandler creates the handler.
func NewAttendanceHandler(ledger *attendance.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger}
}

// Report returns attendance records filtered by the optional start_date,
// end_date and name query parameters.
func (h *AttendanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.ledger.Report(q.Get("start_date"), q.Get("end_date"), q.Get("name"))
	if err != nil {
		log.Printf("attendance report failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// Summary returns the daily summary for the optional date query parameter
// (today by default).
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.DailySummary(r.URL.Query().Get("date"))
	if err != nil {
		log.Printf("daily summary failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// CheckedIn lists everyone currently on premises.
func (h *AttendanceHandler) CheckedIn(w http.ResponseWriter, r *http.Request) {
	in, err := h.ledger.CheckedInNow()
	if err != nil {
		log.Printf("checked-in query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load checked-in employees")
		return
	}
	if in == nil {
		in = []attendance.CheckedIn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(in),
		"employees": in,
	})
}

type nameRequest struct {
	Name string `json:"name"`
}

// CheckIn records a manual check-in.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ok, err := h.ledger.CheckIn(req.Name)
	if err != nil {
		log.Printf("check-in failed for %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "check-in failed")
		return
	}
	if !ok {
		respondJSON(w, http.StatusConflict, map[string]any{
			"checked_in": false,
			"reason":     "already checked in today",
		})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"checked_in": true})
}

// CheckOut records a manual check-out.
func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ok, err := h.ledger.CheckOut(req.Name)
	if err != nil {
		log.Printf("check-out failed for %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "check-out failed")
		return
	}
	if !ok {
		respondJSON(w, http.StatusConflict, map[string]any{
			"checked_out": false,
			"reason":      "no open check-in today",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"checked_out": true})
}

type deleteCheckInRequest struct {
	Name        string `json:"name"`
	CheckInTime string `json:"check_in_time"`
}

// DeleteCheckIn removes an attendance record for administrative correction.
func (h *AttendanceHandler) DeleteCheckIn(w http.ResponseWriter, r *http.Request) {
	var req deleteCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.CheckInTime == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ok, err := h.ledger.DeleteCheckIn(req.Name, req.CheckInTime)
	if err != nil {
		log.Printf("delete check-in failed for %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusBadRequest, "failed to delete check-in")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no matching check-in record")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ExportCSV streams the attendance report as a CSV download.
func (h *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance.csv"`)
	if err := h.ledger.ExportCSV(w, q.Get("start_date"), q.Get("end_date")); err != nil {
		log.Printf("csv export failed: %v", err)
	}
}
