package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HermYeh/face-attendance/internal/attendance"
)

// EmployeesHandler manages the employee roster.
type EmployeesHandler struct {
	ledger *attendance.Ledger
}

// NewEmployeesHandler creates the handler.
func NewEmployeesHandler(ledger *attendance.Ledger) *EmployeesHandler {
	return &EmployeesHandler{ledger: ledger}
}

// List returns all active employees.
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.ledger.Employees()
	if err != nil {
		log.Printf("employee list failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load employees")
		return
	}
	if employees == nil {
		employees = []attendance.Employee{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(employees),
		"employees": employees,
	})
}

// Create registers a new employee.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var e attendance.Employee
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil || e.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ok, err := h.ledger.AddEmployee(e)
	if err != nil {
		log.Printf("employee create failed for %s: %v", sanitizeForLog(e.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to add employee")
		return
	}
	if !ok {
		respondError(w, http.StatusConflict, "employee already exists")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"created": true})
}

// Deactivate removes an employee from the active roster, keeping history.
func (h *EmployeesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := h.ledger.DeactivateEmployee(name)
	if err != nil {
		log.Printf("employee deactivate failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to deactivate employee")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}

// Delete removes an employee and all of their attendance records.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ok, err := h.ledger.DeleteEmployee(name)
	if err != nil {
		log.Printf("employee delete failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "employee not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Attendance returns one employee's recent attendance (last 30 days by
// default).
func (h *EmployeesHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	records, err := h.ledger.EmployeeAttendance(name, 30)
	if err != nil {
		log.Printf("employee attendance failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"count":   len(records),
		"records": records,
	})
}
