package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/HermYeh/face-attendance/internal/training"
)

// EnrollmentHandler runs camera enrollment sessions: the capture loop
// collects face photos for a new identity, then the trainer rebuilds the
// embedding store and the person is registered as an employee.
type EnrollmentHandler struct {
	trainer *training.Trainer
	roster  training.EmployeeRoster
}

// NewEnrollmentHandler creates the handler.
func NewEnrollmentHandler(trainer *training.Trainer, roster training.EmployeeRoster) *EnrollmentHandler {
	return &EnrollmentHandler{trainer: trainer, roster: roster}
}

// Start begins an enrollment session. The response returns immediately; the
// running capture loop feeds the session until it has enough photos, after
// which training and the roster sync run on their own.
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Captures int    `json:"captures"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	enr, err := h.trainer.StartEnrollment(req.Name, req.Captures)
	if err != nil {
		switch {
		case errors.Is(err, training.ErrEnrollmentInProgress):
			respondError(w, http.StatusConflict, "enrollment already in progress")
		case errors.Is(err, training.ErrTrainingInProgress):
			respondError(w, http.StatusConflict, "training already in progress")
		case errors.Is(err, training.ErrInvalidName):
			respondError(w, http.StatusBadRequest, "name has no usable characters")
		default:
			log.Printf("enrollment start failed: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to start enrollment")
		}
		return
	}

	go h.followUp(enr)

	log.Printf("enrollment started for %s (%d captures)", sanitizeForLog(req.Name), enr.Target)
	respondJSON(w, http.StatusAccepted, enr.Snapshot())
}

// followUp waits out the session and, if it completed, retrains and
// registers the person as an employee. Mirrors what the enroll CLI does in
// the foreground.
func (h *EnrollmentHandler) followUp(enr *training.Enrollment) {
	enr.Wait()
	if enr.Snapshot().Status != training.EnrollmentStatusCompleted {
		return
	}

	job, err := h.trainer.Start(context.Background())
	if err != nil {
		log.Printf("training after enrollment failed to start: %v", err)
		return
	}
	job.Wait()
	if job.GetStatus() != training.JobStatusCompleted {
		return
	}

	if h.roster != nil {
		if _, err := h.trainer.SyncEmployees(h.roster); err != nil {
			log.Printf("employee sync after enrollment failed: %v", err)
		}
	}
}

// Status reports the most recent enrollment session.
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	enr := h.trainer.CurrentEnrollment()
	if enr == nil {
		respondError(w, http.StatusNotFound, "no enrollment session")
		return
	}
	respondJSON(w, http.StatusOK, enr.Snapshot())
}

// Cancel aborts the active enrollment session. Photos already captured stay
// in the dataset.
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	enr := h.trainer.CurrentEnrollment()
	if enr == nil {
		respondError(w, http.StatusNotFound, "no enrollment session")
		return
	}
	if enr.Done() {
		respondError(w, http.StatusConflict, "session already finished")
		return
	}

	enr.Cancel()
	respondJSON(w, http.StatusOK, enr.Snapshot())
}
