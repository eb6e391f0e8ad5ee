package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HermYeh/face-attendance/internal/training"
)

// TrainingHandler controls the background training worker.
type TrainingHandler struct {
	trainer *training.Trainer
}

// NewTrainingHandler creates the handler.
func NewTrainingHandler(trainer *training.Trainer) *TrainingHandler {
	return &TrainingHandler{trainer: trainer}
}

// Start launches a training run over the enrollment dataset.
func (h *TrainingHandler) Start(w http.ResponseWriter, r *http.Request) {
	job, err := h.trainer.Start(r.Context())
	if err != nil {
		if errors.Is(err, training.ErrTrainingInProgress) {
			respondError(w, http.StatusConflict, "training already in progress")
			return
		}
		log.Printf("training start failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to start training")
		return
	}
	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

// Status returns the state of a training job.
func (h *TrainingHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.trainer.Job(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Cancel stops a running training job and waits for it to wind down.
func (h *TrainingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.trainer.Job(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Done() {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	job.Cancel()
	job.Wait()
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams training progress as server-sent events.
func (h *TrainingHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.trainer.Job(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	streamJobEvents(w, r, job)
}

// Sync reconciles the enrollment dataset with the employee roster.
func (h *TrainingHandler) Sync(roster training.EmployeeRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		added, err := h.trainer.SyncEmployees(roster)
		if err != nil {
			log.Printf("employee sync failed: %v", err)
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("sync failed after %d additions", added))
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"added": added})
	}
}
