package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/HermYeh/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.ledger)
	employeesHandler := handlers.NewEmployeesHandler(s.ledger)
	tracksHandler := handlers.NewTracksHandler(s.tracker)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Live tracker state
		r.Get("/tracks", tracksHandler.List)

		// Attendance
		r.Get("/attendance", attendanceHandler.Report)
		r.Get("/attendance/summary", attendanceHandler.Summary)
		r.Get("/attendance/checked-in", attendanceHandler.CheckedIn)
		r.Get("/attendance/export", attendanceHandler.ExportCSV)
		r.Post("/attendance/checkin", attendanceHandler.CheckIn)
		r.Post("/attendance/checkout", attendanceHandler.CheckOut)
		r.Delete("/attendance/checkin", attendanceHandler.DeleteCheckIn)

		// Employee roster
		r.Get("/employees", employeesHandler.List)
		r.Post("/employees", employeesHandler.Create)
		r.Get("/employees/{name}/attendance", employeesHandler.Attendance)
		r.Put("/employees/{name}/deactivate", employeesHandler.Deactivate)
		r.Delete("/employees/{name}", employeesHandler.Delete)

		// Training (long-running operations)
		if s.trainer != nil {
			trainingHandler := handlers.NewTrainingHandler(s.trainer)
			r.Post("/training", trainingHandler.Start)
			r.Get("/training/{jobId}", trainingHandler.Status)
			r.Get("/training/{jobId}/events", trainingHandler.Events)
			r.Delete("/training/{jobId}", trainingHandler.Cancel)
			r.Post("/training/sync-employees", trainingHandler.Sync(s.ledger))

			// Camera enrollment of new identities
			enrollmentHandler := handlers.NewEnrollmentHandler(s.trainer, s.ledger)
			r.Post("/enrollments", enrollmentHandler.Start)
			r.Get("/enrollments/current", enrollmentHandler.Status)
			r.Delete("/enrollments/current", enrollmentHandler.Cancel)
		}
	})
}
