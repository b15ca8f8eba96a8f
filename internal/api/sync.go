package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/scheduler"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.JobStatus{}
	if s.sync != nil {
		jobs = append(jobs, s.sync.Status()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleTriggerSync starts a job immediately. The job runs in the
// background; its result appears in GET /sync once it finishes.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeUnavailable(w, "sync scheduler not running")
		return
	}

	job := chi.URLParam(r, "job")
	if err := s.sync.Trigger(job); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownJob):
			writeNotFound(w, "unknown sync job")
		case errors.Is(err, scheduler.ErrJobRunning):
			writeConflict(w, "sync job already running")
		case errors.Is(err, scheduler.ErrStopped):
			writeUnavailable(w, "sync scheduler stopped")
		default:
			s.logger.Error("triggering sync job", "error", err, "job", job)
			writeInternalError(w, "failed to trigger sync job")
		}
		return
	}

	s.logger.Info("sync job triggered via API", "job", job, "request_id", middleware.GetReqID(r.Context()))
	s.record(r, audit.ActionSyncTrigger, audit.EntitySyncJob, job, nil)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "status": "accepted"})
}
