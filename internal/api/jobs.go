package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/jobs"
)

// monitorResponse is the job plus, once it succeeded, its results.
type monitorResponse struct {
	engine.Job
	Results engine.ValueMap `json:"results,omitempty"`
}

type monitorRequest struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleQueueJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if err := decodeRequiredBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &HTTPError{Status: http.StatusUnprocessableEntity, Detail: err.Error()})
		return
	}
	if len(req.Extra) > 0 {
		s.log.Debug("queue_job extra fields", "operation_id", req.OperationID, "fields", len(req.Extra))
	}
	job, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleMonitorJob(w http.ResponseWriter, r *http.Request) {
	s.monitor(w, r, chi.URLParam(r, "job_id"))
}

func (s *Server) handleMonitorJobBody(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := decodeRequiredBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.monitor(w, r, req.JobID)
}

func (s *Server) monitor(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := jobs.ParseJobID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.jobs.Monitor(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// a failed job always carries an error, even when the engine recorded none
	job := report.Job
	job.Error = report.Error
	writeJSON(w, http.StatusOK, monitorResponse{Job: job, Results: report.Results})
}
