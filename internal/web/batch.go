package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/fedpath/internal/archive"
	"github.com/fpang/fedpath/internal/history"
	"github.com/fpang/fedpath/internal/jobs"
	"github.com/fpang/fedpath/internal/report"
)

// POST /api/batch
func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name, blob, err := s.readUpload(w, r, "archive")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject unusable archives before a job exists.
	if _, err := archive.DecodeImages(blob); err != nil {
		respondPipelineError(w, err)
		return
	}

	job := s.jobs.New(name)
	go s.runBatchJob(job, name, blob)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"id": job.ID(),
	})
}

// runBatchJob runs detached from the request so polling can observe progress.
func (s *Server) runBatchJob(job *jobs.BatchJob, name string, blob []byte) {
	job.Start()
	results, err := s.pipeline.Run(context.Background(), blob, s.currentSettings(), job.SetProgress)
	if err != nil {
		job.Fail(err)
		return
	}
	job.Complete(results)
	s.history.Add(history.TypeBatchInfer, name, results)
}

// Routes under /api/batch/{id}[/export]
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/batch/"), "/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	job, err := s.jobs.Get(parts[0])
	if err != nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}

	if len(parts) == 1 {
		respondJSON(w, http.StatusOK, job.View())
		return
	}

	switch parts[1] {
	case "export":
		s.handleBatchExport(w, job)
	default:
		httpError(w, http.StatusNotFound, "not found")
	}
}

// GET /api/batch/{id}/export
func (s *Server) handleBatchExport(w http.ResponseWriter, job *jobs.BatchJob) {
	results, done := job.Results()
	if !done {
		httpError(w, http.StatusConflict, "batch is not complete")
		return
	}
	w.Header().Set("Content-Type", report.ContentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.BatchCSVName(time.Now())))
	if err := report.WriteBatchCSV(w, results); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to write export", err.Error())
	}
}
