package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/framecut/framecut-agent/internal/export"
)

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := cfg.Projects.Snapshot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEditError(w, err)
			return
		}

		job, err := cfg.Orchestrator.Start(r.Context(), snapshot, export.Callbacks{})
		if err != nil {
			if errors.Is(err, export.ErrBusy) {
				WriteError(w, http.StatusConflict, err.Error(), "EXPORT_BUSY")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportStartResponse{JobID: job.ID})
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Orchestrator.Jobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list export jobs", "INTERNAL_ERROR")
			return
		}

		resp := ExportJobsResponse{Jobs: make([]ExportJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = ExportJobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Orchestrator.Job(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, export.ErrJobNotFound) {
				WriteError(w, http.StatusNotFound, "export job not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ExportJobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Orchestrator.Cancel(id); err != nil {
			if errors.Is(err, export.ErrNotRunning) {
				WriteError(w, http.StatusConflict, err.Error(), "NOT_RUNNING")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	}
}
