package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/framecut/framecut-agent/internal/export"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/project"
	"github.com/framecut/framecut-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/assets", ingestAssetHandler(cfg))
		r.Get("/assets", listAssetsHandler(cfg))
		r.Get("/assets/{id}", getAssetHandler(cfg))
		r.Delete("/assets/{id}", deleteAssetHandler(cfg))

		r.Post("/projects", createProjectHandler(cfg))
		r.Get("/projects", listProjectsHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))

		r.Post("/projects/{id}/assets", addProjectAssetHandler(cfg))
		r.Delete("/projects/{id}/assets/{assetID}", removeProjectAssetHandler(cfg))

		r.Post("/projects/{id}/tracks", addTrackHandler(cfg))
		r.Patch("/projects/{id}/tracks/{trackID}", patchTrackHandler(cfg))
		r.Delete("/projects/{id}/tracks/{trackID}", removeTrackHandler(cfg))

		r.Post("/projects/{id}/clips", addClipHandler(cfg))
		r.Patch("/projects/{id}/clips/{clipID}", patchClipHandler(cfg))
		r.Post("/projects/{id}/clips/{clipID}/split", splitClipHandler(cfg))
		r.Delete("/projects/{id}/clips/{clipID}", removeClipHandler(cfg))

		r.Post("/projects/{id}/clips/{clipID}/filters", addFilterHandler(cfg))
		r.Put("/projects/{id}/clips/{clipID}/filters", reorderFiltersHandler(cfg))
		r.Delete("/projects/{id}/clips/{clipID}/filters/{filterID}", removeFilterHandler(cfg))

		r.Post("/projects/{id}/clips/{clipID}/transitions", addTransitionHandler(cfg))
		r.Delete("/projects/{id}/clips/{clipID}/transitions/{transitionID}", removeTransitionHandler(cfg))

		r.Get("/projects/{id}/compose", composeHandler(cfg))

		r.Post("/projects/{id}/export", startExportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Post("/exports/{id}/cancel", cancelExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: "0.1.0",
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		assets, _ := cfg.Registry.List(ctx)
		projects, _ := cfg.Projects.List(ctx)

		state := "idle"
		var active *ExportJobResponse
		lastError := ""

		if job := cfg.Orchestrator.Active(); job != nil {
			state = "exporting"
			resp := ExportJobToResponse(job)
			active = &resp
		}

		jobs, _ := cfg.Orchestrator.Jobs(ctx, 10)
		for _, j := range jobs {
			if j.State == export.StateFailed && lastError == "" {
				lastError = j.Error
			}
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:         state,
			AssetsCount:   len(assets),
			ProjectsCount: len(projects),
			ActiveExport:  active,
			LastError:     lastError,
		})
	}
}

func ingestAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		asset, err := cfg.Registry.Ingest(r.Context(), req.Path, req.DisplayName)
		if err != nil {
			switch {
			case errors.Is(err, media.ErrUnsupportedFormat):
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "UNSUPPORTED_FORMAT")
			case errors.Is(err, media.ErrCorruptFile):
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "CORRUPT_FILE")
			default:
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			}
			return
		}

		WriteJSON(w, http.StatusCreated, AssetToResponse(asset))
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := cfg.Registry.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list assets", "INTERNAL_ERROR")
			return
		}

		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Registry.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, AssetToResponse(asset))
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Registry.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			var inUse *media.InUseError
			switch {
			case errors.Is(err, media.ErrNotFound):
				WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
			case errors.As(err, &inUse):
				WriteError(w, http.StatusConflict, err.Error(), "IN_USE")
			default:
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeEditError maps a timeline or store error onto an HTTP status and a
// stable code string.
func writeEditError(w http.ResponseWriter, err error) {
	var overlap *timeline.OverlapError
	var sourceRange *timeline.InvalidSourceRangeError
	var transition *timeline.InvalidTransitionError
	var filter *timeline.InvalidFilterError
	var assetInUse *timeline.AssetInUseError

	switch {
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
	case errors.Is(err, timeline.ErrTrackNotFound):
		WriteError(w, http.StatusNotFound, "track not found", "NOT_FOUND")
	case errors.Is(err, timeline.ErrClipNotFound):
		WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
	case errors.Is(err, timeline.ErrTrackLocked):
		WriteError(w, http.StatusConflict, err.Error(), "TRACK_LOCKED")
	case errors.As(err, &overlap):
		WriteError(w, http.StatusConflict, err.Error(), "OVERLAP")
	case errors.As(err, &assetInUse):
		WriteError(w, http.StatusConflict, err.Error(), "IN_USE")
	case errors.Is(err, timeline.ErrKindMismatch),
		errors.Is(err, timeline.ErrInvalidEdit),
		errors.As(err, &sourceRange),
		errors.As(err, &transition),
		errors.As(err, &filter):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_EDIT")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
