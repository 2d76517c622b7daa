package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/framecut/framecut-agent/internal/compose"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/timeline"
)

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}
		if req.Width <= 0 || req.Height <= 0 {
			WriteError(w, http.StatusBadRequest, "width and height are required", "BAD_REQUEST")
			return
		}
		if req.FrameRate <= 0 {
			req.FrameRate = 30
		}

		settings := req.Settings
		if settings.Container == "" {
			settings.Container = cfg.Defaults.Container
		}
		if settings.VideoCodec == "" {
			settings.VideoCodec = cfg.Defaults.VideoCodec
		}
		if settings.AudioCodec == "" {
			settings.AudioCodec = cfg.Defaults.AudioCodec
		}
		if settings.CRF == 0 {
			settings.CRF = cfg.Defaults.CRF
		}
		if settings.Preset == "" {
			settings.Preset = cfg.Defaults.Preset
		}

		p, err := cfg.Projects.Create(r.Context(), req.Name, req.Width, req.Height, req.FrameRate, settings)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := cfg.Projects.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectSummaryResponse, len(summaries))}
		for i, s := range summaries {
			resp.Projects[i] = ProjectSummaryResponse{
				ID:        s.ID,
				Name:      s.Name,
				CreatedAt: s.CreatedAt.Format(time.RFC3339),
				UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Projects.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addProjectAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssetID string `json:"asset_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssetID == "" {
			WriteError(w, http.StatusBadRequest, "asset_id is required", "BAD_REQUEST")
			return
		}

		asset, err := cfg.Registry.Get(r.Context(), req.AssetID)
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			p.AddAsset(asset)
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func removeProjectAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.RemoveAsset(chi.URLParam(r, "assetID"))
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var trackID string
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			track, err := p.AddTrack(req.Kind, req.Name)
			if err != nil {
				return err
			}
			trackID = track.ID
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p.Track(trackID))
	}
}

func patchTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatchTrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		trackID := chi.URLParam(r, "trackID")
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.UpdateTrack(trackID, timeline.TrackSpec{
				Muted:   req.Muted,
				Locked:  req.Locked,
				Visible: req.Visible,
				Volume:  req.Volume,
			})
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p.Track(trackID))
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.RemoveTrack(chi.URLParam(r, "trackID"))
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.TrackID == "" {
			WriteError(w, http.StatusBadRequest, "track_id is required", "BAD_REQUEST")
			return
		}

		var clipID string
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			clip, err := p.AddClip(req.TrackID, timeline.Clip{
				Kind:     req.Kind,
				AssetID:  req.AssetID,
				Name:     req.Name,
				Start:    req.Start,
				Duration: req.Duration,
				In:       req.In,
				Out:      req.Out,
				Text:     req.Text,
			})
			if err != nil {
				return err
			}
			clipID = clip.ID
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		clip, _ := p.Clip(clipID)
		WriteJSON(w, http.StatusCreated, clip)
	}
}

func patchClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatchClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clipID := chi.URLParam(r, "clipID")
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			if req.Start != nil || req.Duration != nil || req.In != nil || req.Out != nil {
				// A pure move takes the cheaper path; anything touching the
				// source range goes through the combined trim validation.
				var err error
				if req.Start != nil && req.Duration == nil && req.In == nil && req.Out == nil {
					err = p.MoveClip(clipID, *req.Start)
				} else {
					err = p.TrimClip(clipID, timeline.TrimSpec{
						Start:    req.Start,
						Duration: req.Duration,
						In:       req.In,
						Out:      req.Out,
					})
				}
				if err != nil {
					return err
				}
			}
			if req.Volume != nil {
				if err := p.SetClipVolume(clipID, *req.Volume); err != nil {
					return err
				}
			}
			if req.Opacity != nil {
				return p.SetClipOpacity(clipID, *req.Opacity)
			}
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}

		clip, _ := p.Clip(clipID)
		WriteJSON(w, http.StatusOK, clip)
	}
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var leftID, rightID string
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			left, right, err := p.SplitClip(chi.URLParam(r, "clipID"), req.At)
			if err != nil {
				return err
			}
			leftID, rightID = left.ID, right.ID
			return nil
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		left, _ := p.Clip(leftID)
		right, _ := p.Clip(rightID)
		WriteJSON(w, http.StatusOK, SplitClipResponse{Left: left, Right: right})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.RemoveClip(chi.URLParam(r, "clipID"))
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addFilterHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f timeline.Filter
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid filter body", "BAD_REQUEST")
			return
		}

		var added timeline.Filter
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			var err error
			added, err = p.AddFilter(chi.URLParam(r, "clipID"), f)
			return err
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, added)
	}
}

func reorderFiltersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderFiltersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clipID := chi.URLParam(r, "clipID")
		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.ReorderFilters(clipID, req.FilterIDs)
		})
		if err != nil {
			writeEditError(w, err)
			return
		}

		clip, _ := p.Clip(clipID)
		WriteJSON(w, http.StatusOK, clip)
	}
}

func removeFilterHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.RemoveFilter(chi.URLParam(r, "clipID"), chi.URLParam(r, "filterID"))
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tr timeline.Transition
		if err := json.NewDecoder(r.Body).Decode(&tr); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid transition body", "BAD_REQUEST")
			return
		}

		var added timeline.Transition
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			var err error
			added, err = p.AddTransition(chi.URLParam(r, "clipID"), tr)
			return err
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, added)
	}
}

func removeTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), func(p *timeline.Project) error {
			return p.RemoveTransition(chi.URLParam(r, "clipID"), chi.URLParam(r, "transitionID"))
		})
		if err != nil {
			writeEditError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func composeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "query parameter t is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Projects.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEditError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, compose.ResolveAt(p, t))
	}
}
