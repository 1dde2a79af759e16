package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fpang/fedpath/internal/consensus"
	"github.com/fpang/fedpath/internal/history"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/report"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/rs/zerolog/log"
)

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  s.model,
	})
}

type settingsView struct {
	settings.Settings
	ActiveNames []string `json:"activeNames"`
}

type settingsUpdate struct {
	ActiveModels    map[string]bool `json:"activeModels"`
	PrivacyBudget   *float64        `json:"privacyBudget"`
	UseLocalPrivacy *bool           `json:"useLocalPrivacy"`
}

// GET|PUT /api/settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cur := s.currentSettings()
		respondJSON(w, http.StatusOK, settingsView{Settings: cur, ActiveNames: cur.ActiveNames()})

	case http.MethodPut:
		var req settingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.settingsMu.Lock()
		next := s.settings.Snapshot()
		for name, on := range req.ActiveModels {
			if name == "" {
				s.settingsMu.Unlock()
				httpError(w, http.StatusBadRequest, "node name must not be empty")
				return
			}
			next.Toggle(name, on)
		}
		if req.PrivacyBudget != nil {
			if err := next.SetPrivacyBudget(*req.PrivacyBudget); err != nil {
				s.settingsMu.Unlock()
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if req.UseLocalPrivacy != nil {
			next.UseLocalPrivacy = *req.UseLocalPrivacy
		}
		s.settings = next
		s.settingsMu.Unlock()

		log.Info().
			Strs("active", next.ActiveNames()).
			Float64("privacy_budget", next.PrivacyBudget).
			Bool("local_privacy", next.UseLocalPrivacy).
			Msg("Settings updated")
		respondJSON(w, http.StatusOK, settingsView{Settings: next, ActiveNames: next.ActiveNames()})

	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// readUpload reads a multipart file field into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	f, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing %q upload: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return filepath.Base(header.Filename), data, nil
}

// readImage reads and validates the "file" upload.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (imaging.Image, bool) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return imaging.Image{}, false
	}
	name, data, err := s.readUpload(w, r, "file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return imaging.Image{}, false
		}
		httpError(w, http.StatusBadRequest, err.Error())
		return imaging.Image{}, false
	}
	img, err := imaging.NewImage(name, data)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return imaging.Image{}, false
	}
	return img, true
}

type predictResponse struct {
	Filename    string             `json:"filename"`
	Predictions prediction.Set     `json:"predictions"`
	Consensus   *consensus.Verdict `json:"consensus"`
	HistoryID   string             `json:"historyId"`
}

// POST /api/predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readImage(w, r)
	if !ok {
		return
	}
	set, err := s.runner.Predict(r.Context(), img, s.currentSettings())
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	verdict := consensus.Compute(set)
	if verdict != nil {
		metrics.ObserveConsensus(verdict.Label)
	}
	rec := s.history.Add(history.TypePredict, img.Name, set)
	respondJSON(w, http.StatusOK, predictResponse{
		Filename:    img.Name,
		Predictions: set,
		Consensus:   verdict,
		HistoryID:   rec.ID,
	})
}

// POST /api/gradcam
func (s *Server) handleGradCAM(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.runner.GradCAM(r.Context(), img)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "could not render heatmap for this image", err.Error())
		return
	}
	s.history.Add(history.TypeGradCAM, img.Name, res)
	respondJSON(w, http.StatusOK, res)
}

// POST /api/infer
func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readImage(w, r)
	if !ok {
		return
	}
	res, err := s.runner.FullInference(r.Context(), img, s.currentSettings())
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	if res.Consensus != nil {
		metrics.ObserveConsensus(res.Consensus.Label)
	}
	s.history.Add(history.TypeFullInference, img.Name, res)
	respondJSON(w, http.StatusOK, res)
}

// POST /api/report renders a downloadable single-run report from a
// prediction set the client already holds.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Filename    string         `json:"filename"`
		Predictions prediction.Set `json:"predictions"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	w.Header().Set("Content-Type", report.ContentTypeJSON)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.RunReportName(now)))
	if err := report.WriteRunJSON(w, report.BuildRunReport(req.Filename, req.Predictions, now)); err != nil {
		log.Warn().Err(err).Msg("Failed to write run report")
	}
}

// GET|DELETE /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, map[string]any{"records": s.history.List()})
	case http.MethodDelete:
		s.history.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
