package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pathsplit/pathsplit/internal/report"
	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		log.Error().Err(err).Msg("health check failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		log.Warn().Err(err).Msg("failed to read database size")
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(experiments),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

// SelectResponse is the path chosen for one execution.
type SelectResponse struct {
	Experiment string `json:"experiment"`
	PathID     string `json:"pathId"`
	Label      string `json:"label"`
}

// handleSelect picks a path for one execution. A completed experiment with a
// declared winner always serves the winner.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exp, ok := s.experiment(w, r, name)
	if !ok {
		return
	}

	pathID := exp.Winner
	if exp.State != store.StateCompleted || pathID == "" {
		var err error
		pathID, err = s.selector.Select(exp.Variants)
		if errors.Is(err, variant.ErrNoActiveVariants) {
			http.Error(w, "Experiment has no active variants", http.StatusConflict)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("experiment", name).Msg("selection failed")
			http.Error(w, "Failed to select variant", http.StatusInternalServerError)
			return
		}
	}

	label := stats.UnknownVariantLabel
	if i := variant.Find(exp.Variants, pathID); i >= 0 {
		label = exp.Variants[i].Label
	}
	selectionsTotal.WithLabelValues(name, pathID).Inc()

	writeJSON(w, http.StatusOK, SelectResponse{Experiment: name, PathID: pathID, Label: label})
}

// OutcomeRequest reports one execution of a path.
type OutcomeRequest struct {
	PathID     string `json:"pathId"`
	Conversion bool   `json:"conversion"`
	VisitorID  string `json:"visitorId"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req OutcomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PathID == "" {
		http.Error(w, "Missing required field pathId", http.StatusBadRequest)
		return
	}

	updated, err := s.store.RecordOutcome(r.Context(), name, req.PathID, req.Conversion, req.VisitorID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Experiment not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, store.ErrUnknownPath) {
		http.Error(w, "Unknown pathId", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("experiment", name).Msg("failed to record outcome")
		http.Error(w, "Failed to record outcome", http.StatusInternalServerError)
		return
	}
	outcomesTotal.WithLabelValues(name, req.PathID, strconv.FormatBool(req.Conversion)).Inc()

	writeJSON(w, http.StatusOK, updated)
}

// ExperimentSummary is one row of the experiment listing.
type ExperimentSummary struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	State       string            `json:"state"`
	Winner      string            `json:"winner,omitempty"`
	Variants    []variant.Variant `json:"variants"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.store.ListExperiments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list experiments")
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	response := []ExperimentSummary{}
	for _, e := range experiments {
		response = append(response, ExperimentSummary{
			Name:        e.Name,
			Description: e.Description,
			State:       string(e.State),
			Winner:      e.Winner,
			Variants:    e.Variants,
			CreatedAt:   e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// ReportResponse is the JSON form of an experiment report.
type ReportResponse struct {
	Experiment string               `json:"experiment"`
	State      string               `json:"state"`
	Winner     string               `json:"winner,omitempty"`
	Report     stats.Report         `json:"report"`
	Leading    *stats.VariantReport `json:"leadingVariant,omitempty"`
	Confidence float64              `json:"confidence"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exp, ok := s.experiment(w, r, name)
	if !ok {
		return
	}

	rows, err := s.store.GetVariantStats(r.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("experiment", name).Msg("failed to load stats")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	rep := stats.GenerateReport(rows, exp.Variants)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.Render(rep)))
		return
	}

	response := ReportResponse{
		Experiment: name,
		State:      string(exp.State),
		Winner:     exp.Winner,
		Report:     rep,
		Confidence: rep.Confidence(),
	}
	if leading, ok := rep.Leading(); ok {
		response.Leading = &leading
	}
	writeJSON(w, http.StatusOK, response)
}

// experiment loads name or writes the error response.
func (s *Server) experiment(w http.ResponseWriter, r *http.Request, name string) (*store.Experiment, bool) {
	exp, err := s.store.GetExperiment(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Experiment not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("experiment", name).Msg("failed to load experiment")
		http.Error(w, "Failed to load experiment", http.StatusInternalServerError)
		return nil, false
	}
	return exp, true
}

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// decodeJSON reads a size-limited JSON body into v or writes the error
// response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	http.Error(w, "Invalid JSON", http.StatusBadRequest)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
