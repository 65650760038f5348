package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
)

// RenderRequest renders either a stored template or inline content. Data
// defaults to sample data when omitted.
type RenderRequest struct {
	TemplateID string            `json:"templateId,omitempty"`
	Content    string            `json:"content,omitempty"`
	Data       *personalize.Data `json:"data,omitempty"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data := personalize.SampleData(time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339))
	if req.Data != nil {
		data = *req.Data
	}

	if req.TemplateID == "" {
		renderTotal.WithLabelValues("inline").Inc()
		writeJSON(w, http.StatusOK, s.engine.Preview(req.Content, data))
		return
	}

	t, err := s.store.GetTemplate(r.Context(), req.TemplateID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("template", req.TemplateID).Msg("failed to load template")
		http.Error(w, "Failed to load template", http.StatusInternalServerError)
		return
	}
	renderTotal.WithLabelValues("stored").Inc()
	writeJSON(w, http.StatusOK, personalize.Preview{
		Output:    templates.Render(s.engine, *t, data),
		Variables: t.Variables,
	})
}

// ValidateRequest checks content against the server's variable catalog.
type ValidateRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, personalize.Validate(req.Content, s.engine.Catalog()))
}

// TemplateSelectRequest asks for the template to send a customer.
type TemplateSelectRequest struct {
	Data              personalize.Data `json:"data"`
	DefaultTemplateID string           `json:"defaultTemplateId,omitempty"`
}

// TemplateSelectResponse is the chosen template rendered for the customer.
type TemplateSelectResponse struct {
	TemplateID string `json:"templateId"`
	Name       string `json:"name"`
	SegmentID  string `json:"segmentId,omitempty"`
	Segment    string `json:"segment,omitempty"`
	TestID     string `json:"testId,omitempty"`
	Output     string `json:"output"`
}

func (s *Server) handleTemplateSelect(w http.ResponseWriter, r *http.Request) {
	var req TemplateSelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stored, err := s.store.ListTemplates(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list templates")
		http.Error(w, "Failed to load templates", http.StatusInternalServerError)
		return
	}

	segments, err := s.store.ListSegments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list segments")
		http.Error(w, "Failed to load segments", http.StatusInternalServerError)
		return
	}
	if len(segments) == 0 {
		segments = templates.SampleSegments()
	}
	tests, err := s.store.ListTemplateTests(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list template tests")
		http.Error(w, "Failed to load template tests", http.StatusInternalServerError)
		return
	}

	sel, err := s.chooser.SelectForCustomer(req.Data, templates.SelectOptions{
		Templates:         stored,
		Segments:          segments,
		Tests:             tests,
		DefaultTemplateID: req.DefaultTemplateID,
	})
	if errors.Is(err, templates.ErrNoActiveTemplates) {
		http.Error(w, "No active templates", http.StatusConflict)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("template selection failed")
		http.Error(w, "Failed to select template", http.StatusInternalServerError)
		return
	}

	response := TemplateSelectResponse{
		TemplateID: sel.Template.ID,
		Name:       sel.Template.Name,
		Output:     templates.Render(s.engine, sel.Template, req.Data),
	}
	if sel.Segment != nil {
		response.SegmentID = sel.Segment.ID
		response.Segment = sel.Segment.Name
	}
	if sel.Test != nil {
		response.TestID = sel.Test.ID
	}
	renderTotal.WithLabelValues("selected").Inc()
	writeJSON(w, http.StatusOK, response)
}
