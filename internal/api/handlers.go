package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/intake"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/validate"
)

const defaultMaxBodyBytes = 1 << 20

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Reason: "Payload Too Large", Issues: []string{err.Error()}})
			return
		}
		writeValidation(w, []string{"could not read request body"})
		return
	}

	var payload model.LeadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeValidation(w, []string{"invalid JSON body: " + err.Error()})
		return
	}
	if issues := validate.Lead(&payload); len(issues) > 0 {
		writeValidation(w, issues)
		return
	}

	result, err := s.leads.CreateLead(r.Context(), &payload, raw, requestContext(r))
	switch {
	case errors.Is(err, intake.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Reason: "Already Exists", Issues: []string{intake.ErrConflict.Error()}})
	case err != nil:
		s.log.Error("create lead failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func requestContext(r *http.Request) *model.RequestContext {
	return &model.RequestContext{
		RequestID: RequestIDFrom(r.Context()),
		SourceIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
