package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope shared by all endpoints.
type errorBody struct {
	Reason string   `json:"reason"`
	Issues []string `json:"issues"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string, issues ...string) {
	if issues == nil {
		issues = []string{}
	}
	writeJSON(w, status, errorBody{Reason: reason, Issues: issues})
}

func writeValidation(w http.ResponseWriter, issues []string) {
	writeError(w, http.StatusBadRequest, "Validation Error", issues...)
}
