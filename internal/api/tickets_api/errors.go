package tickets_api

import (
	"encoding/json"
	"net/http"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err through the taxonomy. Wrapped driver text is logged, never sent.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	if e.Status >= http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.String("code", string(e.Code)), zap.Error(err))
	}
	writeJSON(w, e.Status, map[string]errorBody{
		"error": {Code: string(e.Code), Message: e.Message, Details: e.Details},
	})
}
