package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"localchat/internal/chaterr"
	"localchat/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeErrorResponse(w http.ResponseWriter, resp types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_ = json.NewEncoder(w).Encode(resp)
}

// errorResponse maps err to a status code and payload.
func errorResponse(err error) types.ErrorResponse {
	status := http.StatusInternalServerError
	var he HTTPError
	if errors.As(err, &he) {
		status = he.StatusCode()
	}
	return types.ErrorResponse{Error: err.Error(), Code: status, Kind: string(chaterr.KindOf(err))}
}

// writeError writes err with its mapped status.
func writeError(w http.ResponseWriter, err error) int {
	resp := errorResponse(err)
	if resp.Code == http.StatusTooManyRequests {
		IncrementBackpressure(resp.Kind)
	}
	writeErrorResponse(w, resp)
	return resp.Code
}
