package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	authcore "github.com/campuskit/authcore"
)

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}

func success(w http.ResponseWriter, code int, message string, data interface{}) {
	writeJSON(w, code, envelope{Status: "success", Message: message, Data: data})
}

func failure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: "error", Message: message})
}

// writeError maps engine errors to HTTP responses. Messages come from the
// error itself; the category sentinels are written to read safely on the
// wire.
func writeError(w http.ResponseWriter, err error) {
	var rateLimited *authcore.RateLimitError
	if errors.As(err, &rateLimited) {
		seconds := int64(math.Ceil(rateLimited.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		failure(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}

	switch {
	case errors.Is(err, authcore.ErrRateLimited):
		failure(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, authcore.ErrValidation):
		failure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authcore.ErrConflict):
		failure(w, http.StatusConflict, err.Error())
	case errors.Is(err, authcore.ErrAuthentication):
		failure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authcore.ErrAccountNotFound):
		failure(w, http.StatusNotFound, "account not found")
	default:
		failure(w, http.StatusInternalServerError, "internal error")
	}
}
