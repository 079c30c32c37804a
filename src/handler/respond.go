package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/portfolio"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a 500 and logged.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		validation   *portfolio.ValidationError
		insufficient *portfolio.InsufficientSharesError
		notFound     *portfolio.NotFoundError
		noPrice      *portfolio.PriceUnavailableError
		importErr    *portfolio.ImportError
	)

	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Reason, http.StatusBadRequest)
	case errors.As(err, &insufficient):
		http.Error(w, insufficient.Error(), http.StatusBadRequest)
	case errors.As(err, &noPrice):
		http.Error(w, noPrice.Error(), http.StatusBadRequest)
	case errors.Is(err, portfolio.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &importErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": "CSV validation failed",
			"errors":  importErr.Errors,
		})
	case errors.As(err, &notFound):
		http.Error(w, notFound.Error(), http.StatusNotFound)
	default:
		logger.WithError(err).Error("portfolio engine call failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func uintParam(r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
