package server

import (
	"net/http"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing the client's header
// when present, and logs the request line at debug level.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger.WithFields(logger.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("request")

		next.ServeHTTP(w, r)
	})
}
