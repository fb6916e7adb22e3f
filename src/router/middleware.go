package router

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware tags every request with an id, reusing the caller's
// X-Request-ID when present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)

		log.WithContext(ctx).WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("request received")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			err := fmt.Errorf("rate limit exceeded, retry later")
			log.WithContext(r.Context()).WithField("request_id", requestIDFromContext(r.Context())).Warn(err)
			setErrorResponse(errTypeRateLimit, http.StatusTooManyRequests, err, w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
