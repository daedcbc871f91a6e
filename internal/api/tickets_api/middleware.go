package tickets_api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		a.opts.Metrics.HTTPRequest(r.Method, route, strconv.Itoa(status/100)+"xx")
		a.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// scanLimit caps scans per client address per minute. Limiter errors let the scan through.
func (a *API) scanLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.opts.ScanLimiter == nil || a.opts.ScanLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		client := clientIP(r)
		allowed, reset, err := a.opts.ScanLimiter.Allow(r.Context(), client, a.opts.ScanLimitPerMinute, time.Minute)
		if err != nil {
			a.log.Warn("scan rate limiter", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			a.log.Warn("scan rate limit exceeded", zap.String("client", client), zap.String("short_id", chi.URLParam(r, "id")))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]errorBody{
				"error": {Code: "RATE_LIMITED", Message: "too many scans, retry later"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
