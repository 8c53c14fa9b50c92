package order_api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/utils"

	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 4096

// RateLimit throttles each client address separately. perSec <= 0 disables it.
func RateLimit(perSec float64, burst int, log *logger.Logger) func(http.Handler) http.Handler {
	if perSec <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter, ok := limiters.Get(ip)
			if !ok {
				limiter = rate.NewLimiter(rate.Limit(perSec), burst)
				limiters.Add(ip, limiter)
			}

			if !limiter.Allow() {
				log.LogSecurity("RATE_LIMIT", fmt.Sprintf("Rate limit exceeded for IP: %s", ip))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(utils.ErrorResponse("Rate limit exceeded", "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestLogger logs every request through LogAPI. Server errors and client errors
// are raised to error and warn level.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// hijacked connections never write a status
				status = http.StatusSwitchingProtocols
			}
			duration := time.Since(start)
			switch {
			case status >= 500:
				log.Error("API", fmt.Sprintf("%s %s - %d (%s)", r.Method, r.URL.Path, status, duration))
			case status >= 400:
				log.Warn("API", fmt.Sprintf("%s %s - %d (%s) - Client Error", r.Method, r.URL.Path, status, duration))
			default:
				log.LogAPI(r.Method, r.URL.Path, status, duration)
			}
			log.Debug("REQUEST", fmt.Sprintf("IP: %s, UserAgent: %s, RequestID: %s",
				clientIP(r), r.UserAgent(), middleware.GetReqID(r.Context())))
		})
	}
}
