package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/api/response"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	requestIDKey
)

// IdentityFromContext returns the caller verified by authenticate.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			response.Error(w, response.CodeUnauthorized, "No token provided")
			return
		}

		tokenStr, ok := strings.CutPrefix(tokenHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(w, response.CodeUnauthorized, "Invalid token format")
			return
		}

		claims, ok := s.tokens.Verify(tokenStr)
		if !ok {
			response.Error(w, response.CodeUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, models.Identity{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		next(w, r.WithContext(ctx))
	}
}

// requireRole must run after authenticate. A request that reaches it without
// an identity is rejected as unauthenticated.
func (s *APIServer) requireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Error(w, response.CodeUnauthorized, "You are not authenticated")
			return
		}
		if !identity.Role.Satisfies(role) {
			s.logger.Warn("Access denied",
				slog.String("user_id", identity.UserID),
				slog.String("role", string(identity.Role)),
				slog.String("required", string(role)),
				slog.String("path", r.URL.Path),
			)
			response.Error(w, response.CodeForbidden, "You do not have permission to access this resource")
			return
		}
		next(w, r)
	}
}

func (s *APIServer) rateLimit(scope string, limit int, window time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			res, err := s.limiter.Allow(r.Context(), scope+":"+clientIP(r), limit, window)
			if err != nil {
				// fail open; a limiter outage must not take the shop down
				s.logger.Error("Rate limiter unavailable", "error", err, slog.String("scope", scope))
				next.ServeHTTP(w, r)
				return
			}

			reset := int(res.RetryAfter.Round(time.Second) / time.Second)
			w.Header().Set("RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))

			if !res.Allowed {
				s.metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				response.Error(w, response.CodeRateLimitExceeded, "Too many requests, please try again later")
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

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *APIServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", id),
		)
	})
}

// instrument runs inside the router so the route template is known.
func (s *APIServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (s *APIServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				s.logger.Error("Panic while handling request",
					slog.Any("panic", rv),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				response.Error(w, response.CodeInternal, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) cors(next http.Handler) http.Handler {
	origin := s.config.CORS.AllowedOrigin

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin != "" && r.Header.Get("Origin") == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'self'")
		next.ServeHTTP(w, r)
	})
}
