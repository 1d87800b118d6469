package api

import (
	"context"
	"net/http"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/api/response"
)

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.storage.Ping(ctx); err != nil {
			s.logger.Error("Health check failed", "error", err)
			response.Unavailable(w, HealthResponse{Status: "unavailable"})
			return
		}

		response.OK(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
