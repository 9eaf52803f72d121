package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mroshb/catchup/internal/metrics"
	"github.com/mroshb/catchup/internal/middleware"
	"github.com/mroshb/catchup/internal/services"
)

type RouterConfig struct {
	Streaks *services.StreakService
	Users   *services.UserService
	Friends *services.FriendService

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Limiter        *middleware.RateLimiter
	// Health reports backend reachability; nil always reports healthy.
	Health func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) *mux.Router {
	answerHandler := NewAnswerHandler(cfg.Streaks)
	userHandler := NewUserHandler(cfg.Users, cfg.Friends)
	friendHandler := NewFriendHandler(cfg.Friends)

	r := mux.NewRouter()
	r.Use(middleware.Monitor(cfg.Metrics))
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods("GET")
	}
	r.HandleFunc("/health", healthHandler(cfg.Health)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/answers", answerHandler.RecordAnswer).Methods("POST")

	api.HandleFunc("/users", userHandler.Register).Methods("POST")
	api.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}/timezone", userHandler.UpdateTimezone).Methods("PUT")
	api.HandleFunc("/users/{id}/friends", userHandler.GetFriends).Methods("GET")
	api.HandleFunc("/users/{id}/requests", userHandler.GetIncomingRequests).Methods("GET")

	api.HandleFunc("/friendships", friendHandler.SendRequest).Methods("POST")
	api.HandleFunc("/friendships", friendHandler.Remove).Methods("DELETE")
	api.HandleFunc("/friendships/{pairId}/accept", friendHandler.Accept).Methods("POST")
	api.HandleFunc("/friendships/{pairId}/decline", friendHandler.Decline).Methods("POST")

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if check != nil {
			if err := check(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "store unreachable",
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "catchup"})
	}
}
