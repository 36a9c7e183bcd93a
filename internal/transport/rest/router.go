package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"brainduel/internal/cache"
	"brainduel/internal/repository"
	"brainduel/internal/service"
	"brainduel/internal/transport/rest/handler"
	"brainduel/internal/transport/rest/middleware"
	"brainduel/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService  *service.AuthService
	MatchService *service.MatchService
	RoundService *service.RoundService
	SyncService  *service.SyncService
	UserRepo     repository.UserRepo
	Presence     cache.PresenceCache
	WSHub        *ws.Hub
	Logger       *logrus.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	userHandler := handler.NewUserHandler(c.UserRepo, c.Presence)
	matchHandler := handler.NewMatchHandler(c.MatchService, c.RoundService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SyncService, c.Logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/guest", authHandler.Guest).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/matches/{matchId}", wsHandler.MatchWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Authenticated routes
	authed := v1.NewRoute().Subrouter()
	authed.Use(authMW.RequireUser)

	authed.HandleFunc("/users/online", userHandler.ListOnline).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/{userId}", userHandler.Get).Methods("GET", "OPTIONS")

	authed.HandleFunc("/matches", matchHandler.Create).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/open", matchHandler.ListOpen).Methods("GET", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}", matchHandler.Get).Methods("GET", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/join", matchHandler.Join).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/rounds", matchHandler.SetRounds).Methods("PUT", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/start", matchHandler.Start).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/category", matchHandler.SelectCategory).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/answers", matchHandler.SubmitAnswer).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/next", matchHandler.NextRound).Methods("POST", "OPTIONS")
	authed.HandleFunc("/matches/{matchId}/questions/retry", matchHandler.RetryQuestions).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
