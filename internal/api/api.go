package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/api/response"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/jwt"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/metrics"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/password"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/ratelimit"
	"github.com/gorilla/mux"
)

// Storage is everything the HTTP layer needs from persistence.
type Storage interface {
	SaveUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	SaveSweet(ctx context.Context, sw *models.Sweet) error
	ListSweets(ctx context.Context, q models.ListQuery) ([]models.Sweet, int, error)
	SearchSweets(ctx context.Context, q models.SearchQuery) ([]models.Sweet, int, error)
	UpdateSweet(ctx context.Context, id string, patch models.SweetPatch) (*models.Sweet, error)
	DeleteSweet(ctx context.Context, id string) error
	RestockSweet(ctx context.Context, id string, qty int) (*models.Sweet, error)
	PurchaseSweet(ctx context.Context, sweetID, userID string, qty int) (*models.Purchase, int, error)

	Ping(ctx context.Context) error
}

type APIServer struct {
	config  *config.Config
	logger  *slog.Logger
	server  *http.Server
	storage Storage
	tokens  *jwt.Service
	hasher  *password.Hasher
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
}

// New wires the server. limiter may be nil, which disables rate limiting.
func New(
	config *config.Config,
	logger *slog.Logger,
	storage Storage,
	limiter ratelimit.Limiter,
	metrics *metrics.Metrics,
) *APIServer {
	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:         config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadTimeout:  config.HTTP.ReadTimeout,
			WriteTimeout: config.HTTP.WriteTimeout,
			IdleTimeout:  config.HTTP.IdleTimeout,
		},
		storage: storage,
		tokens:  jwt.New(config.Auth.JWTSecret, config.Auth.TokenTTL),
		hasher:  password.NewHasher(config.Auth.BcryptCost),
		limiter: limiter,
		metrics: metrics,
	}
	if !config.RateLimit.Enabled {
		s.limiter = nil
	}

	s.configureRouter()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

// Handler exposes the full middleware chain, mostly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, response.CodeNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, response.CodeNotFound, "Route not found")
	})
	router.Use(s.instrument)

	router.HandleFunc("/health", s.healthHandler()).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	auth := router.PathPrefix("/api/auth").Subrouter()
	auth.Use(s.rateLimit("auth", s.config.RateLimit.AuthMax, s.config.RateLimit.AuthWindow))
	auth.HandleFunc("/register", s.registerHandler()).Methods("POST")
	auth.HandleFunc("/login", s.loginHandler()).Methods("POST")

	sweets := router.PathPrefix("/api/sweets").Subrouter()
	sweets.Use(s.rateLimit("api", s.config.RateLimit.APIMax, s.config.RateLimit.APIWindow))
	sweets.HandleFunc("", s.authenticate(s.listSweetsHandler())).Methods("GET")
	sweets.HandleFunc("/search", s.authenticate(s.searchSweetsHandler())).Methods("GET")
	sweets.HandleFunc("/{id}/purchase", s.authenticate(s.purchaseHandler())).Methods("POST")
	sweets.HandleFunc("", s.authenticate(s.requireRole(models.RoleAdmin, s.createSweetHandler()))).Methods("POST")
	sweets.HandleFunc("/{id}", s.authenticate(s.requireRole(models.RoleAdmin, s.updateSweetHandler()))).Methods("PUT")
	sweets.HandleFunc("/{id}", s.authenticate(s.requireRole(models.RoleAdmin, s.deleteSweetHandler()))).Methods("DELETE")
	sweets.HandleFunc("/{id}/restock", s.authenticate(s.requireRole(models.RoleAdmin, s.restockHandler()))).Methods("POST")

	s.server.Handler = s.recoverer(s.logRequests(s.securityHeaders(s.cors(router))))
}
