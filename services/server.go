package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/interviewhelper/backend/repository"
	ws "github.com/interviewhelper/backend/websocket"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	repo               *repository.GORMRepository
	chatService        *ChatService
	sessions           *SessionCache
	interviewService   *InterviewService
	timeoutService     *InterviewTimeoutService
	authService        *AuthService
	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	websocketHandler   *WebSocketHandler
	wsHub              *ws.Hub
	cancel             context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(config *Config, repo *repository.GORMRepository) *Server {
	return &Server{
		config: config,
		repo:   repo,
	}
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.config.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is not configured")
	}

	ctx, s.cancel = context.WithCancel(ctx)

	completer, devMode, err := s.newCompleter(ctx)
	if err != nil {
		return err
	}
	s.chatService = NewChatService(completer, devMode)
	slog.Info("Chat service initialized", "provider", completer.Provider(), "dev_mode", devMode)

	s.sessions = NewSessionCache(s.config.Session.TTL)
	cleanup := s.config.Session.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	s.sessions.StartCleanup(ctx, cleanup)

	s.interviewService = NewInterviewService(s.repo, s.chatService, s.sessions)

	s.timeoutService = NewInterviewTimeoutService(s.interviewService, s.config.Interview.TimeoutSchedule, s.config.Interview.IdleTimeout)
	if err := s.timeoutService.Start(); err != nil {
		return err
	}

	validator := NewRequestValidator()
	s.authService = NewAuthService(s.repo, s.config.JWT)
	s.authEndpoints = NewAuthEndpoints(s.authService, validator)
	s.interviewEndpoints = NewInterviewEndpoints(s.interviewService, validator)
	slog.Info("Authentication service initialized")

	s.wsHub = ws.NewHub()
	go s.wsHub.Run(ctx)
	s.websocketHandler = NewWebSocketHandler(s.interviewService, s.wsHub, s.config.WebSocket.AllowedOrigins)
	slog.Info("WebSocket handler initialized")

	return nil
}

// newCompleter picks the configured chat provider. Development mode is on
// whenever the provider credentials are missing or placeholders.
func (s *Server) newCompleter(ctx context.Context) (Completer, bool, error) {
	switch strings.ToLower(s.config.AI.Provider) {
	case "gemini":
		devMode := IsDevelopmentCredential(s.config.Gemini.APIKey)
		client, err := NewGeminiClient(ctx, s.config.Gemini.APIKey, s.config.Gemini.Model, s.config.GigaChat.Temperature, s.config.GigaChat.MaxTokens)
		if err != nil {
			return nil, false, err
		}
		return client, devMode, nil
	case "", "gigachat":
		devMode := IsDevelopmentCredential(s.config.GigaChat.ClientID)
		return NewGigaChatClient(s.config.GigaChat), devMode, nil
	default:
		return nil, false, fmt.Errorf("unknown AI provider %q", s.config.AI.Provider)
	}
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.CORS.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", MetricsHandler())

	// Sockets outlive the request timeout
	r.Group(func(r chi.Router) {
		r.Use(s.authService.Middleware)
		r.Get("/interview/{interviewId}/ws", s.websocketHandler.ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		timeout := s.config.Server.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		r.Use(middleware.Timeout(timeout))

		s.authEndpoints.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			s.interviewEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Shutdown()

	slog.Info("Server exited")
}

// Shutdown stops background workers
func (s *Server) Shutdown() {
	if s.timeoutService != nil {
		s.timeoutService.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	allowedOrigins := splitOrigins(allowedOriginsStr)
	if len(allowedOrigins) == 0 {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{Status: "ok", Database: "up"}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "down"
	}
	if s.sessions != nil {
		response.Sessions = s.sessions.Len()
	}

	writeJSON(w, http.StatusOK, response)
	slog.Debug("Health check", "status", response.Status, "database", response.Database)
}
