package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/volspike/wallet-auth/internal/config"
	"github.com/volspike/wallet-auth/internal/logger"
	"github.com/volspike/wallet-auth/internal/metrics"
	"github.com/volspike/wallet-auth/internal/middleware"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

// Server represents the HTTP server
type Server struct {
	config         *config.Config
	authService    AuthService
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	httpServer     *http.Server
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	authService AuthService,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
) *Server {
	return &Server{
		config:         cfg,
		authService:    authService,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
	}
}

// Handler builds the route tree. Split from Start so tests can drive the
// mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated surface
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/v1/auth/nonce", s.handleNonce)
	mux.HandleFunc("/v1/auth/message", s.handleMessage)
	mux.HandleFunc("/v1/auth/evm/verify", s.handleVerifyEVM)
	mux.HandleFunc("/v1/auth/solana/verify", s.handleVerifySolana)

	mux.HandleFunc("/v1/deeplink/start", s.handleDeepLinkStart)
	mux.HandleFunc("/v1/deeplink/callback", s.handleDeepLinkCallback)
	mux.HandleFunc("/v1/deeplink/sign-url", s.handleDeepLinkSignURL)

	// Bearer-authenticated surface
	mux.Handle("/v1/me", s.authMiddleware.Authenticate(http.HandlerFunc(s.handleMe)))
	mux.Handle("/v1/me/wallets", s.authMiddleware.Authenticate(http.HandlerFunc(s.handleMeWallets)))

	// Chain: RequestID -> RateLimit -> LimitBody -> Logging -> Routes
	return middleware.RequestID(
		s.rateLimiter.Limit(
			middleware.LimitBody(
				s.loggingMiddleware(mux))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response. Unknown error types are flattened to
// a generic internal error, and error detail stays server-side: it is logged
// here and stripped from the body sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		appErr = apperrors.ErrInternalError
	}
	if appErr.Detail != "" {
		logger.Warn(r.Context(), "request failed",
			"code", appErr.Code,
			"detail", appErr.Detail,
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(&apperrors.AppError{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
	})
}

// decodeBody parses a JSON request body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request parameters",
			"request body must be valid JSON",
			http.StatusBadRequest,
		))
		return false
	}
	return true
}

// requirePost rejects non-POST methods.
func (s *Server) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, r, apperrors.New(
			apperrors.ErrCodeBadRequest,
			"Method not allowed",
			http.StatusMethodNotAllowed,
		))
		return false
	}
	return true
}
