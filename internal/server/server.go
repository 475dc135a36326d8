// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go opens the database and builds the verifier, then:
//
//	Server.New() creates: gormdb.Store → services → handlers → routes
//
// All dependencies are wired here (the "composition root"), so tests can
// build the same router around an in-memory database and a stub verifier.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
	"github.com/f3-invigorate/invigorate/internal/handler"
	"github.com/f3-invigorate/invigorate/internal/middleware"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository/gormdb"
	"github.com/f3-invigorate/invigorate/internal/service"
	"github.com/f3-invigorate/invigorate/internal/web"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database handle it is given. Start closes it after
// the last in-flight request has finished.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *gorm.DB
	store  *gormdb.Store
}

// New wires the application around an open, migrated database and a
// credential verifier.
//
// Each layer only receives what it needs:
//   - services get repository interfaces (not *gorm.DB)
//   - handlers get services (behind small interfaces)
//   - the Authenticator gets the verifier and the identity service
func New(cfg *config.Config, db *gorm.DB, verifier auth.CredentialVerifier, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		store:  gormdb.New(db),
	}

	if err := s.setupRoutes(verifier); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /, /signup                → public pages
// GET  /dashboard and the forms  → pages, redirect to /signup without a session
// GET  /static/*                 → embedded JS and CSS
// GET  /healthz                  → database ping
// POST /api/athlete/create       → signup (bearer token)
// POST /api/f3him/create         → signup as HIM (bearer token)
// POST /api/auth/set-token       → store ID token in the session cookie
// POST /api/auth/logout          → clear the cookie
// GET  /api/me                   → session user
// GET  /api/dashboard            → dashboard summary (JSON)
// POST /api/attendance/self      → self attendance
// POST /api/backblast/create     → backblast (HIM only)
// POST /api/effort/manual        → manual effort
// POST /api/reflection/week      → weekly reflection
// POST /api/self-report/new      → self-report
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, so every later log line can carry it
//  2. RealIP, so the logger sees the client and not the proxy
//  3. Logger
//  4. Recoverer, inside the logger so a panic is logged as a 500
func (s *Server) setupRoutes(verifier auth.CredentialVerifier) error {
	loc, err := s.config.Location()
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	users := s.store.Users()
	records := s.store.Records()

	identities := service.NewIdentityService(users, s.logger)
	attendance := service.NewAttendanceService(users, records, loc, s.logger)
	efforts := service.NewEffortService(records, loc, s.logger)
	reflections := service.NewReflectionService(records, s.logger)
	selfReports := service.NewSelfReportService(records, s.logger)
	dashboard := service.NewDashboardService(s.store.Dashboard(), loc, nil)

	// === Auth ===
	resp := handler.NewResponder(s.logger, s.config.ExposeErrorDetails)
	sessions := auth.NewSessionStore(s.config.IsProduction())
	authn := auth.NewAuthenticator(sessions, verifier, identities, resp.Error, s.logger)

	// === Handlers ===
	identityHandler := handler.NewIdentityHandler(verifier, identities, resp, s.logger)
	sessionHandler := handler.NewSessionHandler(sessions, resp)
	recordHandler := handler.NewRecordHandler(attendance, efforts, reflections, selfReports, resp)
	dashboardHandler := handler.NewDashboardHandler(dashboard, resp)

	pages, err := handler.NewPageHandler(authn, dashboard, handler.FirebaseWebConfig{
		APIKey:     s.config.Firebase.WebAPIKey,
		AuthDomain: s.config.Firebase.AuthDomain,
		ProjectID:  s.config.Firebase.ProjectID,
	}, loc, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// === Static Files ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
	s.router.Get("/healthz", s.handleHealth)

	// === Page Routes ===
	s.router.Get("/", pages.HandleSplash)
	s.router.Get("/signup", pages.HandleSignup)
	s.router.Get("/dashboard", pages.HandleDashboard)
	s.router.Get("/attendance/self", pages.HandleAttendance)
	s.router.Get("/effort/manual", pages.HandleEffort)
	s.router.Get("/reflection/week", pages.HandleReflection)
	s.router.Get("/self-report/new", pages.HandleSelfReport)
	s.router.Get("/backblast/create", pages.HandleBackblast)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Bearer-token signup, no session yet.
		r.Post("/athlete/create", identityHandler.HandleCreateAthlete)
		r.Post("/f3him/create", identityHandler.HandleCreateF3HIM)

		r.Post("/auth/set-token", sessionHandler.HandleSetToken)
		r.Post("/auth/logout", sessionHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireUser)

			r.Get("/me", sessionHandler.HandleMe)
			r.Get("/dashboard", dashboardHandler.HandleSummary)
			r.Post("/attendance/self", recordHandler.HandleSelfAttendance)
			r.Post("/effort/manual", recordHandler.HandleManualEffort)
			r.Post("/reflection/week", recordHandler.HandleReflection)
			r.Post("/self-report/new", recordHandler.HandleSelfReport)

			r.With(authn.RequireRole(model.RoleHIM)).
				Post("/backblast/create", recordHandler.HandleBackblast)
		})
	})

	return nil
}

// handleHealth reports whether the database answers. It is for load
// balancers, so the body stays tiny and the cause is only logged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT or SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database pool
func (s *Server) Start() error {
	defer func() {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
