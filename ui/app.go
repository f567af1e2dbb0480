package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"blockrand/app"
	uimiddleware "blockrand/ui/middleware"
	"blockrand/ui/templates/fragments"
)

//go:embed templates/*.html templates/fragments/*.html static/*
var embeddedFiles embed.FS

// App represents the dashboard application
type App struct {
	router     *chi.Mux
	enrollment *app.EnrollmentService
	balance    *app.BalanceReporter
	api        http.Handler
	templates  *template.Template
	config     Config
}

// Config holds UI application configuration
type Config struct {
	Port  string
	Title string
	// LogLimit caps the rows shown in the assignment log; 0 shows all
	LogLimit int
}

// NewApp creates the dashboard. api, when non-nil, serves /api/* and /healthz.
func NewApp(config Config, enrollment *app.EnrollmentService, balance *app.BalanceReporter, api http.Handler) (*App, error) {
	if enrollment == nil || balance == nil {
		return nil, fmt.Errorf("enrollment service and balance reporter are required")
	}
	if config.Title == "" {
		config.Title = "Stratified Block Randomization"
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	a := &App{
		router:     chi.NewRouter(),
		enrollment: enrollment,
		balance:    balance,
		api:        api,
		templates:  templates,
		config:     config,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

func parseTemplates() (*template.Template, error) {
	templates, err := template.New("").ParseFS(embeddedFiles, fragments.GetAllTemplatePaths()...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(uimiddleware.VerifyBalance(a.enrollment.Engine().Tracker()))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Post("/assign", a.handleAssign)

	// HTMX fragment endpoints
	a.router.Get("/fragments/balance", a.handleFragmentBalance)
	a.router.Get("/fragments/log", a.handleFragmentLog)

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Printf("[UI] Error creating static filesystem: %v", err)
	} else {
		a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	if a.api != nil {
		a.router.Mount("/api", a.api)
		a.router.Handle("/healthz", a.api)
	}
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled
func (a *App) Start(ctx context.Context) error {
	port := a.config.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[UI] Starting dashboard on :%s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("[UI] Shutting down dashboard")
		return srv.Shutdown(shutdownCtx)
	}
}

// HTMX helpers
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
