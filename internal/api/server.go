// Package api serves the shared report page, its drilldown and report JSON
// endpoints, and the websocket used by the report chat assistant.
package api

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"reportview/internal/assistant"
	"reportview/internal/logging"
	"reportview/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ReportLoader loads a report and applies the link access checks.
// report.Loader satisfies it.
type ReportLoader interface {
	Load(ctx context.Context, id, token string) (*report.Report, error)
}

// GeneratorFactory builds the language model client for a view from the
// credential loaded with its report.
type GeneratorFactory func(apiKey string) (assistant.Generator, error)

// ServerConfig holds server configuration
type ServerConfig struct {
	// ViewTTL is how long a rendered report stays reachable for chat and drilldown.
	ViewTTL time.Duration
	// MaxViews caps the views held at once.
	MaxViews int
	// ChatTimeout bounds each assistant request.
	ChatTimeout time.Duration
	// Location is the time zone dates are shown in. Defaults to Vietnam time.
	Location *time.Location
}

// vietnamTime is UTC+7 without daylight saving.
var vietnamTime = time.FixedZone("ICT", 7*60*60)

// Server holds dependencies and provides HTTP handlers
type Server struct {
	loader       ReportLoader
	newGenerator GeneratorFactory
	views        *viewRegistry
	templates    *template.Template
	upgrader     websocket.Upgrader
	config       ServerConfig
	logger       *logging.Logger
	now          func() time.Time
}

// NewServer parses the embedded templates and creates the server.
// newGenerator may be nil, which leaves the assistant unavailable.
func NewServer(loader ReportLoader, newGenerator GeneratorFactory, config ServerConfig, logger *logging.Logger) (*Server, error) {
	if config.ViewTTL <= 0 {
		config.ViewTTL = 2 * time.Hour
	}
	if config.MaxViews <= 0 {
		config.MaxViews = 500
	}
	if config.Location == nil {
		config.Location = vietnamTime
	}
	tmpl, err := template.New("").Funcs(templateFuncs(config.Location)).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	if config.ChatTimeout <= 0 {
		config.ChatTimeout = 60 * time.Second
	}

	return &Server{
		loader:       loader,
		newGenerator: newGenerator,
		views:        newViewRegistry(config.ViewTTL, config.MaxViews),
		templates:    tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// RegisterRoutes sets up all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	// Page routes
	mux.HandleFunc("GET /r/{$}", s.handleReportPage)
	mux.HandleFunc("GET /r/{id}", s.handleReportPage)

	// API routes
	mux.HandleFunc("GET /api/reports/{$}", s.handleReportJSON)
	mux.HandleFunc("GET /api/reports/{id}", s.handleReportJSON)
	mux.HandleFunc("GET /api/views/{viewID}/rows/{index}", s.handleDrilldown)
	mux.HandleFunc("GET /health", s.handleHealth)

	// WebSocket
	mux.HandleFunc("GET /views/{viewID}/chat", s.handleChat)
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(mux)
}

// StartSweeper drops expired views every interval until ctx is done.
func (s *Server) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.views.Sweep(); n > 0 {
					s.logger.WithContext("removed", n).Debug("expired views swept")
				}
			}
		}
	}()
}
