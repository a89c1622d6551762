// Package web serves the Changeboard HTML pages and JSON API.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/cache"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/counters"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/workflow"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the web server.
type StartOpts struct {
	DB       *gorm.DB
	Config   *config.Config
	Port     int
	Out      io.Writer
	Counters *counters.Aggregator
	// Observers receive every BCR change in addition to the counters.
	Observers events.Observers
}

// lookupTTL bounds how long phase and reference lists are served from memory.
const lookupTTL = time.Minute

// server bundles the handler dependencies.
type server struct {
	db       *gorm.DB
	cfg      *config.Config
	bcrs     *bcr.Service
	flow     *workflow.Service
	counters *counters.Aggregator
	phases   *cache.Cache[string, []models.Phase]
	refs     *cache.Cache[string, []string]
	md       goldmark.Markdown
}

func newServer(opts StartOpts) (*server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("web: db is required")
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Parse([]byte("{}")); err != nil {
			return nil, fmt.Errorf("web: default config: %w", err)
		}
	}
	agg := opts.Counters
	if agg == nil {
		agg = counters.New(opts.DB, cfg.Counters.TTL)
	}
	observers := append(events.Observers{agg}, opts.Observers...)
	return &server{
		db:       opts.DB,
		cfg:      cfg,
		bcrs:     bcr.NewService(opts.DB, observers...),
		flow:     workflow.NewService(opts.DB, observers...),
		counters: agg,
		phases:   cache.New[string, []models.Phase](),
		refs:     cache.New[string, []string](),
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	s, err := newServer(opts)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if s.cfg.IsDevelopment() {
		router.Use(gin.Logger())
	}
	router.Use(actorMiddleware(s))

	tmpl, err := parseTemplates(s)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, s)
	return router, nil
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Changeboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates(s *server) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(s.funcMap()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// allPhases returns the ordered phase list through the lookup cache.
func (s *server) allPhases() ([]models.Phase, error) {
	return s.phases.GetOrSet("all", lookupTTL, func() ([]models.Phase, error) {
		return workflow.AllPhases(s.db)
	})
}
