// Package dashboard serves a read-mostly HTTP view of the contract store:
// an HTML overview, a JSON API, a server-sent event stream of phase changes
// and the Prometheus metrics endpoint.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/obra"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Store   *obra.Store
	Tracker *fases.Tracker
	Metrics *metrics.Metrics
	Events  *Events // optional; nil serves a stream that only says hello
	Port    int
	Out     io.Writer
	Now     func() time.Time // defaults to time.Now
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the Gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("dashboard: store is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("dashboard: tracker is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	router := gin.New()
	// Expediente numbers may contain an escaped slash.
	router.UseRawPath = true
	router.Use(gin.Recovery())

	// Parse embedded templates.
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, opts)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
