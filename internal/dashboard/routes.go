package dashboard

import (
	"errors"
	"io/fs"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/models"
	"github.com/zulandar/obras/internal/obra"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Pages.
	router.GET("/", handleIndex(opts.Store, opts.Tracker))

	// JSON API.
	api := router.Group("/api")
	api.GET("/obras", handleList(opts.Store))
	api.GET("/obras/:name", handleObra(opts.Store))
	api.GET("/obras/:name/progress", handleProgress(opts.Tracker))
	api.GET("/obras/:name/activity", handleActivity(opts.Tracker))
	api.POST("/obras/:name/fases/:phase/firmado", handleSign(opts.Tracker, opts.Now))
	api.DELETE("/obras/:name/fases/:phase/firmado", handleUnsign(opts.Tracker))
	api.GET("/events", handleSSE(opts.Events))

	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
}

func handleIndex(store *obra.Store, tracker *fases.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"rows": overview(store, tracker),
		})
	}
}

func handleList(store *obra.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, store.List())
	}
}

func handleObra(store *obra.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := store.Resolve(c.Param("name"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		o, err := store.Read(m.Name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"match": m.Kind.String(), "obra": o})
	}
}

func handleProgress(tracker *fases.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := tracker.Progress(c.Param("name"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleActivity(tracker *fases.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
				return
			}
			limit = n
		}
		seq, err := tracker.ActivityLog(c.Param("name"), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entries := slices.Collect(seq)
		if entries == nil {
			entries = []fases.Activity{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

// signRequest is the optional body of a sign request.
type signRequest struct {
	Date string `json:"date"`
}

func handleSign(tracker *fases.Tracker, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := fases.ParsePhase(c.Param("phase"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var req signRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		date := now()
		if req.Date != "" {
			date, err = time.Parse(models.DateLayout, req.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
		}
		if err := tracker.MarkSigned(c.Param("name"), p, date); err != nil {
			abortWithError(c, err)
			return
		}
		entry, err := tracker.Entry(c.Param("name"), p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func handleUnsign(tracker *fases.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := fases.ParsePhase(c.Param("phase"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tracker.UnmarkSigned(c.Param("name"), p); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// abortWithError maps store errors to HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, obra.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, obra.ErrInvalidPatch), errors.Is(err, obra.ErrDuplicateName):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
