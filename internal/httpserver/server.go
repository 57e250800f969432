// Package httpserver exposes the search log over a small JSON API: an
// ingest hook for the host, the admin table query, and the token-gated
// clear and export actions.
package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"github.com/searchtrail/searchtrail/internal/export"
	"github.com/searchtrail/searchtrail/internal/model"
	"github.com/searchtrail/searchtrail/internal/queryengine"
	"github.com/searchtrail/searchtrail/internal/searchlog"
)

const (
	clearFailedMsg  = "An error occurred while clearing records."
	clearOKMsg      = "All records have been successfully cleared."
	exportFailedMsg = "An error occurred during export."
	exportOKMsg     = "Export completed successfully."
)

// Server provides the HTTP surface over one searchlog.Service.
type Server struct {
	addr       string
	svc        *searchlog.Service
	adminToken string
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// NewServer creates the HTTP server. adminToken gates the clear and
// export actions; an empty token disables them entirely rather than
// leaving them open.
func NewServer(addr string, svc *searchlog.Service, adminToken string) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		svc:        svc,
		adminToken: adminToken,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.registerRoutes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	log.Info().Str("addr", s.addr).Msg("search log API listening")

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/api/health", s.handleHealth)
	r.POST("/api/search", s.handleSearch)
	r.GET("/api/search-log", s.handleSearchLog)
	r.POST("/api/search-log/clear", s.handleClear)
	r.POST("/api/search-log/export", s.handleExport)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"event_count": s.svc.EventCount(),
	})
}

// handleSearch is the host's ingest hook. It always accepts: a failed log
// write must never surface to the visitor-facing search.
func (s *Server) handleSearch(c *gin.Context) {
	// Dispatch on Content-Type before touching the body: a failed JSON
	// bind drains the request, leaving nothing for the form parser.
	var query string
	if c.ContentType() == gin.MIMEJSON {
		var req struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			query = req.Query
		}
	} else {
		// Form posts carry the query in the host's s parameter.
		query = c.PostForm("s")
	}
	s.svc.OnSearch(query)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleSearchLog(c *gin.Context) {
	vs := queryengine.ViewStateFromValues(c.Request.URL.Query())
	page := s.svc.OnAdminView(vs)

	records := make([]gin.H, 0, len(page.Records))
	for _, r := range page.Records {
		records = append(records, gin.H{
			"search_query":    r.Query,
			"last_query_date": r.Day.Format(model.DayLayout),
			"query_count":     r.Count,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"records":     records,
		"total":       page.Total,
		"total_pages": page.TotalPages,
		"page":        page.Page,
		"per_page":    page.PerPage,
	})
}

func (s *Server) handleClear(c *gin.Context) {
	if !s.authorized(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": clearFailedMsg})
		return
	}
	if err := s.svc.Clear(); err != nil {
		log.Error().Err(err).Msg("clearing search log failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": clearFailedMsg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": clearOKMsg})
}

func (s *Server) handleExport(c *gin.Context) {
	if !s.authorized(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": exportFailedMsg})
		return
	}

	artifact, err := s.svc.Export()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, export.ErrNoData) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Msg("exporting search log failed")
		c.JSON(status, gin.H{"success": false, "message": exportFailedMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       exportOKMsg,
		"download_url":  artifact.URL,
		"download_text": artifact.Label,
	})
}

// authorized performs the anti-forgery token check for admin actions. The
// token is read from the X-Admin-Token header or a nonce form field; the
// comparison is constant time.
func (s *Server) authorized(c *gin.Context) bool {
	if s.adminToken == "" {
		return false
	}
	token := c.GetHeader("X-Admin-Token")
	if token == "" {
		token = c.PostForm("nonce")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) == 1
}
