// Package api is the local HTTP surface a UI uses to read the timetable,
// edit entries and follow the bells.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"classbell/internal/bell"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

// Config mirrors the api section of the config file.
type Config struct {
	Enabled bool
	Addr    string
	// Pprof exposes /debug/pprof on the same listener.
	Pprof bool
}

// StatusSource reports the bell status. *bell.Scheduler satisfies it.
type StatusSource interface {
	Status() bell.Status
	Now() time.Time
}

// Server owns the HTTP listener. Apply starts, moves or stops it.
type Server struct {
	store  *timetable.Store
	bells  StatusSource
	loc    *time.Location
	log    logx.Logger
	engine *gin.Engine
	pprof  atomic.Bool

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	addr string
}

func New(store *timetable.Store, bells StatusSource, loc *time.Location, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Server{store: store, bells: bells, loc: loc, log: log.With(logx.String("comp", "api"))}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/resolve", s.getResolve)
		api.GET("/timelines", s.listTimelines)
		api.POST("/timelines", s.createTimeline)
		api.PUT("/timelines/:id", s.updateTimeline)
		api.DELETE("/timelines/:id", s.deleteTimeline)
		api.POST("/timelines/:id/duplicate", s.duplicateTimeline)
		api.GET("/timelines/:id/occurrences", s.getOccurrences)
		api.POST("/timelines/:id/entries", s.addEntry)
		api.DELETE("/timelines/:id/entries/:entry", s.removeEntry)
		api.GET("/export", s.exportJSON)
		api.POST("/import", s.importJSON)
		api.GET("/export.ics", s.exportICS)
		api.GET("/export.xlsx", s.exportXLSX)
	}
	s.mountPprof(r)
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if !s.log.Enabled(logx.LevelDebug) {
			return
		}
		s.log.Debug("request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		)
	}
}

// Apply starts or stops the listener according to cfg.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	s.pprof.Store(cfg.Pprof)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == cfg.Addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(cfg)
}

func (s *Server) startLocked(cfg Config) {
	srv := &http.Server{Addr: cfg.Addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("api listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}
	s.srv = srv
	s.ln = ln
	s.addr = cfg.Addr
	bound := ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("api server error", logx.String("addr", bound), logx.Err(err))
		}
	}()
	s.log.Info("api listening", logx.String("addr", bound))
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, ln := s.srv, s.ln
	s.srv, s.ln, s.addr = nil, nil, ""

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("api shutdown error", logx.Err(err))
	}
	_ = ln.Close()
	s.log.Info("api stopped")
}

// Addr is the bound listen address, empty when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
