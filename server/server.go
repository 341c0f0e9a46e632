package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sessiond/sessiond/pool"
)

// Server is the HTTP boundary: session endpoints backed by the pooled
// store, plus a health endpoint reporting pool state.
type Server struct {
	store      Store
	statsFn    func() pool.Stats
	router     *gin.Engine
	httpServer *http.Server
}

func New(addr string, store Store, statsFn func() pool.Stats) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:   store,
		statsFn: statsFn,
		router:  router,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/sessions", s.handleCreateSession)
		api.POST("/sessions/:id/messages", s.handleAppendMessage)
		api.GET("/history", s.handleListSessions)
		api.GET("/history/:id", s.handleSessionMessages)
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	log.WithField("address", s.httpServer.Addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
