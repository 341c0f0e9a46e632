package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sessiond/sessiond/pool/errs"
)

func (s *Server) handleHealth(c *gin.Context) {
	st := s.statsFn()
	status := http.StatusOK
	health := "ok"
	if st.Degraded {
		status = http.StatusServiceUnavailable
		health = "degraded"
	}
	c.JSON(status, gin.H{"status": health, "pool": st})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.store.CreateSession(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	sessions, err := s.store.ListSessions(c.Request.Context(), userID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleSessionMessages(c *gin.Context) {
	messages, err := s.store.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) handleAppendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := s.store.AppendMessage(c.Request.Context(), c.Param("id"), req.Role, req.Content)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// storeError maps store failures to responses. Pool pressure and
// shutdown come back as 503 so callers shed load; everything else is a
// plain 500 with the low-level cause kept out of the body.
func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errs.IsExhaustedErr(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy, retry later"})
	case errs.IsClosedErr(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
	default:
		log.WithError(err).Error("store request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
