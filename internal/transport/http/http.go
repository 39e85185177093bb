// Package http implements the REST adapter over the table registry, using
// gin the way the reference server's main.go wires its router: thin
// handlers that translate JSON bodies into registry/actor calls and map
// core errors through gameerr.ToWireMessage so no internal detail leaks.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"holdem-core/internal/gameerr"
	"holdem-core/internal/hsm"
	"holdem-core/internal/registry"
	"holdem-core/internal/wallet"
)

// Server wraps the registry with the HTTP routes spec §6.1 names.
type Server struct {
	reg *registry.Registry
}

func NewServer(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

// Register attaches every route this adapter owns to an existing gin
// engine, so callers can compose it with auth/session routes they own.
func (s *Server) Register(router gin.IRouter) {
	router.GET("/api/tables", s.listTables)
	router.POST("/api/tables", s.createTable)
	router.POST("/api/tables/:id/join", s.joinTable)
	router.POST("/api/tables/:id/leave", s.leaveTable)
}

// createTable is the admin-facing spawn endpoint; spec §6.1 only names
// join/leave/list over the wire but something has to exercise
// Registry.CreateTable, and this is where the reference server's admin
// routes would live.
func (s *Server) createTable(c *gin.Context) {
	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "message": "invalid_message"})
		return
	}
	id, err := s.reg.CreateTable(c.Request.Context(), req.Settings, req.StepTimeout, req.ActionTimeout, req.TopUpCooldown)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"type": "error", "message": gameerr.ToWireMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "ok", "table_id": id})
}

func (s *Server) listTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": s.reg.ListTables()})
}

func (s *Server) joinTable(c *gin.Context) {
	tableID := c.Param("id")
	var req struct {
		BuyInAmount    uint64 `json:"buy_in_amount"`
		User           string `json:"user"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "message": "invalid_message"})
		return
	}

	actor, err := s.reg.GetHandle(tableID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"type": "error", "message": gameerr.ToWireMessage(err)})
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = wallet.NewIdempotencyKey("join", tableID, req.User, time.Now())
	}

	reply, err := actor.JoinTable(c.Request.Context(), req.User, req.BuyInAmount, key)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"type": "error", "message": "internal_error"})
		return
	}
	if reply.Err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"type": "error", "message": gameerr.ToWireMessage(reply.Err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "view", "view": reply.View})
}

func (s *Server) leaveTable(c *gin.Context) {
	tableID := c.Param("id")
	var req struct {
		User string `json:"user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "message": "invalid_message"})
		return
	}

	actor, err := s.reg.GetHandle(tableID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"type": "error", "message": gameerr.ToWireMessage(err)})
		return
	}

	reply, err := actor.LeaveTable(c.Request.Context(), req.User)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"type": "error", "message": "internal_error"})
		return
	}
	if reply.Err != nil {
		// not-at-table is soft OK per spec §6.1.
		if ue, ok := reply.Err.(*gameerr.UserError); ok && ue.Kind == gameerr.NotAtTable {
			c.JSON(http.StatusOK, gin.H{"type": "ok"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"type": "error", "message": gameerr.ToWireMessage(reply.Err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "ok"})
}

// CreateTableRequest is the admin-facing body for spawning a new table; not
// named directly in spec §6.1 (which only covers join/leave/list) but
// needed to exercise Registry.CreateTable over HTTP.
type CreateTableRequest struct {
	Settings      hsm.Settings
	StepTimeout   time.Duration
	ActionTimeout time.Duration
	TopUpCooldown time.Duration
}
