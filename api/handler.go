package api

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/pthm-cable/drift/game"
)

// Handler serves the read-only status API from a Board.
type Handler struct {
	Board *Board
}

// RegisterRoutes installs CORS and the /api routes on s.
func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())
	g := s.Group("/api")
	g.GET("/agents", h.agents)
	g.GET("/agents/:id", h.agent)
	g.GET("/stats", h.stats)
}

// agents lists agent views, optionally filtered by ?state=, ?role= and ?sector=.
func (h Handler) agents(_ context.Context, ctx *app.RequestContext) {
	state := string(ctx.Query("state"))
	role := string(ctx.Query("role"))
	sector := -1
	if raw := string(ctx.Query("sector")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorBody(ctx, consts.StatusBadRequest, "invalid_sector", "sector must be a non-negative integer")
			return
		}
		sector = n
	}

	out := make([]game.AgentView, 0)
	for _, v := range h.Board.Agents() {
		if state != "" && v.State != state {
			continue
		}
		if role != "" && v.Role != role {
			continue
		}
		if sector >= 0 && int(v.Sector) != sector {
			continue
		}
		out = append(out, v)
	}
	ctx.JSON(consts.StatusOK, map[string]any{"agents": out})
}

func (h Handler) agent(_ context.Context, ctx *app.RequestContext) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_id", "agent id must be a number")
		return
	}
	d, ok := h.Board.Agent(uint32(id))
	if !ok {
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", "no live agent with that id")
		return
	}
	ctx.JSON(consts.StatusOK, d)
}

func (h Handler) stats(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.Board.Status())
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
