package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facetrack/internal/engine"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/pkg/dto"
)

type EngineHandler struct {
	appCtx   context.Context
	engine   *engine.Engine
	registry *registry.Registry
}

// NewEngineHandler wires the engine control endpoints. appCtx bounds the
// engine loop's lifetime to the process, not to any single request.
func NewEngineHandler(appCtx context.Context, eng *engine.Engine, reg *registry.Registry) *EngineHandler {
	return &EngineHandler{appCtx: appCtx, engine: eng, registry: reg}
}

func (h *EngineHandler) Start(c *gin.Context) {
	h.engine.Start(h.appCtx)
	h.Status(c)
}

func (h *EngineHandler) Stop(c *gin.Context) {
	h.engine.Stop()
	h.Status(c)
}

func (h *EngineHandler) Status(c *gin.Context) {
	resp := dto.EngineStatusResponse{
		Running:       h.engine.Running(),
		DetectorReady: h.engine.DetectorReady(),
		InsideCount:   h.engine.Tracker().InsideCount(),
	}
	if d, ok := h.registry.ActiveDescriptor(); ok {
		resp.ActiveModel = d.Name
	}
	c.JSON(http.StatusOK, resp)
}
