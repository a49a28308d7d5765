package controller

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/tawtheeq/tawtheeq-backend/internal/errors"
	"github.com/tawtheeq/tawtheeq-backend/internal/middleware"
	ws "github.com/tawtheeq/tawtheeq-backend/internal/websocket"
)

type WSController struct {
	hub *ws.Hub
}

func NewWSController(hub *ws.Hub) *WSController {
	return &WSController{hub: hub}
}

// Connect upgrades a staff connection to receive live submission events
// GET /api/v1/admin/ws
func (ctrl *WSController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ws.Serve(ctrl.hub, c.Writer, c.Request, userID); err != nil {
		log.Error("WebSocket upgrade failed", err, map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	log.Info("Staff WebSocket connected", map[string]interface{}{
		"user_id": userID,
	})
}
