package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dispatch/internal/notify"
)

// WSHandler upgrades subscriber connections and registers them with the
// notification hub.
type WSHandler struct {
	hub    *notify.WSHub
	logger *slog.Logger
	up     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *notify.WSHub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin access is governed by the gateway in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /v1/ws/notifications/:recipient
func (h *WSHandler) Subscribe(c *gin.Context) {
	recipientID := c.Param("recipient")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "recipient is required"})
		return
	}

	conn, err := h.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "recipient", recipientID, "error", err)
		return
	}

	h.hub.Add(recipientID, conn)
	h.logger.Info("notification subscriber connected", "recipient", recipientID)

	// Reads only serve to detect disconnects; subscribers never send.
	go func() {
		defer func() {
			h.hub.Remove(recipientID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
