package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/pkg/dto"
)

type ControlPublisher interface {
	PublishControl(cmd queue.ControlCommand) error
}

// SessionHandler forwards start/stop requests to the scanners.
type SessionHandler struct {
	control ControlPublisher
}

func NewSessionHandler(control ControlPublisher) *SessionHandler {
	return &SessionHandler{control: control}
}

func (h *SessionHandler) Start(c *gin.Context) {
	h.send(c, queue.ActionStart)
}

func (h *SessionHandler) Stop(c *gin.Context) {
	h.send(c, queue.ActionStop)
}

func (h *SessionHandler) send(c *gin.Context, action queue.ControlAction) {
	var req dto.SessionControlRequest
	// An empty body addresses every scanner.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := queue.ControlCommand{
		Action:      action,
		SessionID:   req.SessionID,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.control.PublishControl(cmd); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.SessionControlResponse{
		Action:    string(action),
		SessionID: req.SessionID,
		Status:    "sent",
	})
}
