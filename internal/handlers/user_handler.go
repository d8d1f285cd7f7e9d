package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	presence ports.PresenceStore
	logger   *slog.Logger
}

func NewUserHandler(presence ports.PresenceStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{presence: presence, logger: logger}
}

// GetUsers is the non-streaming read surface for the online list.
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.presence.ListOnline(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, users)
}
