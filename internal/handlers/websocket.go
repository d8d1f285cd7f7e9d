package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ManYouOriginal/ChatTest/internal/services"
	internalWebsocket "github.com/ManYouOriginal/ChatTest/internal/websocet"

	libWebsocket "github.com/gorilla/websocket"

	"github.com/gin-gonic/gin"
)

type WebsocketHandler struct {
	registry       *internalWebsocket.Registry
	authService    *services.AuthService
	allowedOrigins []string
	logger         *slog.Logger
}

func NewWebsocketHandler(registry *internalWebsocket.Registry, authService *services.AuthService, allowedOrigins []string, logger *slog.Logger) *WebsocketHandler {
	return &WebsocketHandler{
		registry:       registry,
		authService:    authService,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// HandleWebSocket validates the bearer credential before the channel is
// accepted; an invalid credential refuses the connection outright instead of
// upgrading it.
func (h *WebsocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if cookie, err := c.Request.Cookie("token"); err == nil {
			token = cookie.Value
		}
	}

	userID, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("unauthorized websocket connection attempt", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	upgrader := libWebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := internalWebsocket.NewClient(h.registry, conn, userID)
	h.registry.Connect(c.Request.Context(), client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket connection established", "userID", userID)
}

func (h *WebsocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
