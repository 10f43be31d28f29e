package handler

import (
	"net/http"

	"bersapos/internal/apierror"
	"bersapos/internal/middleware"
	"bersapos/internal/realtime"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EventosHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewEventosHandler(hub *realtime.Hub) *EventosHandler {
	return &EventosHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Terminals are not browsers; the bearer token is the access check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Suscribir godoc
// @Summary Canal websocket de eventos de caja y catálogo de una sucursal
// @Tags eventos
// @Security BearerAuth
// @Param sucursal_id query string false "Sucursal (por defecto la del token)"
// @Success 101
// @Failure 400 {object} apierror.APIError
// @Router /v1/eventos [get]
func (h *EventosHandler) Suscribir(c *gin.Context) {
	raw := c.Query("sucursal_id")
	if raw == "" {
		if claims := middleware.GetClaims(c); claims != nil {
			raw = claims.SucursalID
		}
	}
	sucursalID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("sucursal_id inválido"))
		return
	}
	if !sucursalPermitida(c, sucursalID.String()) {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("realtime: upgrade fallido")
		return
	}
	log.Debug().Str("sucursal_id", sucursalID.String()).Msg("realtime: terminal conectado")
	h.hub.Atender(c.Request.Context(), conn, sucursalID.String())
}
