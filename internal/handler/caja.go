package handler

import (
	"net/http"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/middleware"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct {
	svc      service.CajaService
	ventaSvc service.VentaService
}

func NewCajaHandler(svc service.CajaService, ventaSvc service.VentaService) *CajaHandler {
	return &CajaHandler{svc: svc, ventaSvc: ventaSvc}
}

// Listar godoc
// @Summary Lista las cajas activas de una sucursal
// @Tags cajas
// @Produce json
// @Security BearerAuth
// @Param sucursal_id query string false "Sucursal (por defecto la del token)"
// @Success 200 {array} dto.CajaResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/cajas [get]
func (h *CajaHandler) Listar(c *gin.Context) {
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
	resp, err := h.svc.Listar(c.Request.Context(), sucursalID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AperturaActiva godoc
// @Summary Obtiene la apertura abierta de una caja
// @Tags cajas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Success 200 {object} dto.AperturaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cajas/{id}/apertura [get]
func (h *CajaHandler) AperturaActiva(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.AperturaActiva(c.Request.Context(), op, cajaID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Abrir godoc
// @Summary Abre un turno en la caja
// @Tags cajas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Param body body dto.AbrirCajaRequest true "Monto inicial"
// @Success 201 {object} dto.AperturaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/cajas/{id}/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), op, cajaID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ResumenPrevio godoc
// @Summary Resumen de cierre calculado sobre las ventas finalizadas
// @Tags cajas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Success 200 {object} dto.ResumenPrevioResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cajas/{id}/resumen-previo [get]
func (h *CajaHandler) ResumenPrevio(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.ResumenPrevio(c.Request.Context(), op, cajaID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

// Cerrar godoc
// @Summary Cierra el turno con el conteo de efectivo
// @Tags cajas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Param body body dto.CerrarCajaRequest true "Conteo final"
// @Success 200 {object} dto.AperturaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cajas/{id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), op, cajaID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ventas godoc
// @Summary Ventas de la apertura abierta de la caja
// @Tags cajas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Success 200 {array} dto.VentaResponse
// @Router /v1/cajas/{id}/ventas [get]
func (h *CajaHandler) Ventas(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.ventaSvc.ListarPorCaja(c.Request.Context(), op, cajaID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
