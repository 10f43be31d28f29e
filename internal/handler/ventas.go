package handler

import (
	"net/http"

	"bersapos/internal/dto"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

// RegistrarVenta godoc
// @Summary      Registrar una nueva venta
// @Description  Crea una venta ACID sobre la apertura abierta: recalcula el redondeo, valida los pagos y descuenta stock.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RegistrarVentaRequest true "Detalle de la venta"
// @Success      201  {object} dto.VentaResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/ventas [post]
func (h *VentasHandler) RegistrarVenta(c *gin.Context) {
	var req dto.RegistrarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), op, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AnularVenta godoc
// @Summary      Anular venta
// @Description  Anula una venta finalizada y restaura su stock. Irreversible.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                 true "UUID de la venta"
// @Param        body body     dto.AnularVentaRequest true "Motivo de anulación"
// @Success      204
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventas/{id}/anular [post]
func (h *VentasHandler) AnularVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AnularVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	op, ok := operadorActual(c)
	if !ok {
		return
	}
	if err := h.svc.Anular(c.Request.Context(), op, id, req.Motivo); err != nil {
		responderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StockSucursal godoc
// @Summary      Stock de los productos activos de una sucursal
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string true "UUID de la sucursal"
// @Success      200  {object} dto.StockResponse
// @Router       /v1/sucursales/{id}/stock [get]
func (h *VentasHandler) StockSucursal(c *gin.Context) {
	sucursalID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !sucursalPermitida(c, sucursalID.String()) {
		return
	}
	resp, err := h.svc.StockSucursal(c.Request.Context(), sucursalID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
