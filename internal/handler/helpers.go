package handler

import (
	"errors"
	"net/http"
	"reflect"

	"bersapos/internal/apierror"
	"bersapos/internal/middleware"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// responderError writes typed domain failures with their status. Anything
// else is handed to the ErrorHandler middleware, which logs it and answers a
// generic 500.
func responderError(c *gin.Context, err error) {
	status := apierror.StatusHTTP(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		return
	}
	c.JSON(status, apierror.New(apierror.Mensaje(err)))
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return uuid.Nil, false
	}
	return id, true
}

// operadorActual builds the caller from the JWT claims. JWTAuth already
// rejected tokens without user or sucursal.
func operadorActual(c *gin.Context) (service.Operador, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Autenticación requerida"))
		return service.Operador{}, false
	}
	usuarioID, errU := uuid.Parse(claims.UserID)
	sucursalID, errS := uuid.Parse(claims.SucursalID)
	if errU != nil || errS != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Token con identificadores inválidos"))
		return service.Operador{}, false
	}
	return service.Operador{UsuarioID: usuarioID, SucursalID: sucursalID}, true
}

// sucursalPermitida rejects access to another sucursal's data.
func sucursalPermitida(c *gin.Context, sucursalID string) bool {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.SucursalID != sucursalID {
		c.JSON(http.StatusForbidden, apierror.New("Sucursal no permitida"))
		return false
	}
	return true
}
