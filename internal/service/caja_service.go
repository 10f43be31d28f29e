package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/model"
	"bersapos/internal/realtime"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Operador is the authenticated caller. Cajas, aperturas and ventas of another
// sucursal are reported as not found.
type Operador struct {
	UsuarioID  uuid.UUID
	SucursalID uuid.UUID
}

type CajaService interface {
	Listar(ctx context.Context, sucursalID uuid.UUID) ([]dto.CajaResponse, error)
	// AperturaActiva returns a NoEncontrado error when the caja has no open shift.
	AperturaActiva(ctx context.Context, op Operador, cajaID uuid.UUID) (*dto.AperturaResponse, error)
	Abrir(ctx context.Context, op Operador, cajaID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error)
	ResumenPrevio(ctx context.Context, op Operador, cajaID uuid.UUID) (*dto.ResumenPrevioResponse, error)
	Cerrar(ctx context.Context, op Operador, cajaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.AperturaResponse, error)
}

type cajaService struct {
	repo repository.CajaRepository
	pub  realtime.Publicador
	now  func() time.Time
}

func NewCajaService(repo repository.CajaRepository, pub realtime.Publicador) CajaService {
	return &cajaService{repo: repo, pub: pub, now: time.Now}
}

const timeLayout = "2006-01-02T15:04:05Z"

var (
	errSinApertura      = apierror.Conflicto("La caja no tiene una apertura activa")
	errCajaNoEncontrada = apierror.NoEncontrado("Caja no encontrada")
)

// ── Listar ────────────────────────────────────────────────────────────────────

func (s *cajaService) Listar(ctx context.Context, sucursalID uuid.UUID) ([]dto.CajaResponse, error) {
	cajas, err := s.repo.ListCajas(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CajaResponse, 0, len(cajas))
	for _, c := range cajas {
		out = append(out, dto.CajaResponse{ID: c.ID.String(), Nombre: c.Nombre, SucursalID: c.SucursalID.String()})
	}
	return out, nil
}

// ── AperturaActiva ────────────────────────────────────────────────────────────

func (s *cajaService) AperturaActiva(ctx context.Context, op Operador, cajaID uuid.UUID) (*dto.AperturaResponse, error) {
	ap, err := s.repo.FindAperturaAbierta(ctx, nil, cajaID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && ap.SucursalID != op.SucursalID) {
		return nil, apierror.NoEncontrado("La caja no tiene una apertura activa")
	}
	if err != nil {
		return nil, err
	}
	return aperturaToResponse(ap), nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// The caja row lock serializes concurrent opens; the partial unique index
// catches anything that slips past it.

func (s *cajaService) Abrir(ctx context.Context, op Operador, cajaID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error) {
	if req.MontoInicial.IsNegative() {
		return nil, apierror.Validacion("El monto inicial no puede ser negativo")
	}

	var ap *model.Apertura
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		caja, err := s.repo.LockCajaTx(ctx, tx, cajaID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && caja.SucursalID != op.SucursalID) {
			return errCajaNoEncontrada
		}
		if err != nil {
			return err
		}
		if !caja.Activa {
			return apierror.Validacion("La caja está inactiva")
		}

		if _, err := s.repo.FindAperturaAbierta(ctx, tx, cajaID); err == nil {
			return apierror.Conflicto("La caja ya tiene una apertura activa")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ap = &model.Apertura{
			ID:                uuid.New(),
			CajaID:            cajaID,
			SucursalID:        caja.SucursalID,
			UsuarioAperturaID: op.UsuarioID,
			FechaApertura:     s.now(),
			MontoInicial:      req.MontoInicial,
			Estado:            model.AperturaAbierta,
		}
		if err := s.repo.CreateAperturaTx(ctx, tx, ap); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierror.Conflicto("La caja ya tiene una apertura activa")
			}
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("caja_id", cajaID.String()).Str("apertura_id", ap.ID.String()).
		Str("usuario_id", op.UsuarioID.String()).Msg("caja abierta")
	s.publicar(ctx, realtime.Evento{
		Tipo:       realtime.CajaAbierta,
		SucursalID: ap.SucursalID.String(),
		CajaID:     cajaID.String(),
		AperturaID: ap.ID.String(),
		UsuarioID:  op.UsuarioID.String(),
	})
	return aperturaToResponse(ap), nil
}

// ── ResumenPrevio ─────────────────────────────────────────────────────────────
// Computed on every request from finalized sales; voided sales never count.

func (s *cajaService) ResumenPrevio(ctx context.Context, op Operador, cajaID uuid.UUID) (*dto.ResumenPrevioResponse, error) {
	ap, err := s.repo.FindAperturaAbierta(ctx, nil, cajaID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errSinApertura
	}
	if err != nil {
		return nil, err
	}
	if ap.SucursalID != op.SucursalID {
		return nil, errCajaNoEncontrada
	}
	return s.resumen(ctx, nil, ap)
}

func (s *cajaService) resumen(ctx context.Context, tx *gorm.DB, ap *model.Apertura) (*dto.ResumenPrevioResponse, error) {
	pagos, err := s.repo.ResumenPagos(ctx, tx, ap.ID)
	if err != nil {
		return nil, err
	}
	efectivo := pagos.PorMetodo["efectivo"]
	return &dto.ResumenPrevioResponse{
		AperturaID:       ap.ID.String(),
		MontoInicial:     ap.MontoInicial,
		TotalVentas:      pagos.Total,
		TotalEfectivo:    efectivo,
		EfectivoEsperado: ap.MontoInicial.Add(efectivo),
		CantidadVentas:   pagos.Cantidad,
		PorMetodo:        pagos.PorMetodo,
	}, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// A count that differs from the expected cash needs a reason. The difference
// is classified as normal (<= 1%), advertencia (<= 5%) or critico.

func (s *cajaService) Cerrar(ctx context.Context, op Operador, cajaID uuid.UUID, req dto.CerrarCajaRequest) (*dto.AperturaResponse, error) {
	usuarioID := op.UsuarioID
	if req.MontoFinal.IsNegative() {
		return nil, apierror.Validacion("El monto final no puede ser negativo")
	}
	var motivo *string
	if req.Motivo != nil {
		if m := strings.TrimSpace(*req.Motivo); m != "" {
			motivo = &m
		}
	}

	var ap *model.Apertura
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		caja, err := s.repo.LockCajaTx(ctx, tx, cajaID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && caja.SucursalID != op.SucursalID) {
			return errCajaNoEncontrada
		}
		if err != nil {
			return err
		}

		ap, err = s.repo.FindAperturaAbierta(ctx, tx, cajaID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errSinApertura
		}
		if err != nil {
			return err
		}

		res, err := s.resumen(ctx, tx, ap)
		if err != nil {
			return err
		}
		diferencia := req.MontoFinal.Sub(res.EfectivoEsperado)
		if !diferencia.IsZero() && motivo == nil {
			return apierror.Validacion("El conteo difiere del efectivo esperado: indique el motivo")
		}

		var pct decimal.Decimal
		if !res.EfectivoEsperado.IsZero() {
			pct = diferencia.Div(res.EfectivoEsperado).Mul(decimal.NewFromInt(100)).Round(2)
		} else if !diferencia.IsZero() {
			pct = decimal.NewFromInt(100)
		}
		clasificacion := clasificarDesvio(pct)

		ahora := s.now()
		montoFinal := req.MontoFinal
		ap.UsuarioCierreID = &usuarioID
		ap.FechaCierre = &ahora
		ap.MontoFinal = &montoFinal
		ap.Diferencia = &diferencia
		ap.MotivoDiferencia = motivo
		ap.ClasificacionDiferencia = &clasificacion
		ap.Estado = model.AperturaCerrada
		return s.repo.UpdateAperturaTx(ctx, tx, ap)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("caja_id", cajaID.String()).Str("apertura_id", ap.ID.String()).
		Str("diferencia", ap.Diferencia.String()).Str("clasificacion", *ap.ClasificacionDiferencia).
		Msg("caja cerrada")
	s.publicar(ctx, realtime.Evento{
		Tipo:       realtime.CajaCerrada,
		SucursalID: ap.SucursalID.String(),
		CajaID:     cajaID.String(),
		AperturaID: ap.ID.String(),
		UsuarioID:  usuarioID.String(),
	})
	return aperturaToResponse(ap), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// publicar runs after commit; a failure only costs terminals a re-sync.
func (s *cajaService) publicar(ctx context.Context, e realtime.Evento) {
	if s.pub == nil {
		return
	}
	e.Fecha = s.now()
	if err := s.pub.Publicar(ctx, e); err != nil {
		log.Warn().Err(err).Str("tipo", string(e.Tipo)).Str("caja_id", e.CajaID).Msg("no se pudo publicar evento")
	}
}

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	one := decimal.NewFromInt(1)
	five := decimal.NewFromInt(5)
	switch {
	case abs.LessThanOrEqual(one):
		return "normal"
	case abs.LessThanOrEqual(five):
		return "advertencia"
	default:
		return "critico"
	}
}

func aperturaToResponse(a *model.Apertura) *dto.AperturaResponse {
	resp := &dto.AperturaResponse{
		ID:                a.ID.String(),
		CajaID:            a.CajaID.String(),
		SucursalID:        a.SucursalID.String(),
		UsuarioAperturaID: a.UsuarioAperturaID.String(),
		FechaApertura:     a.FechaApertura.UTC().Format(timeLayout),
		MontoInicial:      a.MontoInicial,
		MontoFinal:        a.MontoFinal,
		Diferencia:        a.Diferencia,
		Clasificacion:     a.ClasificacionDiferencia,
		Estado:            a.Estado,
	}
	if a.UsuarioCierreID != nil {
		id := a.UsuarioCierreID.String()
		resp.UsuarioCierreID = &id
	}
	if a.FechaCierre != nil {
		t := a.FechaCierre.UTC().Format(timeLayout)
		resp.FechaCierre = &t
	}
	return resp
}
