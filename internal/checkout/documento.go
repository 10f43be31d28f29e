package checkout

import (
	"strings"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/model"
)

type Receptor struct {
	Rut         string
	RazonSocial string
	Giro        string
	Direccion   string
}

// Documento is the sale document type. Only a factura carries a receptor.
type Documento struct {
	Tipo     string
	Receptor *Receptor
}

func Boleta() Documento {
	return Documento{Tipo: model.DocumentoBoleta}
}

func Factura(r Receptor) Documento {
	return Documento{Tipo: model.DocumentoFactura, Receptor: &r}
}

func (d Documento) Validar() error {
	switch d.Tipo {
	case model.DocumentoBoleta:
		return nil
	case model.DocumentoFactura:
		r := d.Receptor
		if r == nil || strings.TrimSpace(r.Rut) == "" || strings.TrimSpace(r.RazonSocial) == "" ||
			strings.TrimSpace(r.Giro) == "" || strings.TrimSpace(r.Direccion) == "" {
			return apierror.Validacion("La factura requiere RUT, razón social, giro y dirección del receptor")
		}
		return nil
	default:
		return apierror.Validacion("Tipo de documento inválido: " + d.Tipo)
	}
}

func (d Documento) request() dto.DocumentoRequest {
	req := dto.DocumentoRequest{Tipo: d.Tipo}
	if d.Tipo == model.DocumentoFactura && d.Receptor != nil {
		req.Receptor = &dto.ReceptorRequest{
			Rut:         strings.TrimSpace(d.Receptor.Rut),
			RazonSocial: strings.TrimSpace(d.Receptor.RazonSocial),
			Giro:        strings.TrimSpace(d.Receptor.Giro),
			Direccion:   strings.TrimSpace(d.Receptor.Direccion),
		}
	}
	return req
}

func documentoDesde(req dto.DocumentoRequest) Documento {
	d := Documento{Tipo: req.Tipo}
	if req.Receptor != nil {
		d.Receptor = &Receptor{
			Rut:         req.Receptor.Rut,
			RazonSocial: req.Receptor.RazonSocial,
			Giro:        req.Receptor.Giro,
			Direccion:   req.Receptor.Direccion,
		}
	}
	return d
}
