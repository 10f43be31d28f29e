package worker

// ticket_worker.go
// Renders the PDF ticket of a confirmed sale and stores its path on the venta.

import (
	"context"
	"encoding/json"
	"fmt"

	"bersapos/internal/infra"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type TicketWorker struct {
	ventaRepo      repository.VentaRepository
	pdfStoragePath string
	comercio       string
}

func NewTicketWorker(ventaRepo repository.VentaRepository, pdfStoragePath, comercio string) *TicketWorker {
	return &TicketWorker{ventaRepo: ventaRepo, pdfStoragePath: pdfStoragePath, comercio: comercio}
}

// Process is a Handler. Malformed payloads are not retried.
func (w *TicketWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload TicketJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("ticket_worker: invalid payload")
		return nil
	}
	ventaID, err := uuid.Parse(payload.VentaID)
	if err != nil {
		log.Error().Str("venta_id", payload.VentaID).Msg("ticket_worker: invalid venta_id")
		return nil
	}

	venta, err := w.ventaRepo.FindByID(ctx, ventaID)
	if err != nil {
		return fmt.Errorf("ticket_worker: venta %s: %w", payload.VentaID, err)
	}

	path, err := infra.GenerateTicketPDF(venta, w.comercio, w.pdfStoragePath)
	if err != nil {
		return err
	}
	if err := w.ventaRepo.SetTicketPath(ctx, ventaID, path); err != nil {
		return err
	}
	log.Info().Str("pdf", path).Str("venta_id", payload.VentaID).Msg("ticket_worker: PDF generated")
	return nil
}
