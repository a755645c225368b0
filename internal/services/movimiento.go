package services

import (
	"context"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"
)

// aplicarMovimiento valida y aplica un movimiento con q. Debe correr dentro de
// RunInTx: cualquier error deja la transacción para rollback.
// Devuelve el movimiento creado y la nueva cantidad total del lote.
func aplicarMovimiento(ctx context.Context, q repository.Queries, req *models.MovimientoRequest) (*models.Movimiento, float64, error) {
	if !req.TipoMovimiento.Valido() {
		return nil, 0, apperror.NewValidation("tipo de movimiento inválido").
			WithDetail("tipo_movimiento", req.TipoMovimiento)
	}
	if req.TipoMovimiento == models.MovimientoAjuste {
		if req.Cantidad < 0 {
			return nil, 0, apperror.NewNegativeStock(req.Cantidad)
		}
	} else if req.Cantidad <= 0 {
		return nil, 0, apperror.NewValidation("la cantidad debe ser mayor a 0")
	}
	if _, err := cantidadExacta(req.Cantidad); err != nil {
		return nil, 0, err
	}

	lote, err := q.GetLote(ctx, req.LoteID)
	if err != nil {
		return nil, 0, err
	}
	if lote == nil {
		return nil, 0, apperror.NewNotFound("lote", req.LoteID)
	}

	mov := &models.Movimiento{
		LoteID:         lote.ID,
		TipoMovimiento: req.TipoMovimiento,
		Cantidad:       kg(req.Cantidad).InexactFloat64(),
		Fecha:          time.Now(),
		Observaciones:  req.Observaciones,
	}
	if req.Fecha != nil {
		mov.Fecha = *req.Fecha
	}

	switch req.TipoMovimiento {
	case models.MovimientoEntrada:
		err = aplicarEntrada(ctx, q, req, mov)
	case models.MovimientoConsumo:
		err = aplicarConsumo(ctx, q, req, mov)
	case models.MovimientoTraslado:
		err = aplicarTraslado(ctx, q, req, mov)
	case models.MovimientoAjuste:
		err = aplicarAjuste(ctx, q, req, mov)
	}
	if err != nil {
		return nil, 0, err
	}

	total, err := recalcularLote(ctx, q, lote.ID)
	if err != nil {
		return nil, 0, err
	}

	if err := q.CreateMovimiento(ctx, mov); err != nil {
		return nil, 0, err
	}
	return mov, total, nil
}

func requerirBodega(ctx context.Context, q repository.Queries, id *int, campo string) (int, error) {
	if id == nil {
		return 0, apperror.NewValidation(campo + " es requerido para este tipo de movimiento")
	}
	bodega, err := q.GetBodega(ctx, *id)
	if err != nil {
		return 0, err
	}
	if bodega == nil {
		return 0, apperror.NewNotFound("bodega", *id)
	}
	return bodega.ID, nil
}

func aplicarEntrada(ctx context.Context, q repository.Queries, req *models.MovimientoRequest, mov *models.Movimiento) error {
	bodegaID, err := requerirBodega(ctx, q, req.BodegaID, "bodega_id")
	if err != nil {
		return err
	}
	entry, err := ObtenerOCrear(ctx, q, req.LoteID, bodegaID)
	if err != nil {
		return err
	}
	if err := Acreditar(ctx, q, entry, req.Cantidad); err != nil {
		return err
	}
	mov.BodegaID = &bodegaID
	return nil
}

func aplicarConsumo(ctx context.Context, q repository.Queries, req *models.MovimientoRequest, mov *models.Movimiento) error {
	bodegaRef := req.BodegaID

	if req.GalponID != nil {
		galpon, err := q.GetGalpon(ctx, *req.GalponID)
		if err != nil {
			return err
		}
		if galpon == nil {
			return apperror.NewNotFound("galpon", *req.GalponID)
		}
		if galpon.BodegaID == nil {
			return apperror.NewNoWarehouseAssigned(galpon.ID)
		}
		if req.BodegaID != nil && *req.BodegaID != *galpon.BodegaID {
			return apperror.NewWarehouseMismatch(galpon.ID, *galpon.BodegaID, *req.BodegaID)
		}
		bodegaRef = galpon.BodegaID
		galponID := galpon.ID
		mov.GalponID = &galponID
	}

	bodegaID, err := requerirBodega(ctx, q, bodegaRef, "bodega_id")
	if err != nil {
		return err
	}
	entry, err := ObtenerOCrear(ctx, q, req.LoteID, bodegaID)
	if err != nil {
		return err
	}
	if err := Debitar(ctx, q, entry, req.Cantidad); err != nil {
		return err
	}
	mov.BodegaID = &bodegaID
	return nil
}

func aplicarTraslado(ctx context.Context, q repository.Queries, req *models.MovimientoRequest, mov *models.Movimiento) error {
	if req.BodegaOrigenID == nil || req.BodegaDestinoID == nil {
		return apperror.NewValidation("bodega_origen_id y bodega_destino_id son requeridos para traslado")
	}
	if *req.BodegaOrigenID == *req.BodegaDestinoID {
		return apperror.NewSameWarehouse(*req.BodegaOrigenID)
	}

	origenID, err := requerirBodega(ctx, q, req.BodegaOrigenID, "bodega_origen_id")
	if err != nil {
		return err
	}
	destinoID, err := requerirBodega(ctx, q, req.BodegaDestinoID, "bodega_destino_id")
	if err != nil {
		return err
	}

	// Bloquear siempre en orden de id para no cruzar locks entre traslados opuestos
	primero, segundo := origenID, destinoID
	if segundo < primero {
		primero, segundo = segundo, primero
	}
	entries := make(map[int]*models.StockLoteBodega, 2)
	for _, bodegaID := range []int{primero, segundo} {
		entry, err := ObtenerOCrear(ctx, q, req.LoteID, bodegaID)
		if err != nil {
			return err
		}
		entries[bodegaID] = entry
	}

	if err := Debitar(ctx, q, entries[origenID], req.Cantidad); err != nil {
		return err
	}
	if err := Acreditar(ctx, q, entries[destinoID], req.Cantidad); err != nil {
		return err
	}

	mov.BodegaOrigenID = &origenID
	mov.BodegaDestinoID = &destinoID
	return nil
}

func aplicarAjuste(ctx context.Context, q repository.Queries, req *models.MovimientoRequest, mov *models.Movimiento) error {
	bodegaID, err := requerirBodega(ctx, q, req.BodegaID, "bodega_id")
	if err != nil {
		return err
	}
	entry, err := ObtenerOCrear(ctx, q, req.LoteID, bodegaID)
	if err != nil {
		return err
	}
	if err := Fijar(ctx, q, entry, req.Cantidad); err != nil {
		return err
	}
	mov.BodegaID = &bodegaID
	return nil
}
