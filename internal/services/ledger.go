package services

import (
	"context"
	"fmt"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"github.com/shopspring/decimal"
)

// Las columnas de cantidad son NUMERIC(10,2)
const escalaKg = 2

// Tolerancia para comparar sumas de distribuciones
var toleranciaDistribucion = decimal.RequireFromString("0.001")

func kg(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(escalaKg)
}

// cantidadExacta rechaza cantidades con más decimales de los que guarda la columna
func cantidadExacta(v float64) (decimal.Decimal, error) {
	exacta := decimal.NewFromFloat(v)
	if !exacta.Equal(exacta.Round(escalaKg)) {
		return decimal.Zero, apperror.NewValidation("la cantidad admite a lo sumo 2 decimales").
			WithDetail("cantidad", v)
	}
	return exacta, nil
}

// cantidadPositiva es cantidadExacta exigiendo además un valor mayor a 0
func cantidadPositiva(v float64, mensaje string) (decimal.Decimal, error) {
	if v <= 0 {
		return decimal.Zero, apperror.NewValidation(mensaje)
	}
	return cantidadExacta(v)
}

// ObtenerOCrear devuelve la fila de stock del par (lote, bodega) bloqueada
// para la transacción; si no existe la crea en 0.
func ObtenerOCrear(ctx context.Context, q repository.Queries, loteID, bodegaID int) (*models.StockLoteBodega, error) {
	if err := q.EnsureStock(ctx, loteID, bodegaID); err != nil {
		return nil, err
	}

	entry, err := q.GetStockForUpdate(ctx, loteID, bodegaID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("stock row for lote %d bodega %d vanished after ensure", loteID, bodegaID)
	}
	return entry, nil
}

// Acreditar suma cantidad a la fila
func Acreditar(ctx context.Context, q repository.Queries, entry *models.StockLoteBodega, cantidad float64) error {
	monto, err := cantidadPositiva(cantidad, "la cantidad a acreditar debe ser mayor a 0")
	if err != nil {
		return err
	}
	nuevo := kg(entry.CantidadActual).Add(monto)
	return fijarCantidad(ctx, q, entry, nuevo)
}

// Debitar resta cantidad de la fila; falla con INSUFFICIENT_STOCK si no alcanza
func Debitar(ctx context.Context, q repository.Queries, entry *models.StockLoteBodega, cantidad float64) error {
	solicitado, err := cantidadPositiva(cantidad, "la cantidad a debitar debe ser mayor a 0")
	if err != nil {
		return err
	}
	disponible := kg(entry.CantidadActual)
	if solicitado.GreaterThan(disponible) {
		return apperror.NewInsufficientStock(entry.LoteID, entry.BodegaID,
			solicitado.InexactFloat64(), disponible.InexactFloat64())
	}
	return fijarCantidad(ctx, q, entry, disponible.Sub(solicitado))
}

// Fijar reemplaza la cantidad por un valor absoluto; falla con NEGATIVE_STOCK si es negativo
func Fijar(ctx context.Context, q repository.Queries, entry *models.StockLoteBodega, valor float64) error {
	if valor < 0 {
		return apperror.NewNegativeStock(valor)
	}
	exacto, err := cantidadExacta(valor)
	if err != nil {
		return err
	}
	return fijarCantidad(ctx, q, entry, exacto)
}

func fijarCantidad(ctx context.Context, q repository.Queries, entry *models.StockLoteBodega, valor decimal.Decimal) error {
	cantidad := valor.InexactFloat64()
	if err := q.UpdateStockCantidad(ctx, entry.ID, cantidad); err != nil {
		return err
	}
	entry.CantidadActual = cantidad
	return nil
}

// recalcularLote vuelve a sumar las filas del lote y persiste el total
func recalcularLote(ctx context.Context, q repository.Queries, loteID int) (float64, error) {
	total, err := q.SumStockByLote(ctx, loteID)
	if err != nil {
		return 0, err
	}
	total = kg(total).InexactFloat64()
	if err := q.UpdateLoteCantidad(ctx, loteID, total); err != nil {
		return 0, err
	}
	return total, nil
}
