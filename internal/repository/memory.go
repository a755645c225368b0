package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"
)

// memState es el contenido completo del store en memoria
type memState struct {
	lotes       map[int]*models.Lote
	bodegas     map[int]*models.Bodega
	stocks      map[int]*models.StockLoteBodega
	movimientos map[int]*models.Movimiento
	galpones    map[int]*models.Galpon
	registros   map[int]*models.RegistroDiario
	desacoses   map[int]*models.Desacose
	alertas     map[int]*models.Alerta
	lastID      int
}

func newMemState() *memState {
	return &memState{
		lotes:       make(map[int]*models.Lote),
		bodegas:     make(map[int]*models.Bodega),
		stocks:      make(map[int]*models.StockLoteBodega),
		movimientos: make(map[int]*models.Movimiento),
		galpones:    make(map[int]*models.Galpon),
		registros:   make(map[int]*models.RegistroDiario),
		desacoses:   make(map[int]*models.Desacose),
		alertas:     make(map[int]*models.Alerta),
	}
}

func cloneMap[T any](src map[int]*T) map[int]*T {
	dst := make(map[int]*T, len(src))
	for id, v := range src {
		cp := *v
		dst[id] = &cp
	}
	return dst
}

func (s *memState) clone() *memState {
	return &memState{
		lotes:       cloneMap(s.lotes),
		bodegas:     cloneMap(s.bodegas),
		stocks:      cloneMap(s.stocks),
		movimientos: cloneMap(s.movimientos),
		galpones:    cloneMap(s.galpones),
		registros:   cloneMap(s.registros),
		desacoses:   cloneMap(s.desacoses),
		alertas:     cloneMap(s.alertas),
		lastID:      s.lastID,
	}
}

func (s *memState) nextID() int {
	s.lastID++
	return s.lastID
}

// MemoryStore implementa Store en memoria. Las transacciones se serializan y
// trabajan sobre una copia del estado que reemplaza al original en el commit.
type MemoryStore struct {
	*memQueries
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore crea un store vacío
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.memQueries = &memQueries{store: s}
	return s
}

// RunInTx ejecuta fn sobre una copia del estado; solo se publica si fn no falla
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&memQueries{store: s, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.state = working
	return nil
}

// memQueries opera sobre la copia de una transacción o, fuera de ella,
// directamente sobre el estado publicado bajo el mutex.
type memQueries struct {
	store *MemoryStore
	tx    *memState
}

func (q *memQueries) begin() (*memState, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.store.mu.Lock()
	return q.store.state, q.store.mu.Unlock
}

func copyOf[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func paginate[T any](items []*T, limit, offset int) []*T {
	limit = normalizeLimit(limit)
	if offset >= len(items) {
		return make([]*T, 0)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ===== Lotes =====

func (q *memQueries) GetLote(ctx context.Context, id int) (*models.Lote, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.lotes[id]), nil
}

func (q *memQueries) GetLoteByCodigo(ctx context.Context, codigo string) (*models.Lote, error) {
	st, done := q.begin()
	defer done()
	for _, lote := range st.lotes {
		if lote.CodigoLote == codigo {
			return copyOf(lote), nil
		}
	}
	return nil, nil
}

func (q *memQueries) CreateLote(ctx context.Context, lote *models.Lote) error {
	st, done := q.begin()
	defer done()
	for _, existing := range st.lotes {
		if existing.CodigoLote == lote.CodigoLote {
			return apperror.NewDuplicateLotCode(lote.CodigoLote)
		}
	}
	now := time.Now()
	lote.ID = st.nextID()
	lote.CreatedAt, lote.UpdatedAt = now, now
	st.lotes[lote.ID] = copyOf(lote)
	return nil
}

func (q *memQueries) UpdateLoteCantidad(ctx context.Context, id int, cantidad float64) error {
	st, done := q.begin()
	defer done()
	lote, ok := st.lotes[id]
	if !ok {
		return apperror.NewNotFound("lote", id)
	}
	lote.CantidadActual = cantidad
	lote.UpdatedAt = time.Now()
	return nil
}

func (q *memQueries) ListLotes(ctx context.Context, filter *models.LoteFilter) ([]*models.Lote, error) {
	if filter == nil {
		filter = &models.LoteFilter{}
	}
	st, done := q.begin()
	defer done()

	lotes := make([]*models.Lote, 0)
	for _, lote := range st.lotes {
		if filter.Tipo != nil && lote.Tipo != *filter.Tipo {
			continue
		}
		if filter.SoloActivos && lote.CantidadActual <= 0 {
			continue
		}
		lotes = append(lotes, copyOf(lote))
	}
	sort.Slice(lotes, func(i, j int) bool {
		if lotes[i].Tipo != lotes[j].Tipo {
			return lotes[i].Tipo < lotes[j].Tipo
		}
		if !lotes[i].FechaIngreso.Equal(lotes[j].FechaIngreso) {
			return lotes[i].FechaIngreso.After(lotes[j].FechaIngreso)
		}
		return lotes[i].ID > lotes[j].ID
	})
	return paginate(lotes, filter.Limit, filter.Offset), nil
}

// ===== Bodegas =====

func (q *memQueries) GetBodega(ctx context.Context, id int) (*models.Bodega, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.bodegas[id]), nil
}

func bodegaNombreTomado(st *memState, bodega *models.Bodega) bool {
	for _, existing := range st.bodegas {
		if existing.ID != bodega.ID && existing.GranjaID == bodega.GranjaID && existing.Nombre == bodega.Nombre {
			return true
		}
	}
	return false
}

func (q *memQueries) CreateBodega(ctx context.Context, bodega *models.Bodega) error {
	st, done := q.begin()
	defer done()
	if bodegaNombreTomado(st, bodega) {
		return apperror.NewConflict("ya existe una bodega con ese nombre en la granja").
			WithDetail("nombre", bodega.Nombre)
	}
	now := time.Now()
	bodega.ID = st.nextID()
	bodega.CreatedAt, bodega.UpdatedAt = now, now
	st.bodegas[bodega.ID] = copyOf(bodega)
	return nil
}

func (q *memQueries) UpdateBodega(ctx context.Context, bodega *models.Bodega) error {
	st, done := q.begin()
	defer done()
	existing, ok := st.bodegas[bodega.ID]
	if !ok {
		return apperror.NewNotFound("bodega", bodega.ID)
	}
	if bodegaNombreTomado(st, bodega) {
		return apperror.NewConflict("ya existe una bodega con ese nombre en la granja").
			WithDetail("nombre", bodega.Nombre)
	}
	existing.Nombre = bodega.Nombre
	existing.Ubicacion = bodega.Ubicacion
	existing.Activo = bodega.Activo
	existing.UpdatedAt = time.Now()
	bodega.UpdatedAt = existing.UpdatedAt
	return nil
}

func (q *memQueries) ListBodegas(ctx context.Context, filter *models.BodegaFilter) ([]*models.Bodega, error) {
	st, done := q.begin()
	defer done()

	bodegas := make([]*models.Bodega, 0)
	for _, bodega := range st.bodegas {
		if filter != nil && filter.GranjaID != nil && bodega.GranjaID != *filter.GranjaID {
			continue
		}
		if filter != nil && filter.Activo != nil && bodega.Activo != *filter.Activo {
			continue
		}
		bodegas = append(bodegas, copyOf(bodega))
	}
	sort.Slice(bodegas, func(i, j int) bool {
		if bodegas[i].GranjaID != bodegas[j].GranjaID {
			return bodegas[i].GranjaID < bodegas[j].GranjaID
		}
		return bodegas[i].Nombre < bodegas[j].Nombre
	})
	return bodegas, nil
}

// ===== Stock =====

func findStock(st *memState, loteID, bodegaID int) *models.StockLoteBodega {
	for _, stock := range st.stocks {
		if stock.LoteID == loteID && stock.BodegaID == bodegaID {
			return stock
		}
	}
	return nil
}

func (q *memQueries) EnsureStock(ctx context.Context, loteID, bodegaID int) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.lotes[loteID]; !ok {
		return apperror.NewValidation("ensure stock: referencia inexistente").WithDetail("lote_id", loteID)
	}
	if _, ok := st.bodegas[bodegaID]; !ok {
		return apperror.NewValidation("ensure stock: referencia inexistente").WithDetail("bodega_id", bodegaID)
	}
	if findStock(st, loteID, bodegaID) != nil {
		return nil
	}
	now := time.Now()
	id := st.nextID()
	st.stocks[id] = &models.StockLoteBodega{
		ID: id, LoteID: loteID, BodegaID: bodegaID, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

// GetStockForUpdate no necesita bloqueo propio: las transacciones ya están serializadas
func (q *memQueries) GetStockForUpdate(ctx context.Context, loteID, bodegaID int) (*models.StockLoteBodega, error) {
	st, done := q.begin()
	defer done()
	return copyOf(findStock(st, loteID, bodegaID)), nil
}

func (q *memQueries) UpdateStockCantidad(ctx context.Context, id int, cantidad float64) error {
	st, done := q.begin()
	defer done()
	stock, ok := st.stocks[id]
	if !ok {
		return fmt.Errorf("no stock record found with id %d", id)
	}
	if cantidad < 0 {
		return apperror.NewNegativeStock(cantidad)
	}
	stock.CantidadActual = cantidad
	stock.UpdatedAt = time.Now()
	return nil
}

func (q *memQueries) SumStockByLote(ctx context.Context, loteID int) (float64, error) {
	st, done := q.begin()
	defer done()
	var total float64
	for _, stock := range st.stocks {
		if stock.LoteID == loteID {
			total += stock.CantidadActual
		}
	}
	return total, nil
}

func stockWithDetails(st *memState, stock *models.StockLoteBodega) *models.StockWithDetails {
	detail := &models.StockWithDetails{StockLoteBodega: *stock}
	if lote, ok := st.lotes[stock.LoteID]; ok {
		detail.CodigoLote = lote.CodigoLote
		detail.TipoAlimento = lote.Tipo
	}
	if bodega, ok := st.bodegas[stock.BodegaID]; ok {
		detail.NombreBodega = bodega.Nombre
	}
	return detail
}

func (q *memQueries) GetStockByLote(ctx context.Context, loteID int) ([]*models.StockWithDetails, error) {
	st, done := q.begin()
	defer done()
	stocks := make([]*models.StockWithDetails, 0)
	for _, stock := range st.stocks {
		if stock.LoteID == loteID {
			stocks = append(stocks, stockWithDetails(st, stock))
		}
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].NombreBodega < stocks[j].NombreBodega })
	return stocks, nil
}

func (q *memQueries) GetStockByBodega(ctx context.Context, bodegaID int) ([]*models.StockWithDetails, error) {
	st, done := q.begin()
	defer done()
	stocks := make([]*models.StockWithDetails, 0)
	for _, stock := range st.stocks {
		if stock.BodegaID == bodegaID && stock.CantidadActual > 0 {
			stocks = append(stocks, stockWithDetails(st, stock))
		}
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].CodigoLote < stocks[j].CodigoLote })
	return stocks, nil
}

// ===== Movimientos =====

func (q *memQueries) CreateMovimiento(ctx context.Context, mov *models.Movimiento) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.lotes[mov.LoteID]; !ok {
		return apperror.NewValidation("create movimiento: referencia inexistente").WithDetail("lote_id", mov.LoteID)
	}
	mov.ID = st.nextID()
	mov.CreatedAt = time.Now()
	st.movimientos[mov.ID] = copyOf(mov)
	return nil
}

func movimientoTocaBodega(mov *models.Movimiento, bodegaID int) bool {
	for _, id := range []*int{mov.BodegaID, mov.BodegaOrigenID, mov.BodegaDestinoID} {
		if id != nil && *id == bodegaID {
			return true
		}
	}
	return false
}

func (q *memQueries) ListMovimientos(ctx context.Context, filter *models.MovimientoFilter) ([]*models.Movimiento, error) {
	if filter == nil {
		filter = &models.MovimientoFilter{}
	}
	st, done := q.begin()
	defer done()

	movimientos := make([]*models.Movimiento, 0)
	for _, mov := range st.movimientos {
		switch {
		case filter.LoteID != nil && mov.LoteID != *filter.LoteID,
			filter.GalponID != nil && !sameInt(mov.GalponID, filter.GalponID),
			filter.TipoMovimiento != nil && mov.TipoMovimiento != *filter.TipoMovimiento,
			filter.BodegaID != nil && !movimientoTocaBodega(mov, *filter.BodegaID),
			filter.FechaDesde != nil && mov.Fecha.Before(*filter.FechaDesde),
			filter.FechaHasta != nil && mov.Fecha.After(*filter.FechaHasta):
			continue
		}
		movimientos = append(movimientos, copyOf(mov))
	}
	sort.Slice(movimientos, func(i, j int) bool {
		if !movimientos[i].Fecha.Equal(movimientos[j].Fecha) {
			return movimientos[i].Fecha.After(movimientos[j].Fecha)
		}
		return movimientos[i].ID > movimientos[j].ID
	})
	return paginate(movimientos, filter.Limit, filter.Offset), nil
}

// ===== Galpones =====

func (q *memQueries) GetGalpon(ctx context.Context, id int) (*models.Galpon, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.galpones[id]), nil
}

func (q *memQueries) CreateGalpon(ctx context.Context, galpon *models.Galpon) error {
	st, done := q.begin()
	defer done()
	for _, existing := range st.galpones {
		if existing.GranjaID == galpon.GranjaID && existing.Numero == galpon.Numero &&
			existing.DivisionSufijo == galpon.DivisionSufijo {
			return apperror.NewConflict("ya existe un galpón con ese número en la granja").
				WithDetail("numero", galpon.Numero).
				WithDetail("division_sufijo", galpon.DivisionSufijo)
		}
	}
	if galpon.GalponPadreID != nil {
		if _, ok := st.galpones[*galpon.GalponPadreID]; !ok {
			return apperror.NewValidation("create galpon: referencia inexistente").
				WithDetail("galpon_padre_id", *galpon.GalponPadreID)
		}
	}
	now := time.Now()
	galpon.ID = st.nextID()
	galpon.CreatedAt, galpon.UpdatedAt = now, now
	st.galpones[galpon.ID] = copyOf(galpon)
	return nil
}

func (q *memQueries) UpdateGalponBodega(ctx context.Context, id int, bodegaID *int) error {
	st, done := q.begin()
	defer done()
	galpon, ok := st.galpones[id]
	if !ok {
		return apperror.NewNotFound("galpón", id)
	}
	if bodegaID != nil {
		if _, ok := st.bodegas[*bodegaID]; !ok {
			return apperror.NewValidation("update galpon bodega: referencia inexistente").
				WithDetail("bodega_id", *bodegaID)
		}
	}
	galpon.BodegaID = copyOf(bodegaID)
	galpon.UpdatedAt = time.Now()
	return nil
}

func (q *memQueries) ListGalpones(ctx context.Context, filter *models.GalponFilter) ([]*models.Galpon, error) {
	st, done := q.begin()
	defer done()

	galpones := make([]*models.Galpon, 0)
	for _, galpon := range st.galpones {
		if filter != nil && filter.GranjaID != nil && galpon.GranjaID != *filter.GranjaID {
			continue
		}
		if filter != nil && filter.Activo != nil && galpon.Activo != *filter.Activo {
			continue
		}
		galpones = append(galpones, copyOf(galpon))
	}
	sort.Slice(galpones, func(i, j int) bool {
		a, b := galpones[i], galpones[j]
		if a.GranjaID != b.GranjaID {
			return a.GranjaID < b.GranjaID
		}
		if a.Numero != b.Numero {
			return a.Numero < b.Numero
		}
		return a.DivisionSufijo < b.DivisionSufijo
	})
	return galpones, nil
}

func (q *memQueries) CountDivisiones(ctx context.Context, galponPadreID int) (int, error) {
	st, done := q.begin()
	defer done()
	count := 0
	for _, galpon := range st.galpones {
		if galpon.GalponPadreID != nil && *galpon.GalponPadreID == galponPadreID {
			count++
		}
	}
	return count, nil
}

// ===== Registros diarios =====

func (q *memQueries) GetRegistro(ctx context.Context, id int) (*models.RegistroDiario, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.registros[id]), nil
}

func (q *memQueries) GetRegistroByFecha(ctx context.Context, galponID int, fecha time.Time) (*models.RegistroDiario, error) {
	st, done := q.begin()
	defer done()
	fecha = DateOnly(fecha)
	for _, reg := range st.registros {
		if reg.GalponID == galponID && reg.Fecha.Equal(fecha) {
			return copyOf(reg), nil
		}
	}
	return nil, nil
}

// registrosDelGalpon devuelve los registros del galpón ordenados por fecha descendente
func registrosDelGalpon(st *memState, galponID int) []*models.RegistroDiario {
	registros := make([]*models.RegistroDiario, 0)
	for _, reg := range st.registros {
		if reg.GalponID == galponID {
			registros = append(registros, reg)
		}
	}
	sort.Slice(registros, func(i, j int) bool { return registros[i].Fecha.After(registros[j].Fecha) })
	return registros
}

func (q *memQueries) GetUltimoRegistro(ctx context.Context, galponID int) (*models.RegistroDiario, error) {
	st, done := q.begin()
	defer done()
	registros := registrosDelGalpon(st, galponID)
	if len(registros) == 0 {
		return nil, nil
	}
	return copyOf(registros[0]), nil
}

func (q *memQueries) ListRegistrosAnteriores(ctx context.Context, galponID int, antesDe time.Time, limit int) ([]*models.RegistroDiario, error) {
	st, done := q.begin()
	defer done()
	antesDe = DateOnly(antesDe)
	result := make([]*models.RegistroDiario, 0, limit)
	for _, reg := range registrosDelGalpon(st, galponID) {
		if len(result) >= limit {
			break
		}
		if reg.Fecha.Before(antesDe) {
			result = append(result, copyOf(reg))
		}
	}
	return result, nil
}

func (q *memQueries) CreateRegistro(ctx context.Context, reg *models.RegistroDiario) error {
	st, done := q.begin()
	defer done()
	reg.Fecha = DateOnly(reg.Fecha)
	if _, ok := st.galpones[reg.GalponID]; !ok {
		return apperror.NewValidation("create registro: referencia inexistente").WithDetail("galpon_id", reg.GalponID)
	}
	for _, existing := range st.registros {
		if existing.GalponID == reg.GalponID && existing.Fecha.Equal(reg.Fecha) {
			return apperror.NewDuplicateRecord(reg.GalponID, reg.Fecha.Format("2006-01-02"))
		}
	}
	now := time.Now()
	reg.ID = st.nextID()
	reg.CreatedAt, reg.UpdatedAt = now, now
	st.registros[reg.ID] = copyOf(reg)
	return nil
}

func (q *memQueries) UpdateRegistro(ctx context.Context, reg *models.RegistroDiario) error {
	st, done := q.begin()
	defer done()
	existing, ok := st.registros[reg.ID]
	if !ok {
		return apperror.NewNotFound("registro", reg.ID)
	}
	updated := *reg
	updated.GalponID, updated.Fecha, updated.LoteID = existing.GalponID, existing.Fecha, existing.LoteID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	st.registros[reg.ID] = &updated
	reg.UpdatedAt = updated.UpdatedAt
	return nil
}

func (q *memQueries) DeleteRegistro(ctx context.Context, id int) (bool, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.registros[id]; !ok {
		return false, nil
	}
	delete(st.registros, id)
	return true, nil
}

func (q *memQueries) ListRegistros(ctx context.Context, filter *models.RegistroFilter) ([]*models.RegistroDiario, error) {
	if filter == nil {
		filter = &models.RegistroFilter{}
	}
	st, done := q.begin()
	defer done()

	registros := make([]*models.RegistroDiario, 0)
	for _, reg := range st.registros {
		switch {
		case filter.GalponID != nil && reg.GalponID != *filter.GalponID,
			filter.FechaDesde != nil && reg.Fecha.Before(DateOnly(*filter.FechaDesde)),
			filter.FechaHasta != nil && reg.Fecha.After(DateOnly(*filter.FechaHasta)):
			continue
		}
		registros = append(registros, copyOf(reg))
	}
	sort.Slice(registros, func(i, j int) bool {
		if !registros[i].Fecha.Equal(registros[j].Fecha) {
			return registros[i].Fecha.After(registros[j].Fecha)
		}
		return registros[i].GalponID < registros[j].GalponID
	})
	return paginate(registros, filter.Limit, filter.Offset), nil
}

// ===== Desacose =====

func (q *memQueries) CreateDesacose(ctx context.Context, d *models.Desacose) error {
	st, done := q.begin()
	defer done()
	d.Fecha = DateOnly(d.Fecha)
	for _, id := range []int{d.GalponOrigenID, d.GalponDestinoID} {
		if _, ok := st.galpones[id]; !ok {
			return apperror.NewValidation("create desacose: referencia inexistente").WithDetail("galpon_id", id)
		}
	}
	d.ID = st.nextID()
	d.CreatedAt = time.Now()
	st.desacoses[d.ID] = copyOf(d)
	return nil
}

func (q *memQueries) GetDesacose(ctx context.Context, id int) (*models.Desacose, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.desacoses[id]), nil
}

func (q *memQueries) ListDesacoses(ctx context.Context, filter *models.DesacoseFilter) ([]*models.Desacose, error) {
	if filter == nil {
		filter = &models.DesacoseFilter{}
	}
	st, done := q.begin()
	defer done()

	desacoses := make([]*models.Desacose, 0)
	for _, d := range st.desacoses {
		switch {
		case filter.GalponID != nil && d.GalponOrigenID != *filter.GalponID && d.GalponDestinoID != *filter.GalponID,
			filter.FechaDesde != nil && d.Fecha.Before(DateOnly(*filter.FechaDesde)),
			filter.FechaHasta != nil && d.Fecha.After(DateOnly(*filter.FechaHasta)):
			continue
		}
		desacoses = append(desacoses, copyOf(d))
	}
	sort.Slice(desacoses, func(i, j int) bool {
		if !desacoses[i].Fecha.Equal(desacoses[j].Fecha) {
			return desacoses[i].Fecha.After(desacoses[j].Fecha)
		}
		return desacoses[i].ID > desacoses[j].ID
	})
	return paginate(desacoses, filter.Limit, filter.Offset), nil
}

// ===== Alertas =====

func (q *memQueries) CreateAlertaSiNoExiste(ctx context.Context, alerta *models.Alerta) (bool, error) {
	sujeto := alerta.Sujeto()
	if sujeto == "" {
		return false, apperror.NewValidation("la alerta requiere galpón o lote")
	}
	st, done := q.begin()
	defer done()
	for _, existing := range st.alertas {
		if !existing.Atendida && existing.Tipo == alerta.Tipo && existing.Sujeto() == sujeto {
			return false, nil
		}
	}
	alerta.ID = st.nextID()
	alerta.Atendida = false
	st.alertas[alerta.ID] = copyOf(alerta)
	return true, nil
}

func (q *memQueries) GetAlerta(ctx context.Context, id int) (*models.Alerta, error) {
	st, done := q.begin()
	defer done()
	return copyOf(st.alertas[id]), nil
}

func (q *memQueries) ResolverAlerta(ctx context.Context, id, usuarioID int, fecha time.Time) (bool, error) {
	st, done := q.begin()
	defer done()
	alerta, ok := st.alertas[id]
	if !ok || alerta.Atendida {
		return false, nil
	}
	alerta.Atendida = true
	alerta.AtendidaPor = &usuarioID
	alerta.FechaAtencion = &fecha
	return true, nil
}

func (q *memQueries) DeleteAlerta(ctx context.Context, id int) (bool, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.alertas[id]; !ok {
		return false, nil
	}
	delete(st.alertas, id)
	return true, nil
}

var severidadOrden = map[models.Severidad]int{
	models.SeveridadAlta:  0,
	models.SeveridadMedia: 1,
	models.SeveridadBaja:  2,
}

func (q *memQueries) ListAlertas(ctx context.Context, filter *models.AlertaFilter) ([]*models.Alerta, error) {
	if filter == nil {
		filter = &models.AlertaFilter{}
	}
	st, done := q.begin()
	defer done()

	alertas := make([]*models.Alerta, 0)
	for _, alerta := range st.alertas {
		switch {
		case filter.Atendida != nil && alerta.Atendida != *filter.Atendida,
			filter.Severidad != nil && alerta.Severidad != *filter.Severidad,
			filter.Tipo != nil && alerta.Tipo != *filter.Tipo,
			filter.GalponID != nil && !sameInt(alerta.GalponID, filter.GalponID),
			filter.LoteID != nil && !sameInt(alerta.LoteID, filter.LoteID):
			continue
		}
		alertas = append(alertas, copyOf(alerta))
	}
	sort.Slice(alertas, func(i, j int) bool {
		a, b := alertas[i], alertas[j]
		if a.Atendida != b.Atendida {
			return !a.Atendida
		}
		if severidadOrden[a.Severidad] != severidadOrden[b.Severidad] {
			return severidadOrden[a.Severidad] < severidadOrden[b.Severidad]
		}
		if !a.Fecha.Equal(b.Fecha) {
			return a.Fecha.After(b.Fecha)
		}
		return a.ID > b.ID
	})
	return paginate(alertas, filter.Limit, filter.Offset), nil
}

func (q *memQueries) CountAlertasPendientes(ctx context.Context) (map[models.Severidad]int, error) {
	st, done := q.begin()
	defer done()
	counts := make(map[models.Severidad]int)
	for _, alerta := range st.alertas {
		if !alerta.Atendida {
			counts[alerta.Severidad]++
		}
	}
	return counts, nil
}
