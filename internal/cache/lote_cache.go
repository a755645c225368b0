package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"avicola-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss se devuelve cuando el lote no está en ningún nivel
var ErrCacheMiss = errors.New("lote no encontrado en caché")

// CacheStats estadísticas del caché
type CacheStats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	TotalRequests int64
	TotalKeys     int
	RedisEnabled  bool
}

type l1Entry struct {
	lote      *models.LoteWithStock
	expiresAt time.Time
}

// LoteCache implementa caché multi-nivel para lotes con su stock por bodega
type LoteCache struct {
	// L1 Cache: memoria local
	l1Cache map[int]l1Entry
	l1Mutex sync.RWMutex

	// generación por lote; cada invalidación la incrementa. Protegida por l1Mutex
	generations map[int]uint64

	// L2 Cache: Redis, opcional
	redisClient *redis.Client

	maxL1Size int
	ttl       time.Duration

	logger *zap.Logger

	statsMutex    sync.RWMutex
	hits          int64
	misses        int64
	invalidations int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoteCache crea el caché; redisClient puede ser nil
func NewLoteCache(redisClient *redis.Client, maxL1Size int, ttl time.Duration, logger *zap.Logger) *LoteCache {
	if maxL1Size <= 0 {
		maxL1Size = 500
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	lc := &LoteCache{
		l1Cache:     make(map[int]l1Entry),
		generations: make(map[int]uint64),
		redisClient: redisClient,
		maxL1Size:   maxL1Size,
		ttl:         ttl,
		logger:      logger,
		stop:        make(chan struct{}),
	}

	// Limpieza periódica del L1
	go lc.cleanupL1Cache(time.Minute)

	return lc
}

// Close detiene la limpieza periódica
func (lc *LoteCache) Close() {
	lc.stopOnce.Do(func() { close(lc.stop) })
}

// GetStats retorna estadísticas del caché
func (lc *LoteCache) GetStats() CacheStats {
	lc.statsMutex.RLock()
	defer lc.statsMutex.RUnlock()

	lc.l1Mutex.RLock()
	totalKeys := len(lc.l1Cache)
	lc.l1Mutex.RUnlock()

	return CacheStats{
		Hits:          lc.hits,
		Misses:        lc.misses,
		Invalidations: lc.invalidations,
		TotalRequests: lc.hits + lc.misses,
		TotalKeys:     totalKeys,
		RedisEnabled:  lc.redisClient != nil,
	}
}

// GetLote busca un lote en L1 y luego en Redis
func (lc *LoteCache) GetLote(ctx context.Context, loteID int) (*models.LoteWithStock, error) {
	start := time.Now()

	if lote := lc.getFromL1(loteID); lote != nil {
		lc.recordHit()
		lc.logger.Debug("L1 cache hit",
			zap.Int("lote_id", loteID),
			zap.Duration("latency", time.Since(start)))
		return lote, nil
	}

	if lote, err := lc.getFromL2(ctx, loteID); err == nil && lote != nil {
		lc.setToL1(loteID, lote)
		lc.recordHit()
		lc.logger.Debug("L2 cache hit",
			zap.Int("lote_id", loteID),
			zap.Duration("latency", time.Since(start)))
		return lote, nil
	}

	lc.recordMiss()
	return nil, ErrCacheMiss
}

// SetLote almacena el lote en ambos niveles
func (lc *LoteCache) SetLote(ctx context.Context, lote *models.LoteWithStock) error {
	lc.setToL1(lote.ID, lote)
	return lc.setToL2(ctx, lote.ID, lote)
}

// Generation devuelve la generación actual del lote. Se toma antes de leer
// la base para luego llenar el caché con SetLoteIfCurrent.
func (lc *LoteCache) Generation(loteID int) uint64 {
	lc.l1Mutex.RLock()
	defer lc.l1Mutex.RUnlock()
	return lc.generations[loteID]
}

// SetLoteIfCurrent almacena el lote solo si no hubo una invalidación desde
// que se tomó gen. Devuelve false si la lectura quedó vieja.
func (lc *LoteCache) SetLoteIfCurrent(ctx context.Context, lote *models.LoteWithStock, gen uint64) (bool, error) {
	lc.l1Mutex.Lock()
	if lc.generations[lote.ID] != gen {
		lc.l1Mutex.Unlock()
		return false, nil
	}
	lc.storeL1Locked(lote.ID, lote)
	lc.l1Mutex.Unlock()

	return true, lc.setToL2(ctx, lote.ID, lote)
}

// InvalidateLote elimina el lote de ambos niveles
func (lc *LoteCache) InvalidateLote(ctx context.Context, loteID int) error {
	lc.l1Mutex.Lock()
	delete(lc.l1Cache, loteID)
	lc.generations[loteID]++
	lc.l1Mutex.Unlock()

	lc.statsMutex.Lock()
	lc.invalidations++
	lc.statsMutex.Unlock()

	if lc.redisClient == nil {
		return nil
	}
	return lc.redisClient.Del(ctx, redisKey(loteID)).Err()
}

func (lc *LoteCache) recordHit() {
	lc.statsMutex.Lock()
	lc.hits++
	lc.statsMutex.Unlock()
}

func (lc *LoteCache) recordMiss() {
	lc.statsMutex.Lock()
	lc.misses++
	lc.statsMutex.Unlock()
}

func redisKey(loteID int) string {
	return fmt.Sprintf("lote:%d", loteID)
}

func (lc *LoteCache) getFromL1(loteID int) *models.LoteWithStock {
	lc.l1Mutex.RLock()
	defer lc.l1Mutex.RUnlock()

	entry, ok := lc.l1Cache[loteID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.lote
}

func (lc *LoteCache) setToL1(loteID int, lote *models.LoteWithStock) {
	lc.l1Mutex.Lock()
	defer lc.l1Mutex.Unlock()
	lc.storeL1Locked(loteID, lote)
}

// storeL1Locked requiere l1Mutex tomado
func (lc *LoteCache) storeL1Locked(loteID int, lote *models.LoteWithStock) {
	if _, exists := lc.l1Cache[loteID]; !exists && len(lc.l1Cache) >= lc.maxL1Size {
		lc.evictOldest()
	}

	lc.l1Cache[loteID] = l1Entry{lote: lote, expiresAt: time.Now().Add(lc.ttl)}
}

// evictOldest elimina la entrada que vence primero; requiere l1Mutex tomado
func (lc *LoteCache) evictOldest() {
	var (
		oldestKey int
		oldest    time.Time
		found     bool
	)
	for key, entry := range lc.l1Cache {
		if !found || entry.expiresAt.Before(oldest) {
			oldestKey, oldest, found = key, entry.expiresAt, true
		}
	}
	if found {
		delete(lc.l1Cache, oldestKey)
	}
}

func (lc *LoteCache) getFromL2(ctx context.Context, loteID int) (*models.LoteWithStock, error) {
	if lc.redisClient == nil {
		return nil, ErrCacheMiss
	}

	data, err := lc.redisClient.Get(ctx, redisKey(loteID)).Result()
	if err != nil {
		return nil, err
	}

	var lote models.LoteWithStock
	if err := json.Unmarshal([]byte(data), &lote); err != nil {
		return nil, err
	}
	return &lote, nil
}

func (lc *LoteCache) setToL2(ctx context.Context, loteID int, lote *models.LoteWithStock) error {
	if lc.redisClient == nil {
		return nil
	}

	data, err := json.Marshal(lote)
	if err != nil {
		return err
	}
	return lc.redisClient.Set(ctx, redisKey(loteID), data, lc.ttl).Err()
}

// cleanupL1Cache quita las entradas vencidas del L1
func (lc *LoteCache) cleanupL1Cache(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-lc.stop:
			return
		case now := <-ticker.C:
			lc.l1Mutex.Lock()
			removed := 0
			for key, entry := range lc.l1Cache {
				if now.After(entry.expiresAt) {
					delete(lc.l1Cache, key)
					removed++
				}
			}
			remaining := len(lc.l1Cache)
			lc.l1Mutex.Unlock()

			if removed > 0 {
				lc.logger.Debug("L1 cache cleanup", zap.Int("removed", removed), zap.Int("items", remaining))
			}
		}
	}
}
