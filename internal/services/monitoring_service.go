package services

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"avicola-service/internal/cache"
	"avicola-service/internal/config"
	"avicola-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	slowRequestThreshold = time.Second
	maxRecentEntries     = 100
	maxTopEndpoints      = 10
)

// WorkerStats expone los contadores de la cola de tareas
type WorkerStats interface {
	Stats() models.WorkerMetrics
}

// AlertasSummary resume las alertas abiertas
type AlertasSummary interface {
	ResumenPendientes(ctx context.Context) (*models.AlertasMetrics, error)
}

type MonitoringService interface {
	GetMetrics(ctx context.Context) *models.MonitoringResponse
	RecordRequest(data models.RequestData)
	GetCacheStats() models.CacheMetrics
	GetDatabaseStats() models.DatabaseMetrics
	GetSystemStats() models.SystemMetrics
	GetRedisStats(ctx context.Context) models.RedisMetrics
}

type monitoringService struct {
	logger      *zap.Logger
	config      *config.Config
	redisClient *redis.Client
	db          *sql.DB
	loteCache   *cache.LoteCache
	workers     WorkerStats
	alertas     AlertasSummary

	// Métricas de requests
	requestsMutex sync.RWMutex
	requests      map[string]*models.EndpointMetrics
	slowRequests  []models.SlowRequest
	errors        []models.RequestError
	totalRequests int64

	startTime time.Time
}

// NewMonitoringService crea el servicio; redisClient, db, workers y alertas pueden ser nil
func NewMonitoringService(
	logger *zap.Logger,
	config *config.Config,
	redisClient *redis.Client,
	db *sql.DB,
	loteCache *cache.LoteCache,
	workers WorkerStats,
	alertas AlertasSummary,
) MonitoringService {
	return &monitoringService{
		logger:      logger,
		config:      config,
		redisClient: redisClient,
		db:          db,
		loteCache:   loteCache,
		workers:     workers,
		alertas:     alertas,
		requests:    make(map[string]*models.EndpointMetrics),
		startTime:   time.Now(),
	}
}

func (s *monitoringService) RecordRequest(data models.RequestData) {
	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	endpointKey := fmt.Sprintf("%s %s", data.Method, data.Endpoint)

	metrics, exists := s.requests[endpointKey]
	if !exists {
		metrics = &models.EndpointMetrics{}
		s.requests[endpointKey] = metrics
	}

	durationMs := data.Duration.Milliseconds()
	metrics.Count++
	metrics.TotalTime += durationMs
	metrics.AvgTime = float64(metrics.TotalTime) / float64(metrics.Count)
	if durationMs > metrics.MaxTime {
		metrics.MaxTime = durationMs
	}

	s.totalRequests++

	if data.Duration > slowRequestThreshold {
		s.slowRequests = append(s.slowRequests, models.SlowRequest{
			Endpoint:  endpointKey,
			Duration:  durationMs,
			Timestamp: data.Timestamp,
		})
		if len(s.slowRequests) > maxRecentEntries {
			s.slowRequests = s.slowRequests[1:]
		}
	}

	if data.StatusCode >= 400 {
		s.errors = append(s.errors, models.RequestError{
			Endpoint:   endpointKey,
			StatusCode: data.StatusCode,
			Code:       data.Code,
			Timestamp:  data.Timestamp,
		})
		if len(s.errors) > maxRecentEntries {
			s.errors = s.errors[1:]
		}
	}
}

func (s *monitoringService) GetMetrics(ctx context.Context) *models.MonitoringResponse {
	s.requestsMutex.RLock()
	requestMetrics := s.calculateRequestMetrics()
	performanceMetrics := s.calculatePerformanceMetrics()
	s.requestsMutex.RUnlock()

	response := &models.MonitoringResponse{
		Requests:    requestMetrics,
		Performance: performanceMetrics,
		Cache:       s.GetCacheStats(),
		Database:    s.GetDatabaseStats(),
		System:      s.GetSystemStats(),
		Redis:       s.GetRedisStats(ctx),
		Alertas:     models.AlertasMetrics{PorSeveridad: map[string]int{}},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	if s.workers != nil {
		response.Workers = s.workers.Stats()
	}
	if s.alertas != nil {
		resumen, err := s.alertas.ResumenPendientes(ctx)
		if err != nil {
			s.logger.Warn("Error obteniendo resumen de alertas", zap.Error(err))
		} else {
			response.Alertas = *resumen
		}
	}
	return response
}

// calculateRequestMetrics requiere requestsMutex tomado
func (s *monitoringService) calculateRequestMetrics() models.RequestMetrics {
	type endpointEntry struct {
		key     string
		metrics *models.EndpointMetrics
	}

	endpoints := make([]endpointEntry, 0, len(s.requests))
	byEndpoint := make(map[string]models.EndpointMetrics, len(s.requests))
	for key, metrics := range s.requests {
		endpoints = append(endpoints, endpointEntry{key, metrics})
		byEndpoint[key] = *metrics
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].metrics.Count != endpoints[j].metrics.Count {
			return endpoints[i].metrics.Count > endpoints[j].metrics.Count
		}
		return endpoints[i].key < endpoints[j].key
	})

	topEndpoints := make([]models.TopEndpoint, 0, maxTopEndpoints)
	for i, endpoint := range endpoints {
		if i >= maxTopEndpoints {
			break
		}
		topEndpoints = append(topEndpoints, models.TopEndpoint{
			Endpoint:  endpoint.key,
			Count:     endpoint.metrics.Count,
			AvgTimeMs: fmt.Sprintf("%.2fms", endpoint.metrics.AvgTime),
		})
	}

	return models.RequestMetrics{
		Endpoints:         len(s.requests),
		ByEndpoint:        byEndpoint,
		SlowRequests:      append([]models.SlowRequest(nil), s.slowRequests...),
		Errors:            append([]models.RequestError(nil), s.errors...),
		TotalRequests:     int(s.totalRequests),
		SlowRequestsCount: len(s.slowRequests),
		ErrorsCount:       len(s.errors),
		TopEndpoints:      topEndpoints,
	}
}

// calculatePerformanceMetrics requiere requestsMutex tomado
func (s *monitoringService) calculatePerformanceMetrics() models.PerformanceMetrics {
	var (
		totalTime int64
		maxTime   int64
		count     int
	)
	for _, metrics := range s.requests {
		totalTime += metrics.TotalTime
		count += metrics.Count
		if metrics.MaxTime > maxTime {
			maxTime = metrics.MaxTime
		}
	}

	var avgTime float64
	if count > 0 {
		avgTime = float64(totalTime) / float64(count)
	}

	return models.PerformanceMetrics{
		AvgResponseTimeMs: fmt.Sprintf("%.2fms", avgTime),
		MaxResponseTimeMs: fmt.Sprintf("%dms", maxTime),
	}
}

func (s *monitoringService) GetCacheStats() models.CacheMetrics {
	if s.loteCache == nil {
		return models.CacheMetrics{HitRatePercentage: "0.00%"}
	}
	stats := s.loteCache.GetStats()

	var hitRate float64
	if stats.TotalRequests > 0 {
		hitRate = float64(stats.Hits) / float64(stats.TotalRequests)
	}

	return models.CacheMetrics{
		L1Keys:            stats.TotalKeys,
		RedisEnabled:      stats.RedisEnabled,
		HitRate:           hitRate,
		HitRatePercentage: fmt.Sprintf("%.2f%%", hitRate*100),
		TotalHits:         stats.Hits,
		TotalMisses:       stats.Misses,
		TotalRequests:     stats.TotalRequests,
		Invalidations:     stats.Invalidations,
	}
}

func (s *monitoringService) GetDatabaseStats() models.DatabaseMetrics {
	if s.db == nil {
		return models.DatabaseMetrics{Driver: config.StorageDriverMemory, Status: "memory"}
	}

	stats := s.db.Stats()
	return models.DatabaseMetrics{
		Driver:          config.StorageDriverPostgres,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		Status:          "online",
	}
}

func (s *monitoringService) GetSystemStats() models.SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(s.startTime).Seconds()

	environment := "production"
	if s.config != nil && s.config.Server.GinMode == "debug" {
		environment = "development"
	}

	return models.SystemMetrics{
		HeapUsed:    fmt.Sprintf("%.2f MB", float64(m.HeapAlloc)/1024/1024),
		HeapTotal:   fmt.Sprintf("%.2f MB", float64(m.HeapSys)/1024/1024),
		Sys:         fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		Goroutines:  runtime.NumGoroutine(),
		Uptime:      uptime,
		UptimeHours: fmt.Sprintf("%.2fh", uptime/3600),
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS,
		Environment: environment,
	}
}

func (s *monitoringService) GetRedisStats(ctx context.Context) models.RedisMetrics {
	if s.redisClient == nil {
		return models.RedisMetrics{Status: "disabled"}
	}

	_, err := s.redisClient.Ping(ctx).Result()
	connected := err == nil

	metrics := models.RedisMetrics{Enabled: true, Connected: connected, Status: "offline"}
	if !connected {
		return metrics
	}
	metrics.Status = "online"

	if keys, err := s.redisClient.DBSize(ctx).Result(); err == nil {
		metrics.Keys = int(keys)
	}

	if info, err := s.redisClient.Info(ctx, "memory").Result(); err == nil {
		metrics.MemoryMB = parseUsedMemoryMB(info)
	}
	return metrics
}

// parseUsedMemoryMB extrae used_memory de la salida de INFO memory
func parseUsedMemoryMB(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if !strings.HasPrefix(line, "used_memory:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "used_memory:"))
		if memBytes, err := strconv.ParseInt(value, 10, 64); err == nil {
			return fmt.Sprintf("%.2f MB", float64(memBytes)/1024/1024)
		}
		return ""
	}
	return ""
}
