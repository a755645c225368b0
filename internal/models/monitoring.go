package models

import "time"

// MonitoringResponse estado operativo del servicio
type MonitoringResponse struct {
	Requests    RequestMetrics     `json:"requests"`
	Performance PerformanceMetrics `json:"performance"`
	Cache       CacheMetrics       `json:"cache"`
	Database    DatabaseMetrics    `json:"database"`
	Workers     WorkerMetrics      `json:"workers"`
	Alertas     AlertasMetrics     `json:"alertas"`
	System      SystemMetrics      `json:"system"`
	Redis       RedisMetrics       `json:"redis"`
	Timestamp   string             `json:"timestamp"`
}

// RequestMetrics métricas de requests
type RequestMetrics struct {
	Endpoints         int                        `json:"endpoints"`
	ByEndpoint        map[string]EndpointMetrics `json:"by_endpoint"`
	SlowRequests      []SlowRequest              `json:"slow_requests"`
	Errors            []RequestError             `json:"errors"`
	TotalRequests     int                        `json:"total_requests"`
	SlowRequestsCount int                        `json:"slow_requests_count"`
	ErrorsCount       int                        `json:"errors_count"`
	TopEndpoints      []TopEndpoint              `json:"top_endpoints"`
}

// EndpointMetrics métricas por endpoint
type EndpointMetrics struct {
	Count     int     `json:"count"`
	AvgTime   float64 `json:"avg_time"`
	TotalTime int64   `json:"total_time"`
	MaxTime   int64   `json:"max_time"`
}

// SlowRequest request lento
type SlowRequest struct {
	Endpoint  string    `json:"endpoint"`
	Duration  int64     `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestError request terminado con status >= 400
type RequestError struct {
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"status_code"`
	Code       string    `json:"code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TopEndpoint endpoint más usado
type TopEndpoint struct {
	Endpoint  string `json:"endpoint"`
	Count     int    `json:"count"`
	AvgTimeMs string `json:"avg_time_ms"`
}

// PerformanceMetrics métricas de rendimiento
type PerformanceMetrics struct {
	AvgResponseTimeMs string `json:"avg_response_time_ms"`
	MaxResponseTimeMs string `json:"max_response_time_ms"`
}

// CacheMetrics métricas del cache de stock de lotes
type CacheMetrics struct {
	L1Keys            int     `json:"l1_keys"`
	RedisEnabled      bool    `json:"redis_enabled"`
	HitRate           float64 `json:"hit_rate"`
	HitRatePercentage string  `json:"hit_rate_percentage"`
	TotalHits         int64   `json:"total_hits"`
	TotalMisses       int64   `json:"total_misses"`
	TotalRequests     int64   `json:"total_requests"`
	Invalidations     int64   `json:"invalidations"`
}

// DatabaseMetrics métricas de base de datos
type DatabaseMetrics struct {
	Driver          string `json:"driver"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	Status          string `json:"status"`
}

// WorkerMetrics métricas de la cola de tareas en segundo plano
type WorkerMetrics struct {
	Workers   int   `json:"workers"`
	QueueSize int   `json:"queue_size"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// AlertasMetrics conteo de alertas abiertas por severidad
type AlertasMetrics struct {
	Pendientes   int            `json:"pendientes"`
	PorSeveridad map[string]int `json:"por_severidad"`
}

// SystemMetrics métricas del proceso
type SystemMetrics struct {
	HeapUsed    string  `json:"heap_used"`
	HeapTotal   string  `json:"heap_total"`
	Sys         string  `json:"sys"`
	Goroutines  int     `json:"goroutines"`
	Uptime      float64 `json:"uptime"`
	UptimeHours string  `json:"uptime_hours"`
	GoVersion   string  `json:"go_version"`
	Platform    string  `json:"platform"`
	Environment string  `json:"environment"`
}

// RedisMetrics métricas de Redis
type RedisMetrics struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Keys      int    `json:"keys"`
	MemoryMB  string `json:"memory_mb"`
	Status    string `json:"status"`
}

// RequestData datos de un request individual
type RequestData struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	Code       string
	Timestamp  time.Time
}
