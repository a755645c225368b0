package middleware

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"avicola-service/internal/config"

	"go.uber.org/zap"
)

// ServerInfo muestra el banner del servidor al iniciar
func ServerInfo(cfg *config.Config, logger *zap.Logger) {
	hostname, _ := os.Hostname()
	goVersion := runtime.Version()
	numCPU := runtime.NumCPU()
	startTime := time.Now().Format("2006-01-02 15:04:05")
	port := cfg.Server.Port

	cache := "L1 en memoria"
	if cfg.Redis.URL != "" {
		cache = "L1 en memoria + Redis"
	}
	notifier := "deshabilitado"
	if cfg.Notifier.WebhookURL != "" {
		notifier = "webhook"
	}

	fmt.Println("")
	fmt.Println("🐔 " + boldColor + "Avicola Service API" + resetColor)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("📅 Started at: " + startTime)
	fmt.Println("🌐 Server URL: " + cyanColor + "http://localhost:" + port + resetColor)
	fmt.Println("💻 Hostname: " + hostname)
	fmt.Println("🔧 Go Version: " + goVersion)
	fmt.Println("⚡ CPU Cores: " + fmt.Sprintf("%d", numCPU))
	fmt.Println("")
	fmt.Println("📊 " + boldColor + "Endpoints:" + resetColor)
	fmt.Println("   " + greenColor + "/api/v1/lotes" + resetColor + "        - Lotes de alimento")
	fmt.Println("   " + greenColor + "/api/v1/inventario" + resetColor + "   - Inventario y movimientos")
	fmt.Println("   " + greenColor + "/api/v1/registros" + resetColor + "    - Registros diarios")
	fmt.Println("   " + greenColor + "/api/v1/alertas" + resetColor + "      - Alertas")
	fmt.Println("   " + greenColor + "/health" + resetColor + "              - Health Check")
	fmt.Println("")
	fmt.Println("⚙️  " + boldColor + "Environment:" + resetColor)
	fmt.Println("   🗄️  Storage: " + cfg.Database.Driver)
	fmt.Println("   🗃️  Cache: " + cache)
	fmt.Println("   👷 Workers: " + fmt.Sprintf("%d (cola %d)", cfg.Worker.Count, cfg.Worker.QueueSize))
	fmt.Println("   ⏰ Stock sweep: " + cfg.Scheduler.StockSweepCron)
	fmt.Println("   📣 Notificaciones: " + notifier)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("")

	logger.Info("Server started successfully",
		zap.String("port", port),
		zap.String("hostname", hostname),
		zap.String("go_version", goVersion),
		zap.Int("cpu_cores", numCPU),
		zap.String("storage_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Redis.URL != ""),
		zap.String("start_time", startTime),
	)
}
