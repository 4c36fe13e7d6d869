package services

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/database"
	"github.com/temcen/remedy/internal/ml"
)

type HealthService struct {
	logger   *logrus.Logger
	db       *database.Database
	registry *ml.ModelRegistry

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	systemMetrics       *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService registers its gauges on reg. db may be nil.
func NewHealthService(reg prometheus.Registerer, logger *logrus.Logger, db *database.Database, registry *ml.ModelRegistry) *HealthService {
	hs := &HealthService{
		logger:   logger,
		db:       db,
		registry: registry,
	}

	hs.healthCheckStatus = register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"}))

	hs.lastHealthCheck = register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"}))

	hs.systemMetrics = register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "system_info",
		Help: "System information metrics",
	}, []string{"metric_type"}))

	hs.dbConnectionMetrics = register(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "database_connection_pool_usage",
		Help: "Database connection pool usage",
	}, []string{"database", "state"}))

	return hs
}

// CheckHealth reports "healthy", "degraded" when only optional dependencies
// fail, or "unhealthy" when no model is served or PostgreSQL is down.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
		Details:   make(map[string]interface{}),
	}

	critical := map[string]func(context.Context) error{
		"model": s.checkModel,
	}
	nonCritical := map[string]func(context.Context) error{}

	if s.db != nil && s.db.PG != nil {
		critical["postgresql"] = s.checkPostgreSQL
	}
	if s.db != nil && s.db.Redis != nil {
		nonCritical["redis"] = s.checkRedis
	}

	allCriticalHealthy := true
	for name, check := range critical {
		if err := check(ctx); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for name, check := range nonCritical {
		if err := check(ctx); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	if snapshot, err := s.registry.Current(); err == nil {
		status.Details["model_version"] = snapshot.Version
		status.Details["model_fitted_at"] = snapshot.FittedAt
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}

func (s *HealthService) checkModel(ctx context.Context) error {
	_, err := s.registry.Current()
	return err
}

func (s *HealthService) checkPostgreSQL(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.db.PG.Ping(ctx)
}

func (s *HealthService) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.db.Redis.Ping(ctx).Err()
}

// CollectMetrics samples runtime and connection pool gauges until ctx is done.
func (s *HealthService) CollectMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collectSystemMetrics()
			s.collectDatabaseMetrics()
		}
	}
}

func (s *HealthService) collectSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.systemMetrics.WithLabelValues("memory_alloc_bytes").Set(float64(memStats.Alloc))
	s.systemMetrics.WithLabelValues("memory_sys_bytes").Set(float64(memStats.Sys))
	s.systemMetrics.WithLabelValues("goroutines_count").Set(float64(runtime.NumGoroutine()))
	s.systemMetrics.WithLabelValues("gc_runs_total").Set(float64(memStats.NumGC))
}

func (s *HealthService) collectDatabaseMetrics() {
	if s.db == nil || s.db.PG == nil {
		return
	}

	stats := s.db.PG.Stat()
	s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))

	if stats.MaxConns() > 0 {
		usage := float64(stats.AcquiredConns()) / float64(stats.MaxConns()) * 100
		s.dbConnectionMetrics.WithLabelValues("postgresql", "usage_percent").Set(usage)
	}
}

func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	s.healthCheckStatus.WithLabelValues(serviceName).Set(value)
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
