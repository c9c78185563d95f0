package services

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Health status values
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// DefaultCheckTimeout bounds a single readiness check
const DefaultCheckTimeout = 2 * time.Second

// Check is a named readiness probe
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version      string
	buildTime    string
	checks       []Check
	checkTimeout time.Duration
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime,omitempty"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual dependency health
type ServiceHealth struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// VersionInfo describes the running build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// NewHealthService creates a health service with the given readiness checks
func NewHealthService(version string, logger *slog.Logger, checks ...Check) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:      version,
		checks:       checks,
		checkTimeout: DefaultCheckTimeout,
		startTime:    time.Now(),
		logger:       logger.With(slog.String("component", "health")),
	}
}

// SetBuildTime records the build timestamp reported by Version
func (hs *HealthService) SetBuildTime(t string) {
	hs.buildTime = t
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Runtime: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"heap_alloc": mem.HeapAlloc,
			"num_gc":     mem.NumGC,
			"go_version": runtime.Version(),
		},
	}
}

// ReadinessCheck runs every check and reports not_ready if any fails
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth, len(hs.checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, c := range hs.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, hs.checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Fn(cctx)
			sh := ServiceHealth{Status: StatusOK, Duration: time.Since(start).String()}
			if err != nil {
				sh.Status = "error"
				sh.Message = err.Error()
				hs.logger.WarnContext(ctx, "readiness check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()))
			}

			mu.Lock()
			status.Services[c.Name] = sh
			if err != nil {
				status.Status = StatusNotReady
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return status
}

// LivenessCheck reports that the process is serving
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// Version returns build information
func (hs *HealthService) Version() VersionInfo {
	return VersionInfo{
		Version:   hs.version,
		BuildTime: hs.buildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
