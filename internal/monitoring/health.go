package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-sysdiag/internal/bench"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
)

const (
	maxAlerts  = 100
	maxHistory = 1000
)

// HealthStatus is the document served on /status.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    time.Duration  `json:"uptime"`
	System    SystemInfo     `json:"system"`
	Bench     BenchInfo      `json:"bench"`
	Results   []bench.Result `json:"results"`
	Alerts    []Alert        `json:"alerts"`
}

// SystemInfo contains process-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// BenchInfo describes the kernel currently running.
type BenchInfo struct {
	Kernel        string    `json:"kernel"`
	Iterations    int       `json:"iterations"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	P95LatencyMs  float64   `json:"p95_latency_ms"`
	LastIteration time.Time `json:"last_iteration"`
}

// Alert represents a monitor alert.
type Alert struct {
	Level      string     `json:"level"` // info, warning, error, critical
	Component  string     `json:"component"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// HealthMonitor serves benchmark progress over HTTP and raises alerts on
// slow iterations. It satisfies bench.Recorder.
type HealthMonitor struct {
	SlowKernel time.Duration

	startTime     time.Time
	server        *http.Server
	mu            sync.RWMutex
	alerts        []Alert
	kernel        string
	history       []time.Duration
	lastIteration time.Time
	results       []bench.Result
}

// NewHealthMonitor returns a monitor that warns on iterations slower than
// slow. A zero slow disables the check.
func NewHealthMonitor(slow time.Duration) *HealthMonitor {
	return &HealthMonitor{
		SlowKernel: slow,
		startTime:  time.Now(),
	}
}

// Handler returns the monitor's routes.
func (hm *HealthMonitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", hm.handleDetailedStatus)
	mux.HandleFunc("/admin/alerts", hm.handleAlerts)
	mux.HandleFunc("/admin/clear-alerts", hm.handleClearAlerts)
	return mux
}

// Start serves the monitor on addr until Stop is called.
func (hm *HealthMonitor) Start(addr string) error {
	hm.server = &http.Server{
		Addr:         addr,
		Handler:      hm.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Log.Info("health monitor starting", "addr", addr)
	return hm.server.ListenAndServe()
}

// Stop shuts the HTTP server down.
func (hm *HealthMonitor) Stop(ctx context.Context) error {
	if hm.server != nil {
		return hm.server.Shutdown(ctx)
	}
	return nil
}

// RecordKernelDuration records one iteration of kernel name.
func (hm *HealthMonitor) RecordKernelDuration(name string, d time.Duration) {
	metrics.RecordKernelDuration(name, d)

	hm.mu.Lock()
	if hm.kernel != name {
		hm.kernel = name
		hm.history = hm.history[:0]
	}
	hm.history = append(hm.history, d)
	if len(hm.history) > maxHistory {
		hm.history = hm.history[1:]
	}
	hm.lastIteration = time.Now()
	hm.mu.Unlock()

	if hm.SlowKernel > 0 && d > hm.SlowKernel {
		hm.AddAlert("warning", "kernel",
			fmt.Sprintf("Slow kernel %s: %.2f ms", name, float64(d)/float64(time.Millisecond)))
	}
}

// RecordResult stores a finished run for /status.
func (hm *HealthMonitor) RecordResult(res bench.Result) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.results = append(hm.results, res)
}

// AddAlert adds a new alert, keeping the most recent maxAlerts.
func (hm *HealthMonitor) AddAlert(level, component, message string) {
	hm.mu.Lock()
	hm.alerts = append(hm.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(hm.alerts) > maxAlerts {
		hm.alerts = hm.alerts[1:]
	}
	hm.mu.Unlock()

	logger.Log.Warn("alert raised", "level", level, "component", component, "message", message)
}

// ResolveAlert resolves the alert at index.
func (hm *HealthMonitor) ResolveAlert(index int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if index >= 0 && index < len(hm.alerts) {
		now := time.Now()
		hm.alerts[index].Resolved = true
		hm.alerts[index].ResolvedAt = &now
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encode response", "error", err)
	}
}

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.Status()
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hm.Status())
}

func (hm *HealthMonitor) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hm.mu.RLock()
	alerts := slices.Clone(hm.alerts)
	hm.mu.RUnlock()
	if alerts == nil {
		alerts = []Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (hm *HealthMonitor) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hm.mu.Lock()
	hm.alerts = hm.alerts[:0]
	hm.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "alerts cleared"})
}

// Status computes the current health document. Unresolved error alerts
// degrade the status and critical ones make it critical.
func (hm *HealthMonitor) Status() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := "healthy"
	for _, alert := range hm.alerts {
		if alert.Resolved {
			continue
		}
		if alert.Level == "critical" {
			status = "critical"
			break
		}
		if alert.Level == "error" {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		System:    systemInfo(),
		Bench:     hm.benchInfo(),
		Results:   slices.Clone(hm.results),
		Alerts:    slices.Clone(hm.alerts),
	}
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryMB:     int(m.Sys / 1024 / 1024),
		MemoryUsedMB: int(m.Alloc / 1024 / 1024),
	}
}

func (hm *HealthMonitor) benchInfo() BenchInfo {
	info := BenchInfo{
		Kernel:        hm.kernel,
		Iterations:    len(hm.history),
		LastIteration: hm.lastIteration,
	}
	if len(hm.history) == 0 {
		return info
	}

	latencies := make([]float64, len(hm.history))
	var total time.Duration
	for i, d := range hm.history {
		total += d
		latencies[i] = float64(d) / float64(time.Millisecond)
	}
	slices.Sort(latencies)
	p95 := min(int(float64(len(latencies))*0.95), len(latencies)-1)

	info.AvgLatencyMs = float64(total) / float64(len(hm.history)) / float64(time.Millisecond)
	info.P95LatencyMs = latencies[p95]
	return info
}
