package store

import (
	"sync"
	"time"

	"github.com/anvers/formcoach/server/models"
	"go.uber.org/zap"
)

// MonitorConfig carries the bounds and alert thresholds for PerfStore.
type MonitorConfig struct {
	HistoryCap        int           // per-metric history point cap
	RetentionWindow   time.Duration // per-metric history age bound
	ThermalHistoryCap int

	MinFPS            float64 // below this, the low-fps alert fires
	MaxMemoryMB       float64
	MaxCPUUsage       float64
	LowBatteryLevel   float64 // percent
	MaxPoseDetectMs   float64
	BatteryThreshold  float64 // battery optimization enable threshold, percent
	BatteryHysteresis float64
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HistoryCap:        300,
		RetentionWindow:   5 * time.Minute,
		ThermalHistoryCap: 100,
		MinFPS:            20,
		MaxMemoryMB:       500,
		MaxCPUUsage:       80,
		LowBatteryLevel:   20,
		MaxPoseDetectMs:   100,
		BatteryThreshold:  20,
		BatteryHysteresis: 10,
	}
}

// ChangeKind identifies which class of telemetry mutation fired a change
// notification, so the adaptive quality policy can be re-derived.
type ChangeKind string

const (
	ChangePerformance ChangeKind = "performance"
	ChangeThermal     ChangeKind = "thermal"
	ChangeBattery     ChangeKind = "battery"
)

// PerfStore owns point-in-time system/processing snapshots, bounded rolling
// metric histories, and derived alert flags.
type PerfStore struct {
	mu     sync.RWMutex
	logger *zap.Logger
	cfg    MonitorConfig

	system     models.SystemSnapshot
	processing models.ProcessingSnapshot

	history        map[models.Metric]*Ring[models.HistoryPoint]
	thermalHistory *Ring[models.ThermalSample]
	alerts         models.PerformanceAlerts

	peakMemoryUsage float64
	peakCPUUsage    float64
	averageCPUUsage float64

	batteryOptimizationEnabled bool
	thermalThrottling          bool

	isMonitoring        bool
	monitoringStartTime time.Time

	onChange func(ChangeKind)
	now      func() time.Time
}

func NewPerfStore(cfg MonitorConfig, logger *zap.Logger) *PerfStore {
	if cfg.HistoryCap <= 0 {
		cfg = DefaultMonitorConfig()
	}
	return &PerfStore{
		logger: logger,
		cfg:    cfg,
		system: models.SystemSnapshot{
			Thermal:      models.ThermalNormal,
			BatteryLevel: 100,
		},
		history: map[models.Metric]*Ring[models.HistoryPoint]{
			models.MetricFPS:    NewRing[models.HistoryPoint](cfg.HistoryCap),
			models.MetricMemory: NewRing[models.HistoryPoint](cfg.HistoryCap),
			models.MetricCPU:    NewRing[models.HistoryPoint](cfg.HistoryCap),
		},
		thermalHistory: NewRing[models.ThermalSample](cfg.ThermalHistoryCap),
		now:            time.Now,
	}
}

// SetChangeListener registers the callback invoked after every
// performance/thermal/battery mutation. The callback runs outside the store
// lock, so it may read the store freely.
func (m *PerfStore) SetChangeListener(fn func(ChangeKind)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *PerfStore) notify(kind ChangeKind) {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()
	if fn != nil {
		fn(kind)
	}
}

// RecordSystemSample merges the non-nil fields of a telemetry sample into
// the system snapshot, maintains running peaks, and appends each reported
// metric to its history series.
//
// The CPU average is a two-term blend, avg' = (avg + sample) / 2, seeded
// with the first sample. It is an O(1) smoothing recurrence, not an
// arithmetic mean; alert thresholds are tuned against this behavior, so do
// not replace it with a true running mean.
func (m *PerfStore) RecordSystemSample(sample models.TelemetrySample) {
	m.mu.Lock()

	if sample.FPS != nil {
		m.system.FPS = *sample.FPS
		m.appendHistoryLocked(models.MetricFPS, *sample.FPS)
	}
	if sample.MemoryUsageMB != nil {
		m.system.MemoryUsageMB = *sample.MemoryUsageMB
		if *sample.MemoryUsageMB > m.peakMemoryUsage {
			m.peakMemoryUsage = *sample.MemoryUsageMB
		}
		m.appendHistoryLocked(models.MetricMemory, *sample.MemoryUsageMB)
	}
	if sample.CPUUsage != nil {
		m.system.CPUUsage = *sample.CPUUsage
		if *sample.CPUUsage > m.peakCPUUsage {
			m.peakCPUUsage = *sample.CPUUsage
		}
		if m.averageCPUUsage == 0 {
			m.averageCPUUsage = *sample.CPUUsage
		} else {
			m.averageCPUUsage = (m.averageCPUUsage + *sample.CPUUsage) / 2
		}
		m.appendHistoryLocked(models.MetricCPU, *sample.CPUUsage)
	}

	m.mu.Unlock()
	m.notify(ChangePerformance)
}

// RecordProcessingSample merges pipeline timing fields into the processing
// snapshot.
func (m *PerfStore) RecordProcessingSample(sample models.TelemetrySample) {
	m.mu.Lock()

	if sample.CameraInitTime != nil {
		m.processing.CameraInitTime = *sample.CameraInitTime
	}
	if sample.PoseDetectionTime != nil {
		m.processing.PoseDetectionTime = *sample.PoseDetectionTime
	}
	if sample.RenderTime != nil {
		m.processing.RenderTime = *sample.RenderTime
	}
	if sample.NetworkQuality != nil {
		m.processing.NetworkQuality = *sample.NetworkQuality
	}

	m.mu.Unlock()
	m.notify(ChangePerformance)
}

// AppendHistoryPoint appends a timestamped value to a metric series. Both
// bounds apply on every append: the ring caps the series by count, then
// entries older than the retention window are filtered out.
func (m *PerfStore) AppendHistoryPoint(metric models.Metric, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendHistoryLocked(metric, value)
}

func (m *PerfStore) appendHistoryLocked(metric models.Metric, value float64) {
	series, ok := m.history[metric]
	if !ok {
		return
	}
	now := m.now()
	series.Push(models.HistoryPoint{Timestamp: now, Value: value})
	cutoff := now.Add(-m.cfg.RetentionWindow)
	series.Filter(func(p models.HistoryPoint) bool {
		return p.Timestamp.After(cutoff)
	})
}

// SetThermalState records a thermal tier change. Unchanged states are
// dropped so the thermal history only contains transitions.
func (m *PerfStore) SetThermalState(state models.ThermalState) {
	m.mu.Lock()
	if m.system.Thermal == state {
		m.mu.Unlock()
		return
	}
	m.system.Thermal = state
	m.thermalThrottling = state.Throttling()
	m.thermalHistory.Push(models.ThermalSample{Timestamp: m.now(), State: state})
	m.logger.Info("thermal state changed", zap.String("state", string(state)))
	m.mu.Unlock()

	m.notify(ChangeThermal)
}

// SetBatteryLevel updates battery level and (optionally) charging state.
// Battery optimization switches on below the configured threshold and only
// switches back off once the level climbs past threshold + hysteresis, so
// the flag does not flap at the boundary.
func (m *PerfStore) SetBatteryLevel(level float64, charging ...bool) {
	m.mu.Lock()
	m.system.BatteryLevel = level
	if len(charging) > 0 {
		m.system.BatteryCharging = charging[0]
	}
	if level < m.cfg.BatteryThreshold {
		m.batteryOptimizationEnabled = true
	} else if level > m.cfg.BatteryThreshold+m.cfg.BatteryHysteresis {
		m.batteryOptimizationEnabled = false
	}
	m.mu.Unlock()

	m.notify(ChangeBattery)
}

// RecomputeAlerts derives the alert flags from the current snapshots and
// thresholds. Alerts are not maintained incrementally; callers decide when
// a recompute is worth it.
func (m *PerfStore) RecomputeAlerts() models.PerformanceAlerts {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = models.PerformanceAlerts{
		LowFPS:            m.system.FPS > 0 && m.system.FPS < m.cfg.MinFPS,
		HighMemory:        m.system.MemoryUsageMB > m.cfg.MaxMemoryMB,
		ThermalThrottling: m.thermalThrottling,
		LowBattery:        m.system.BatteryLevel < m.cfg.LowBatteryLevel,
		HighCPU:           m.system.CPUUsage > m.cfg.MaxCPUUsage,
		NetworkIssues:     m.processing.NetworkQuality == "poor",
	}
	return m.alerts
}

// WindowedAverage averages the history entries newer than now-window.
// A window of zero or less means the default 60s. Returns 0 when the window
// is empty.
func (m *PerfStore) WindowedAverage(metric models.Metric, window time.Duration) float64 {
	if window <= 0 {
		window = time.Minute
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.history[metric]
	if !ok {
		return 0
	}
	cutoff := m.now().Add(-window)
	var sum float64
	var n int
	for i := 0; i < series.Len(); i++ {
		p := series.At(i)
		if p.Timestamp.After(cutoff) {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (m *PerfStore) StartMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isMonitoring {
		return
	}
	m.isMonitoring = true
	m.monitoringStartTime = m.now()
	m.logger.Info("performance monitoring started")
}

func (m *PerfStore) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isMonitoring {
		return
	}
	m.isMonitoring = false
	m.logger.Info("performance monitoring stopped")
}

func (m *PerfStore) IsMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.isMonitoring
}

func (m *PerfStore) MonitoringStartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.monitoringStartTime
}

func (m *PerfStore) System() models.SystemSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.system
}

func (m *PerfStore) Processing() models.ProcessingSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.processing
}

func (m *PerfStore) Alerts() models.PerformanceAlerts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.alerts
}

func (m *PerfStore) History(metric models.Metric) []models.HistoryPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.history[metric]
	if !ok {
		return nil
	}
	return series.Items()
}

func (m *PerfStore) ThermalHistory() []models.ThermalSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.thermalHistory.Items()
}

func (m *PerfStore) PeakMemoryUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.peakMemoryUsage
}

func (m *PerfStore) PeakCPUUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.peakCPUUsage
}

func (m *PerfStore) AverageCPUUsage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.averageCPUUsage
}

func (m *PerfStore) BatteryOptimizationEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.batteryOptimizationEnabled
}
