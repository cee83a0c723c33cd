package processor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/store"
)

type FrameItem struct {
	Frame models.PoseFrame
}

type TelemetryItem struct {
	Sample models.TelemetrySample
}

type IngestorConfig struct {
	QueueSize int `json:"queue_size"`
	Workers   int `json:"workers"`
}

func DefaultIngestorConfig() IngestorConfig {
	// A single worker keeps frame application in arrival order, which the
	// pose history's append-order guarantee depends on.
	return IngestorConfig{QueueSize: 256, Workers: 1}
}

type IngestorStats struct {
	StartTime         time.Time `json:"start_time"`
	FramesIngested    int64     `json:"frames_ingested"`
	TelemetryIngested int64     `json:"telemetry_ingested"`
	Dropped           int64     `json:"dropped"`
	AverageLatency    float64   `json:"average_latency_ms"`
	QueueSize         int       `json:"queue_size"`
}

// Ingestor is the push-based entry point for pose frames and device
// telemetry. Work flows through a bounded queue so a burst from the client
// cannot stall the gateway; overflow is counted as dropped frames on the
// recording metrics.
type Ingestor struct {
	engine *store.Engine
	queue  *WorkQueue
	logger *zap.Logger

	mutex sync.RWMutex
	stats IngestorStats
}

func NewIngestor(engine *store.Engine, cfg IngestorConfig, logger *zap.Logger) *Ingestor {
	if cfg.QueueSize <= 0 {
		cfg = DefaultIngestorConfig()
	}

	ing := &Ingestor{
		engine: engine,
		logger: logger,
		stats:  IngestorStats{StartTime: time.Now()},
	}
	ing.queue = NewWorkQueue(cfg.QueueSize, cfg.Workers, ing.process, logger)

	return ing
}

// IngestFrame queues one detected pose frame. Reports false when the queue
// is saturated and the frame was dropped.
func (ing *Ingestor) IngestFrame(frame models.PoseFrame) bool {
	item := &Item{
		Frame:      &FrameItem{Frame: frame},
		EnqueuedAt: time.Now(),
	}
	if !ing.queue.Enqueue(item) {
		ing.engine.Recording.AddDroppedFrames(1)
		ing.mutex.Lock()
		ing.stats.Dropped++
		ing.mutex.Unlock()
		return false
	}
	return true
}

// IngestTelemetry queues one device telemetry sample.
func (ing *Ingestor) IngestTelemetry(sample models.TelemetrySample) bool {
	item := &Item{
		Telemetry:  &TelemetryItem{Sample: sample},
		EnqueuedAt: time.Now(),
	}
	if !ing.queue.Enqueue(item) {
		ing.mutex.Lock()
		ing.stats.Dropped++
		ing.mutex.Unlock()
		ing.logger.Warn("telemetry sample dropped, queue full")
		return false
	}
	return true
}

func (ing *Ingestor) process(item *Item) {
	switch {
	case item.Frame != nil:
		ing.processFrame(item)
	case item.Telemetry != nil:
		ing.processTelemetry(item)
	}
}

func (ing *Ingestor) processFrame(item *Item) {
	ing.engine.Pose.Ingest(item.Frame.Frame)

	// Frames that arrive while an analysis run is active also feed the
	// analysis store's separate buffer.
	if ing.engine.Analysis.IsAnalyzing() {
		ing.engine.Analysis.IngestPoseFrame(item.Frame.Frame)
	}

	if session, ok := ing.engine.Recording.Session(); ok && session.IsRecording {
		ing.engine.Recording.UpdateDuration(time.Since(session.StartTime).Seconds())
	}

	ing.updateLatency(time.Since(item.EnqueuedAt))
	ing.mutex.Lock()
	ing.stats.FramesIngested++
	ing.mutex.Unlock()
}

func (ing *Ingestor) processTelemetry(item *Item) {
	sample := item.Telemetry.Sample
	perf := ing.engine.Perf

	if sample.FPS != nil || sample.MemoryUsageMB != nil || sample.CPUUsage != nil {
		perf.RecordSystemSample(sample)
	}
	if sample.CameraInitTime != nil || sample.PoseDetectionTime != nil ||
		sample.RenderTime != nil || sample.NetworkQuality != nil {
		perf.RecordProcessingSample(sample)
	}
	if sample.Thermal != nil {
		perf.SetThermalState(*sample.Thermal)
	}
	if sample.BatteryLevel != nil {
		if sample.BatteryCharging != nil {
			perf.SetBatteryLevel(*sample.BatteryLevel, *sample.BatteryCharging)
		} else {
			perf.SetBatteryLevel(*sample.BatteryLevel)
		}
	}

	ing.mutex.Lock()
	ing.stats.TelemetryIngested++
	ing.mutex.Unlock()
}

func (ing *Ingestor) updateLatency(latency time.Duration) {
	current := float64(latency.Microseconds()) / 1000

	ing.mutex.Lock()
	defer ing.mutex.Unlock()

	if ing.stats.AverageLatency == 0 {
		ing.stats.AverageLatency = current
	} else {
		alpha := 0.1
		ing.stats.AverageLatency = alpha*current + (1-alpha)*ing.stats.AverageLatency
	}
}

func (ing *Ingestor) Stats() IngestorStats {
	ing.mutex.RLock()
	defer ing.mutex.RUnlock()

	stats := ing.stats
	stats.QueueSize = ing.queue.Size()
	return stats
}

func (ing *Ingestor) Shutdown(timeout time.Duration) error {
	ing.logger.Info("shutting down ingestor")
	return ing.queue.Shutdown(timeout)
}
