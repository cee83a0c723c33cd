package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
)

// EngineConfig bundles the tunables for one engine instance.
type EngineConfig struct {
	PoseHistoryCap  int
	PoseErrorCap    int
	AnalysisPoseCap int
	Monitor         MonitorConfig
	Thermal         ThermalTable
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PoseHistoryCap:  DefaultPoseHistoryCap,
		PoseErrorCap:    DefaultPoseErrorCap,
		AnalysisPoseCap: DefaultAnalysisPoseCap,
		Monitor:         DefaultMonitorConfig(),
		Thermal:         DefaultThermalTable(),
	}
}

// Engine owns one instance of every store and wires the cross-store
// plumbing: the recording store's collaborators and the adaptive policy's
// subscription to performance, thermal, and battery changes. No store is a
// package-level singleton; tests build as many engines as they like.
type Engine struct {
	Recording *RecordingStore
	Pose      *PoseStore
	Perf      *PerfStore
	Analysis  *AnalysisStore
	Policy    *AdaptivePolicy

	logger *zap.Logger
	cancel context.CancelFunc
}

func NewEngine(cfg EngineConfig, hw CameraHardware, ps persist.Store, logger *zap.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	pose := NewPoseStore(cfg.PoseHistoryCap, cfg.PoseErrorCap, logger)
	perf := NewPerfStore(cfg.Monitor, logger)
	recording := NewRecordingStore(ctx, hw, pose, perf, ps, logger)
	analysis := NewAnalysisStore(ctx, cfg.AnalysisPoseCap, ps, logger)
	policy := NewAdaptivePolicy(cfg.Thermal, perf, recording, logger)

	e := &Engine{
		Recording: recording,
		Pose:      pose,
		Perf:      perf,
		Analysis:  analysis,
		Policy:    policy,
		logger:    logger,
		cancel:    cancel,
	}

	perf.SetChangeListener(func(kind ChangeKind) {
		if kind == ChangeThermal && perf.System().Thermal.Throttling() {
			recording.RecordThermalEvent()
		}
		policy.Apply(kind)
	})

	return e
}

// Reset restores every store to its initial state.
func (e *Engine) Reset() {
	e.Recording.Reset()
	e.Analysis.Reset()
	e.Pose.StopRecording()
	e.Pose.ClearHistory()
	e.Pose.ClearErrors()
	e.Perf.StopMonitoring()
	e.logger.Info("engine reset")
}

func (e *Engine) Close() {
	e.cancel()
}

// EngineSnapshot is the full engine state pushed to UI subscribers.
type EngineSnapshot struct {
	State        models.RecordingState     `json:"state"`
	Session      *models.Session           `json:"session,omitempty"`
	Settings     models.CameraSettings     `json:"settings"`
	Permissions  models.Permissions        `json:"permissions"`
	Capabilities models.CameraCapabilities `json:"capabilities"`
	Metrics      models.RecordingMetrics   `json:"metrics"`

	CurrentPose *models.PoseFrame `json:"current_pose,omitempty"`
	PoseFrames  int               `json:"pose_frames"`
	PoseErrors  []string          `json:"pose_errors,omitempty"`

	System     models.SystemSnapshot     `json:"system"`
	Processing models.ProcessingSnapshot `json:"processing"`
	Alerts     models.PerformanceAlerts  `json:"alerts"`

	AnalysisID    string               `json:"analysis_id,omitempty"`
	IsAnalyzing   bool                 `json:"is_analyzing"`
	Progress      float64              `json:"progress"`
	Stage         models.AnalysisStage `json:"stage"`
	RetryCount    int                  `json:"retry_count"`
	AnalysisError string               `json:"analysis_error,omitempty"`
	Audio         models.AudioState    `json:"audio"`
}

func (e *Engine) Snapshot() EngineSnapshot {
	snap := EngineSnapshot{
		State:         e.Recording.State(),
		Settings:      e.Recording.Settings(),
		Permissions:   e.Recording.Permissions(),
		Capabilities:  e.Recording.Capabilities(),
		Metrics:       e.Recording.Metrics(),
		PoseFrames:    len(e.Pose.History()),
		PoseErrors:    e.Pose.Errors(),
		System:        e.Perf.System(),
		Processing:    e.Perf.Processing(),
		Alerts:        e.Perf.Alerts(),
		AnalysisID:    e.Analysis.AnalysisID(),
		IsAnalyzing:   e.Analysis.IsAnalyzing(),
		Progress:      e.Analysis.Progress(),
		Stage:         e.Analysis.Stage(),
		RetryCount:    e.Analysis.RetryCount(),
		AnalysisError: e.Analysis.Error(),
		Audio:         e.Analysis.Audio(),
	}
	if session, ok := e.Recording.Session(); ok {
		snap.Session = &session
	}
	if pose, ok := e.Pose.Current(); ok {
		snap.CurrentPose = &pose
	}
	return snap
}
