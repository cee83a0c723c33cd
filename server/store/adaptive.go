package store

import (
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
)

// ThermalTier is the quality ceiling for one thermal state.
type ThermalTier struct {
	FrameRate  int               `json:"frame_rate"`
	Resolution models.Resolution `json:"resolution"`
}

// ThermalTable maps thermal states to quality ceilings. Caller-supplied so
// product can tune tiers without touching the policy.
type ThermalTable map[models.ThermalState]ThermalTier

func DefaultThermalTable() ThermalTable {
	return ThermalTable{
		models.ThermalNormal:   {FrameRate: 30, Resolution: models.Resolution1080p},
		models.ThermalFair:     {FrameRate: 30, Resolution: models.Resolution720p},
		models.ThermalSerious:  {FrameRate: 24, Resolution: models.Resolution720p},
		models.ThermalCritical: {FrameRate: 15, Resolution: models.Resolution720p},
	}
}

// resolutionRank orders resolutions so the policy can tighten without ever
// loosening an earlier decision.
var resolutionRank = map[models.Resolution]int{
	models.Resolution480p:  0,
	models.Resolution720p:  1,
	models.Resolution1080p: 2,
	models.Resolution4K:    3,
}

func minResolution(a, b models.Resolution) models.Resolution {
	if resolutionRank[b] < resolutionRank[a] {
		return b
	}
	return a
}

// AdaptivePolicy derives a frame-rate/resolution candidate from thermal
// state, battery level, and measured fps, and applies it to the recording
// store. Rules run in a fixed order and later rules may only tighten what
// earlier rules chose: thermal tier first, battery second, low fps third.
type AdaptivePolicy struct {
	table  ThermalTable
	perf   *PerfStore
	rec    *RecordingStore
	logger *zap.Logger

	lowBatteryLevel float64
	lowFPSThreshold float64
}

func NewAdaptivePolicy(table ThermalTable, perf *PerfStore, rec *RecordingStore, logger *zap.Logger) *AdaptivePolicy {
	if table == nil {
		table = DefaultThermalTable()
	}
	return &AdaptivePolicy{
		table:           table,
		perf:            perf,
		rec:             rec,
		logger:          logger,
		lowBatteryLevel: 20,
		lowFPSThreshold: 20,
	}
}

// Evaluate computes the quality candidate for the given snapshot and
// settings. Pure: no store state is touched.
func (p *AdaptivePolicy) Evaluate(sys models.SystemSnapshot, settings models.CameraSettings) (int, models.Resolution) {
	frameRate := settings.FrameRate
	resolution := settings.Resolution

	if settings.Adaptive.ThermalManagement {
		if tier, ok := p.table[sys.Thermal]; ok {
			frameRate = tier.FrameRate
			resolution = tier.Resolution
		}
	}

	if settings.Adaptive.BatteryOptimization && sys.BatteryLevel < p.lowBatteryLevel {
		if frameRate > 15 {
			frameRate = 15
		}
		resolution = minResolution(resolution, models.Resolution720p)
	}

	if sys.FPS > 0 && sys.FPS < p.lowFPSThreshold {
		if frameRate > 24 {
			frameRate = 24
		}
	}

	return frameRate, resolution
}

// Apply re-derives the candidate from the current monitor snapshot and
// installs it on the recording store when it differs from the active
// settings. Invoked on every performance, thermal, and battery change.
func (p *AdaptivePolicy) Apply(kind ChangeKind) {
	settings := p.rec.Settings()
	if !settings.Adaptive.Enabled {
		return
	}

	sys := p.perf.System()
	frameRate, resolution := p.Evaluate(sys, settings)
	if p.rec.ApplyAdaptiveQuality(frameRate, resolution) {
		p.logger.Debug("adaptive policy applied",
			zap.String("trigger", string(kind)),
			zap.String("thermal", string(sys.Thermal)),
			zap.Float64("battery", sys.BatteryLevel),
			zap.Float64("fps", sys.FPS))
	}
}
