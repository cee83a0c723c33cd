package models

import "time"

type RecordingState string

const (
	RecordingIdle    RecordingState = "idle"
	RecordingActive  RecordingState = "recording"
	RecordingPaused  RecordingState = "paused"
	RecordingStopped RecordingState = "stopped"
)

type CameraType string

const (
	CameraFront CameraType = "front"
	CameraBack  CameraType = "back"
)

type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

type Permissions struct {
	Camera     PermissionStatus `json:"camera"`
	Microphone PermissionStatus `json:"microphone"`
	Storage    PermissionStatus `json:"storage"`
}

type AdaptiveQuality struct {
	Enabled             bool `json:"enabled"`
	ThermalManagement   bool `json:"thermal_management"`
	BatteryOptimization bool `json:"battery_optimization"`
}

type CameraSettings struct {
	Type          CameraType      `json:"type"`
	ZoomLevel     float64         `json:"zoom_level"`
	FlashEnabled  bool            `json:"flash_enabled"`
	Stabilization bool            `json:"stabilization"`
	HDR           bool            `json:"hdr"`
	Resolution    Resolution      `json:"resolution"`
	FrameRate     int             `json:"frame_rate"`
	Adaptive      AdaptiveQuality `json:"adaptive"`
}

type CameraCapabilities struct {
	AvailableCameras     []CameraType `json:"available_cameras"`
	SupportedResolutions []Resolution `json:"supported_resolutions"`
	SupportedFrameRates  []int        `json:"supported_frame_rates"`
	MaxResolution        Resolution   `json:"max_resolution"`
	MaxFrameRate         int          `json:"max_frame_rate"`
}

// RecordingMetrics accumulates per-session counters, reset between sessions.
type RecordingMetrics struct {
	Duration            float64 `json:"duration_seconds"`
	DroppedFrames       int64   `json:"dropped_frames"`
	QualityScore        int     `json:"quality_score"`
	ThermalEvents       int     `json:"thermal_events"`
	AdaptiveAdjustments int     `json:"adaptive_adjustments"`
}

type Session struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	Duration    float64    `json:"duration_seconds"`
	CameraType  CameraType `json:"camera_type"`
	ZoomLevel   float64    `json:"zoom_level"`
	IsRecording bool       `json:"is_recording"`
	IsPaused    bool       `json:"is_paused"`
}

type LastError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
