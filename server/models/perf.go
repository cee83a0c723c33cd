package models

import "time"

type ThermalState string

const (
	ThermalNormal   ThermalState = "normal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// Throttling reports whether the device is hot enough that quality
// should be reduced.
func (t ThermalState) Throttling() bool {
	return t == ThermalSerious || t == ThermalCritical
}

type Metric string

const (
	MetricFPS    Metric = "fps"
	MetricMemory Metric = "memory"
	MetricCPU    Metric = "cpu"
)

type SystemSnapshot struct {
	FPS             float64      `json:"fps"`
	MemoryUsageMB   float64      `json:"memory_usage_mb"`
	CPUUsage        float64      `json:"cpu_usage"`
	BatteryLevel    float64      `json:"battery_level"`
	BatteryCharging bool         `json:"battery_charging"`
	Thermal         ThermalState `json:"thermal"`
}

type ProcessingSnapshot struct {
	CameraInitTime    float64 `json:"camera_init_time_ms"`
	PoseDetectionTime float64 `json:"pose_detection_time_ms"`
	RenderTime        float64 `json:"render_time_ms"`
	NetworkQuality    string  `json:"network_quality"`
}

type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ThermalSample struct {
	Timestamp time.Time    `json:"timestamp"`
	State     ThermalState `json:"state"`
}

type PerformanceAlerts struct {
	LowFPS            bool `json:"low_fps"`
	HighMemory        bool `json:"high_memory"`
	ThermalThrottling bool `json:"thermal_throttling"`
	LowBattery        bool `json:"low_battery"`
	HighCPU           bool `json:"high_cpu"`
	NetworkIssues     bool `json:"network_issues"`
}
