package models

// TelemetrySample is a partial device telemetry report pushed by the client.
// Nil fields were not reported and leave the current value untouched.
type TelemetrySample struct {
	FPS               *float64      `json:"fps,omitempty"`
	MemoryUsageMB     *float64      `json:"memory_usage_mb,omitempty"`
	CPUUsage          *float64      `json:"cpu_usage,omitempty"`
	BatteryLevel      *float64      `json:"battery_level,omitempty"`
	BatteryCharging   *bool         `json:"battery_charging,omitempty"`
	Thermal           *ThermalState `json:"thermal,omitempty"`
	CameraInitTime    *float64      `json:"camera_init_time_ms,omitempty"`
	PoseDetectionTime *float64      `json:"pose_detection_time_ms,omitempty"`
	RenderTime        *float64      `json:"render_time_ms,omitempty"`
	NetworkQuality    *string       `json:"network_quality,omitempty"`
}
