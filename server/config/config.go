package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	Engine      EngineConfig      `json:"engine"`
	Monitor     MonitorConfig     `json:"monitor"`
	Pipeline    PipelineConfig    `json:"pipeline"`
	Persistence PersistenceConfig `json:"persistence"`
	Security    SecurityConfig    `json:"security"`
	Logging     LoggingConfig     `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

type EngineConfig struct {
	PoseHistoryCap  int `json:"pose_history_cap"`
	PoseErrorCap    int `json:"pose_error_cap"`
	AnalysisPoseCap int `json:"analysis_pose_cap"`
	IngestQueueSize int `json:"ingest_queue_size"`
	IngestWorkers   int `json:"ingest_workers"`
}

type MonitorConfig struct {
	HistoryCap       int           `json:"history_cap"`
	RetentionWindow  time.Duration `json:"retention_window"`
	ThermalCap       int           `json:"thermal_cap"`
	MinFPS           float64       `json:"min_fps"`
	MaxMemoryMB      float64       `json:"max_memory_mb"`
	MaxCPUUsage      float64       `json:"max_cpu_usage"`
	LowBatteryLevel  float64       `json:"low_battery_level"`
	MaxPoseDetectMs  float64       `json:"max_pose_detect_ms"`
	BatteryThreshold float64       `json:"battery_threshold"`
}

type PipelineConfig struct {
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type PersistenceConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

type SecurityConfig struct {
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Engine: EngineConfig{
			PoseHistoryCap:  getEnvAsInt("ENGINE_POSE_HISTORY_CAP", 100),
			PoseErrorCap:    getEnvAsInt("ENGINE_POSE_ERROR_CAP", 10),
			AnalysisPoseCap: getEnvAsInt("ENGINE_ANALYSIS_POSE_CAP", 100),
			IngestQueueSize: getEnvAsInt("ENGINE_INGEST_QUEUE_SIZE", 256),
			IngestWorkers:   getEnvAsInt("ENGINE_INGEST_WORKERS", 1),
		},
		Monitor: MonitorConfig{
			HistoryCap:       getEnvAsInt("MONITOR_HISTORY_CAP", 300),
			RetentionWindow:  getEnvAsDuration("MONITOR_RETENTION_WINDOW", 5*time.Minute),
			ThermalCap:       getEnvAsInt("MONITOR_THERMAL_CAP", 100),
			MinFPS:           getEnvAsFloat("MONITOR_MIN_FPS", 20),
			MaxMemoryMB:      getEnvAsFloat("MONITOR_MAX_MEMORY_MB", 500),
			MaxCPUUsage:      getEnvAsFloat("MONITOR_MAX_CPU_USAGE", 80),
			LowBatteryLevel:  getEnvAsFloat("MONITOR_LOW_BATTERY_LEVEL", 20),
			MaxPoseDetectMs:  getEnvAsFloat("MONITOR_MAX_POSE_DETECT_MS", 100),
			BatteryThreshold: getEnvAsFloat("MONITOR_BATTERY_THRESHOLD", 20),
		},
		Pipeline: PipelineConfig{
			BaseURL:             getEnv("PIPELINE_BASE_URL", "http://localhost:5000"),
			Timeout:             getEnvAsDuration("PIPELINE_TIMEOUT", 30*time.Second),
			MaxRetries:          getEnvAsInt("PIPELINE_MAX_RETRIES", 3),
			RetryDelay:          getEnvAsDuration("PIPELINE_RETRY_DELAY", 1*time.Second),
			HealthCheckInterval: getEnvAsDuration("PIPELINE_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Persistence: PersistenceConfig{
			Backend: getEnv("PERSIST_BACKEND", "sqlite"),
			Path:    getEnv("PERSIST_PATH", "./data"),
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	return config
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Engine.PoseHistoryCap <= 0 || c.Engine.PoseErrorCap <= 0 || c.Engine.AnalysisPoseCap <= 0 {
		errors = append(errors, "engine buffer capacities must be positive")
	}

	if c.Engine.IngestQueueSize <= 0 || c.Engine.IngestWorkers <= 0 {
		errors = append(errors, "ingest queue size and worker count must be positive")
	}

	if c.Monitor.HistoryCap <= 0 || c.Monitor.ThermalCap <= 0 {
		errors = append(errors, "monitor history capacities must be positive")
	}

	if c.Monitor.RetentionWindow <= 0 {
		errors = append(errors, "monitor retention window must be positive")
	}

	if c.Pipeline.BaseURL == "" {
		errors = append(errors, "pipeline base URL is required")
	}

	if c.Persistence.Backend != "sqlite" && c.Persistence.Backend != "memory" {
		errors = append(errors, "persistence backend must be sqlite or memory")
	}

	if c.Persistence.Backend == "sqlite" && c.Persistence.Path == "" {
		errors = append(errors, "persistence path is required for the sqlite backend")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
