package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/pipeline"
	"github.com/anvers/formcoach/server/processor"
	"github.com/anvers/formcoach/server/store"
)

// StateHandler exposes the engine's stores over REST so native shells and
// debugging tools can drive the same operations the websocket bridge does.
type StateHandler struct {
	engine   *store.Engine
	ingestor *processor.Ingestor
	runner   *pipeline.Runner
	logger   *zap.Logger
}

func NewStateHandler(engine *store.Engine, ingestor *processor.Ingestor, runner *pipeline.Runner, logger *zap.Logger) *StateHandler {
	return &StateHandler{
		engine:   engine,
		ingestor: ingestor,
		runner:   runner,
		logger:   logger,
	}
}

func (h *StateHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

func (h *StateHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ingestor":  h.ingestor.Stats(),
		"timestamp": time.Now().Unix(),
	})
}

func (h *StateHandler) StartRecording(c *gin.Context) {
	if err := h.engine.Recording.Start(); err != nil {
		h.logger.Warn("start recording rejected", zap.Error(err))
		c.JSON(recordingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   h.engine.Recording.State(),
		"session": sessionOrNil(h.engine.Recording),
	})
}

func (h *StateHandler) PauseRecording(c *gin.Context) {
	h.engine.Recording.Pause()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.Recording.State()})
}

func (h *StateHandler) ResumeRecording(c *gin.Context) {
	h.engine.Recording.Resume()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.Recording.State()})
}

func (h *StateHandler) StopRecording(c *gin.Context) {
	h.engine.Recording.Stop()
	c.JSON(http.StatusOK, gin.H{
		"state":   h.engine.Recording.State(),
		"session": sessionOrNil(h.engine.Recording),
		"metrics": h.engine.Recording.Metrics(),
	})
}

func (h *StateHandler) ResetEngine(c *gin.Context) {
	h.engine.Reset()
	c.JSON(http.StatusOK, gin.H{"state": h.engine.Recording.State()})
}

type cameraRequest struct {
	Camera models.CameraType `json:"camera" binding:"required"`
}

func (h *StateHandler) InitializeCamera(c *gin.Context) {
	var request cameraRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := h.engine.Recording.InitializeCamera(c.Request.Context(), request.Camera); err != nil {
		c.JSON(recordingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"initialized":  h.engine.Recording.IsInitialized(),
		"capabilities": h.engine.Recording.Capabilities(),
		"error":        h.engine.Recording.Error(),
	})
}

func (h *StateHandler) SwitchCamera(c *gin.Context) {
	var request cameraRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := h.engine.Recording.SwitchCamera(c.Request.Context(), request.Camera); err != nil {
		c.JSON(recordingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": h.engine.Recording.Settings()})
}

func (h *StateHandler) RequestPermissions(c *gin.Context) {
	h.engine.Recording.RequestPermissions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"permissions": h.engine.Recording.Permissions()})
}

type settingsRequest struct {
	ZoomLevel     *float64                `json:"zoom_level"`
	FlashEnabled  *bool                   `json:"flash_enabled"`
	Stabilization *bool                   `json:"stabilization"`
	HDR           *bool                   `json:"hdr"`
	Adaptive      *models.AdaptiveQuality `json:"adaptive"`
}

func (h *StateHandler) UpdateSettings(c *gin.Context) {
	var request settingsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if request.ZoomLevel != nil {
		h.engine.Recording.SetZoomLevel(*request.ZoomLevel)
	}
	if request.FlashEnabled != nil {
		h.engine.Recording.SetFlashEnabled(*request.FlashEnabled)
	}
	if request.Stabilization != nil {
		h.engine.Recording.SetStabilization(*request.Stabilization)
	}
	if request.HDR != nil {
		h.engine.Recording.SetHDR(*request.HDR)
	}
	if request.Adaptive != nil {
		h.engine.Recording.SetAdaptiveQuality(*request.Adaptive)
	}
	c.JSON(http.StatusOK, gin.H{"settings": h.engine.Recording.Settings()})
}

type analysisRequest struct {
	VideoID string `json:"video_id" binding:"required"`
}

func (h *StateHandler) StartAnalysis(c *gin.Context) {
	var request analysisRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if h.engine.Analysis.IsAnalyzing() {
		c.JSON(http.StatusConflict, gin.H{"error": "Analysis already in progress"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.runner.Run(ctx, request.VideoID); err != nil {
			h.logger.Error("analysis run failed",
				zap.String("video_id", request.VideoID),
				zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"video_id": request.VideoID,
	})
}

func (h *StateHandler) RetryAnalysis(c *gin.Context) {
	if h.engine.Analysis.AnalysisID() == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No analysis to retry"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.runner.Retry(ctx); err != nil {
			h.logger.Error("analysis retry failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":      "accepted",
		"retry_count": h.engine.Analysis.RetryCount(),
	})
}

func (h *StateHandler) GetAnalysis(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"analysis_id":  h.engine.Analysis.AnalysisID(),
		"is_analyzing": h.engine.Analysis.IsAnalyzing(),
		"progress":     h.engine.Analysis.Progress(),
		"stage":        h.engine.Analysis.Stage(),
		"retry_count":  h.engine.Analysis.RetryCount(),
		"error":        h.engine.Analysis.Error(),
		"result":       h.engine.Analysis.Result(),
		"audio":        h.engine.Analysis.Audio(),
	})
}

type audioRequest struct {
	Playing     *bool    `json:"playing"`
	CurrentTime *float64 `json:"current_time"`
}

func (h *StateHandler) UpdateAudio(c *gin.Context) {
	var request audioRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if request.Playing != nil {
		h.engine.Analysis.SetAudioPlaybackState(*request.Playing)
	}
	if request.CurrentTime != nil {
		h.engine.Analysis.SetAudioCurrentTime(*request.CurrentTime)
	}
	c.JSON(http.StatusOK, gin.H{"audio": h.engine.Analysis.Audio()})
}

func (h *StateHandler) ToggleAudioControls(c *gin.Context) {
	h.engine.Analysis.ToggleAudioControls()
	c.JSON(http.StatusOK, gin.H{"audio": h.engine.Analysis.Audio()})
}

func (h *StateHandler) GetPerformance(c *gin.Context) {
	window := 60 * time.Second
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid window duration"})
			return
		}
		window = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"system":     h.engine.Perf.System(),
		"processing": h.engine.Perf.Processing(),
		"alerts":     h.engine.Perf.RecomputeAlerts(),
		"averages": gin.H{
			"fps":    h.engine.Perf.WindowedAverage(models.MetricFPS, window),
			"memory": h.engine.Perf.WindowedAverage(models.MetricMemory, window),
			"cpu":    h.engine.Perf.WindowedAverage(models.MetricCPU, window),
		},
		"peak_memory_mb": h.engine.Perf.PeakMemoryUsage(),
		"peak_cpu":       h.engine.Perf.PeakCPUUsage(),
	})
}

func recordingErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrPermissionDenied), errors.Is(err, store.ErrNotInitialized):
		return http.StatusPreconditionFailed
	case errors.Is(err, store.ErrCameraBusy), errors.Is(err, store.ErrSwitchWhileRecording):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sessionOrNil(rec *store.RecordingStore) any {
	if session, ok := rec.Session(); ok {
		return session
	}
	return nil
}
