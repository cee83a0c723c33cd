package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
	"github.com/anvers/formcoach/server/pipeline"
	"github.com/anvers/formcoach/server/processor"
	"github.com/anvers/formcoach/server/store"
)

type stubInference struct{}

func (stubInference) DetectPoses(ctx context.Context, videoID string) (*pipeline.PoseDetectResponse, error) {
	return &pipeline.PoseDetectResponse{Frames: []models.PoseFrame{{ID: 1}}}, nil
}

func (stubInference) Analyze(ctx context.Context, videoID string, frames []models.PoseFrame) (*pipeline.AnalyzeResponse, error) {
	return &pipeline.AnalyzeResponse{Confidence: 0.8, Summary: "ok"}, nil
}

func (stubInference) GenerateFeedback(ctx context.Context, summary string, confidence float64) (*pipeline.FeedbackResponse, error) {
	return &pipeline.FeedbackResponse{Feedback: "nice form"}, nil
}

func (stubInference) Synthesize(ctx context.Context, text string) (*pipeline.SynthesizeResponse, error) {
	return &pipeline.SynthesizeResponse{AudioURL: "https://cdn.example.com/a.mp3", Duration: 5}, nil
}

type handlerFixture struct {
	engine *store.Engine
	router *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	hw := &store.SimulatedHardware{NegotiationDelay: 0}
	engine := store.NewEngine(store.DefaultEngineConfig(), hw, persist.NewMemoryStore(logger), logger)
	t.Cleanup(engine.Close)

	ingestor := processor.NewIngestor(engine, processor.DefaultIngestorConfig(), logger)
	t.Cleanup(func() { ingestor.Shutdown(time.Second) })

	runner := pipeline.NewRunner(stubInference{}, engine.Analysis, logger)
	handler := NewStateHandler(engine, ingestor, runner, logger)

	router := gin.New()
	router.GET("/state", handler.GetState)
	router.GET("/stats", handler.GetStats)
	router.GET("/performance", handler.GetPerformance)
	router.POST("/recording/start", handler.StartRecording)
	router.POST("/recording/pause", handler.PauseRecording)
	router.POST("/recording/stop", handler.StopRecording)
	router.POST("/recording/reset", handler.ResetEngine)
	router.POST("/camera/initialize", handler.InitializeCamera)
	router.POST("/camera/switch", handler.SwitchCamera)
	router.POST("/camera/permissions", handler.RequestPermissions)
	router.PATCH("/camera/settings", handler.UpdateSettings)
	router.GET("/analysis", handler.GetAnalysis)
	router.POST("/analysis/start", handler.StartAnalysis)
	router.POST("/analysis/retry", handler.RetryAnalysis)

	return &handlerFixture{engine: engine, router: router}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGetStateReturnsSnapshot(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap store.EngineSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, models.RecordingIdle, snap.State)
	assert.False(t, snap.IsAnalyzing)
}

func TestStartRecordingPreconditions(t *testing.T) {
	f := newHandlerFixture(t)

	// No camera permission yet.
	w := f.do(t, http.MethodPost, "/recording/start", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/permissions", "").Code)

	// Granted but not initialized.
	w = f.do(t, http.MethodPost, "/recording/start", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/initialize", `{"camera":"back"}`).Code)

	w = f.do(t, http.MethodPost, "/recording/start", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RecordingActive, f.engine.Recording.State())
}

func TestSwitchCameraConflictWhileRecording(t *testing.T) {
	f := newHandlerFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/permissions", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/initialize", `{"camera":"back"}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/recording/start", "").Code)

	w := f.do(t, http.MethodPost, "/camera/switch", `{"camera":"front"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/recording/pause", "").Code)
	w = f.do(t, http.MethodPost, "/camera/switch", `{"camera":"front"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CameraFront, f.engine.Recording.Settings().Type)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPatch, "/camera/settings", `{"zoom_level":2.5,"hdr":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	settings := f.engine.Recording.Settings()
	assert.Equal(t, 2.5, settings.ZoomLevel)
	assert.True(t, settings.HDR)
	// Untouched fields keep their defaults.
	assert.False(t, settings.FlashEnabled)
}

func TestUpdateSettingsRejectsBadPayload(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPatch, "/camera/settings", `{"zoom_level":"huge"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartAnalysisRunsPipeline(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/analysis/start", `{"video_id":"video-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return f.engine.Analysis.Stage() == models.StageCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 100.0, f.engine.Analysis.Progress())
	_, ok := f.engine.Analysis.Result().(models.AnalysisSuccess)
	assert.True(t, ok)
}

func TestStartAnalysisRequiresVideoID(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/analysis/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryAnalysisWithoutRunConflicts(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/analysis/retry", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResetReturnsEngineToIdle(t *testing.T) {
	f := newHandlerFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/permissions", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/camera/initialize", `{"camera":"back"}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/recording/start", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/recording/stop", "").Code)

	w := f.do(t, http.MethodPost, "/recording/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RecordingIdle, f.engine.Recording.State())
	assert.False(t, f.engine.Recording.IsInitialized())
}

func TestGetPerformanceWindowQuery(t *testing.T) {
	f := newHandlerFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/performance?window=30s", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/performance?window=soon", "").Code)
}
