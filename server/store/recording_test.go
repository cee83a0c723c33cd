package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
)

// failingHardware rejects every negotiation with the same error.
type failingHardware struct {
	err error
}

func (h *failingHardware) Initialize(ctx context.Context, camera models.CameraType) error {
	return h.err
}

func (h *failingHardware) Switch(ctx context.Context, camera models.CameraType) error {
	return h.err
}

func (h *failingHardware) RequestPermission(ctx context.Context, capability string) (models.PermissionStatus, error) {
	return models.PermissionUndetermined, h.err
}

func (h *failingHardware) DetectCapabilities(ctx context.Context) (models.CameraCapabilities, error) {
	return models.CameraCapabilities{}, h.err
}

type recordingFixture struct {
	rec  *RecordingStore
	pose *PoseStore
	perf *PerfStore
}

func newRecordingFixture(t *testing.T, hw CameraHardware) *recordingFixture {
	t.Helper()
	logger := zap.NewNop()
	pose := NewPoseStore(100, 10, logger)
	perf := NewPerfStore(DefaultMonitorConfig(), logger)
	rec := NewRecordingStore(context.Background(), hw, pose, perf, persist.NewMemoryStore(logger), logger)
	return &recordingFixture{rec: rec, pose: pose, perf: perf}
}

func instantHardware() *SimulatedHardware {
	return &SimulatedHardware{NegotiationDelay: 0}
}

// readyToRecord drives the store through permission grant and camera init.
func (f *recordingFixture) readyToRecord(t *testing.T) {
	t.Helper()
	f.rec.RequestPermissions(context.Background())
	require.NoError(t, f.rec.InitializeCamera(context.Background(), models.CameraBack))
	require.True(t, f.rec.IsInitialized())
}

func TestStartRequiresCameraPermission(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	err := f.rec.Start()
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, models.RecordingIdle, f.rec.State())
}

func TestStartRequiresInitializedCamera(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())
	f.rec.SetPermission(CapabilityCamera, models.PermissionGranted)

	err := f.rec.Start()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, models.RecordingIdle, f.rec.State())
}

func TestRecordingLifecycle(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())
	f.readyToRecord(t)

	require.NoError(t, f.rec.Start())
	assert.Equal(t, models.RecordingActive, f.rec.State())

	session, ok := f.rec.Session()
	require.True(t, ok)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.IsRecording)
	assert.False(t, session.IsPaused)

	// Starting collaborators came along for the ride.
	assert.True(t, f.pose.IsRecording())
	assert.True(t, f.perf.IsMonitoring())

	// Duplicate Start is a no-op, not a new session.
	require.NoError(t, f.rec.Start())
	again, _ := f.rec.Session()
	assert.Equal(t, session.ID, again.ID)

	f.rec.Pause()
	assert.Equal(t, models.RecordingPaused, f.rec.State())
	paused, _ := f.rec.Session()
	assert.False(t, paused.IsRecording)
	assert.True(t, paused.IsPaused)

	f.rec.Resume()
	assert.Equal(t, models.RecordingActive, f.rec.State())

	f.rec.UpdateDuration(42.5)
	f.rec.Stop()
	assert.Equal(t, models.RecordingStopped, f.rec.State())
	stopped, _ := f.rec.Session()
	assert.False(t, stopped.IsRecording)
	assert.Equal(t, 42.5, stopped.Duration)
	assert.False(t, f.pose.IsRecording())

	// Stopped is terminal until Reset; Start does not revive the session.
	require.NoError(t, f.rec.Start())
	assert.Equal(t, models.RecordingStopped, f.rec.State())
}

func TestPauseResumeOutsideRecordingAreNoOps(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	f.rec.Pause()
	assert.Equal(t, models.RecordingIdle, f.rec.State())
	f.rec.Resume()
	assert.Equal(t, models.RecordingIdle, f.rec.State())
	f.rec.Stop()
	assert.Equal(t, models.RecordingIdle, f.rec.State())
}

func TestResetRestoresDefaults(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())
	f.readyToRecord(t)
	require.NoError(t, f.rec.Start())
	f.rec.SetZoomLevel(3)
	f.rec.AddDroppedFrames(7)
	f.rec.Stop()

	f.rec.Reset()

	assert.Equal(t, models.RecordingIdle, f.rec.State())
	_, ok := f.rec.Session()
	assert.False(t, ok)
	assert.Equal(t, defaultCameraSettings(), f.rec.Settings())
	assert.Equal(t, defaultPermissions(), f.rec.Permissions())
	assert.Equal(t, models.RecordingMetrics{}, f.rec.Metrics())
	assert.False(t, f.rec.IsInitialized())
}

func TestInitializeCameraFailureIsStoredNotReturned(t *testing.T) {
	f := newRecordingFixture(t, &failingHardware{err: errors.New("no camera device")})

	err := f.rec.InitializeCamera(context.Background(), models.CameraFront)
	assert.NoError(t, err)
	assert.False(t, f.rec.IsInitialized())
	assert.Equal(t, "no camera device", f.rec.Error())

	lastErr, ok := f.rec.LastError()
	require.True(t, ok)
	assert.Equal(t, "no camera device", lastErr.Message)
}

func TestInitializeCameraPopulatesCapabilities(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	require.NoError(t, f.rec.InitializeCamera(context.Background(), models.CameraFront))

	assert.Equal(t, models.CameraFront, f.rec.Settings().Type)
	caps := f.rec.Capabilities()
	assert.Contains(t, caps.AvailableCameras, models.CameraFront)
	assert.Equal(t, models.Resolution4K, caps.MaxResolution)
}

func TestSwitchCameraRejectedWhileRecording(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())
	f.readyToRecord(t)
	require.NoError(t, f.rec.Start())

	err := f.rec.SwitchCamera(context.Background(), models.CameraFront)
	assert.ErrorIs(t, err, ErrSwitchWhileRecording)

	f.rec.Pause()
	f.rec.SetZoomLevel(4)
	require.NoError(t, f.rec.SwitchCamera(context.Background(), models.CameraFront))
	assert.Equal(t, models.CameraFront, f.rec.Settings().Type)
	assert.Equal(t, 1.0, f.rec.Settings().ZoomLevel)
}

func TestRequestPermissionsGrantsAll(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	f.rec.RequestPermissions(context.Background())

	perms := f.rec.Permissions()
	assert.Equal(t, models.PermissionGranted, perms.Camera)
	assert.Equal(t, models.PermissionGranted, perms.Microphone)
	assert.Equal(t, models.PermissionGranted, perms.Storage)
}

func TestRequestPermissionsFailureDenies(t *testing.T) {
	f := newRecordingFixture(t, &failingHardware{err: errors.New("platform unavailable")})

	f.rec.RequestPermissions(context.Background())

	perms := f.rec.Permissions()
	assert.Equal(t, models.PermissionDenied, perms.Camera)
	assert.Equal(t, models.PermissionDenied, perms.Microphone)
	assert.Equal(t, models.PermissionDenied, perms.Storage)
	_, ok := f.rec.LastError()
	assert.True(t, ok)
}

func TestSetZoomLevelClampsToOne(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	f.rec.SetZoomLevel(0.2)
	assert.Equal(t, 1.0, f.rec.Settings().ZoomLevel)

	f.rec.SetZoomLevel(2.5)
	assert.Equal(t, 2.5, f.rec.Settings().ZoomLevel)
}

func TestApplyAdaptiveQualityCountsOncePerChange(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	// Same values as the active settings: nothing to do.
	assert.False(t, f.rec.ApplyAdaptiveQuality(30, models.Resolution1080p))
	assert.Equal(t, 0, f.rec.Metrics().AdaptiveAdjustments)

	// Both fields change at once but the counter moves by one.
	assert.True(t, f.rec.ApplyAdaptiveQuality(15, models.Resolution720p))
	assert.Equal(t, 1, f.rec.Metrics().AdaptiveAdjustments)
	assert.Equal(t, 15, f.rec.Settings().FrameRate)
	assert.Equal(t, models.Resolution720p, f.rec.Settings().Resolution)

	assert.False(t, f.rec.ApplyAdaptiveQuality(15, models.Resolution720p))
	assert.Equal(t, 1, f.rec.Metrics().AdaptiveAdjustments)
}

func TestSettingsSurviveRestart(t *testing.T) {
	logger := zap.NewNop()
	ps := persist.NewMemoryStore(logger)
	ctx := context.Background()

	first := NewRecordingStore(ctx, instantHardware(), nil, nil, ps, logger)
	first.SetZoomLevel(2)
	first.SetFlashEnabled(true)
	first.SetHDR(true)

	second := NewRecordingStore(ctx, instantHardware(), nil, nil, ps, logger)
	settings := second.Settings()
	assert.Equal(t, 2.0, settings.ZoomLevel)
	assert.True(t, settings.FlashEnabled)
	assert.True(t, settings.HDR)
}

func TestMetricsAccumulators(t *testing.T) {
	f := newRecordingFixture(t, instantHardware())

	f.rec.AddDroppedFrames(3)
	f.rec.AddDroppedFrames(2)
	f.rec.RecordThermalEvent()
	f.rec.SetQualityScore(87)

	metrics := f.rec.Metrics()
	assert.Equal(t, int64(5), metrics.DroppedFrames)
	assert.Equal(t, 1, metrics.ThermalEvents)
	assert.Equal(t, 87, metrics.QualityScore)
}
