package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
)

// CameraStoreKey is the persistence key for the durable camera settings.
const CameraStoreKey = "camera-store"

// RecordingStore owns the recording lifecycle state machine plus camera
// settings, permissions, capabilities, and per-session metrics.
//
// Lifecycle transitions: idle -> recording (Start), recording <-> paused
// (Pause/Resume), recording|paused -> stopped (Stop), any -> idle (Reset).
// Start and Stop are the only operations that reach across to the pose and
// performance collaborators.
type RecordingStore struct {
	mu     sync.Mutex
	logger *zap.Logger

	state        models.RecordingState
	session      *models.Session
	settings     models.CameraSettings
	permissions  models.Permissions
	capabilities models.CameraCapabilities
	metrics      models.RecordingMetrics

	isInitialized  bool
	isInitializing bool
	errMsg         string
	lastError      *models.LastError

	hw      CameraHardware
	pose    PoseRecorder
	perf    PerfController
	persist persist.Store
	ctx     context.Context

	now func() time.Time
}

func defaultCameraSettings() models.CameraSettings {
	return models.CameraSettings{
		Type:       models.CameraBack,
		ZoomLevel:  1,
		Resolution: models.Resolution1080p,
		FrameRate:  30,
		Adaptive: models.AdaptiveQuality{
			Enabled:             true,
			ThermalManagement:   true,
			BatteryOptimization: true,
		},
	}
}

func defaultPermissions() models.Permissions {
	return models.Permissions{
		Camera:     models.PermissionUndetermined,
		Microphone: models.PermissionUndetermined,
		Storage:    models.PermissionUndetermined,
	}
}

func NewRecordingStore(ctx context.Context, hw CameraHardware, pose PoseRecorder, perf PerfController, ps persist.Store, logger *zap.Logger) *RecordingStore {
	s := &RecordingStore{
		logger:      logger,
		state:       models.RecordingIdle,
		settings:    defaultCameraSettings(),
		permissions: defaultPermissions(),
		hw:          hw,
		pose:        pose,
		perf:        perf,
		persist:     ps,
		ctx:         ctx,
		now:         time.Now,
	}
	s.loadSettings()
	return s
}

func (s *RecordingStore) loadSettings() {
	if s.persist == nil {
		return
	}
	blob, err := s.persist.Load(s.ctx, CameraStoreKey)
	if err != nil {
		return
	}
	var settings models.CameraSettings
	if err := json.Unmarshal(blob, &settings); err != nil {
		s.logger.Warn("discarding unreadable camera settings snapshot", zap.Error(err))
		return
	}
	s.settings = settings
}

// saveSettingsLocked snapshots the durable settings subset. Best effort: a
// failed write is logged, never surfaced.
func (s *RecordingStore) saveSettingsLocked() {
	if s.persist == nil {
		return
	}
	blob, err := json.Marshal(s.settings)
	if err != nil {
		return
	}
	if err := s.persist.Save(s.ctx, CameraStoreKey, blob); err != nil {
		s.logger.Warn("failed to persist camera settings", zap.Error(err))
	}
}

// Start moves idle|paused -> recording. It requires a granted camera
// permission and an initialized camera, and is idempotent while already
// recording (no second session record is created).
func (s *RecordingStore) Start() error {
	s.mu.Lock()

	// Recording is reachable from idle and paused only. A duplicate Start
	// while recording is an expected UI timing race, not an error; Start
	// after Stop requires a Reset first.
	if s.state == models.RecordingActive || s.state == models.RecordingStopped {
		s.mu.Unlock()
		return nil
	}
	if s.permissions.Camera != models.PermissionGranted {
		s.mu.Unlock()
		return ErrPermissionDenied
	}
	if !s.isInitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	if s.session == nil {
		s.session = &models.Session{
			ID:         ulid.Make().String(),
			CameraType: s.settings.Type,
			ZoomLevel:  s.settings.ZoomLevel,
		}
	}
	s.session.StartTime = s.now()
	s.session.IsRecording = true
	s.session.IsPaused = false
	s.state = models.RecordingActive
	s.metrics.Duration = 0
	s.errMsg = ""

	sessionID := s.session.ID
	poseEnabled := s.pose != nil && s.pose.ProcessingEnabled()
	s.mu.Unlock()

	if poseEnabled {
		s.pose.StartRecording()
	}
	if s.perf != nil && !s.perf.IsMonitoring() {
		s.perf.StartMonitoring()
	}

	s.logger.Info("recording started", zap.String("session_id", sessionID))
	return nil
}

// Pause moves recording -> paused. Any other state is a no-op.
func (s *RecordingStore) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.RecordingActive {
		return
	}
	s.state = models.RecordingPaused
	s.session.IsRecording = false
	s.session.IsPaused = true
}

// Resume moves paused -> recording. Any other state is a no-op.
func (s *RecordingStore) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.RecordingPaused {
		return
	}
	s.state = models.RecordingActive
	s.session.IsRecording = true
	s.session.IsPaused = false
}

// Stop moves recording|paused -> stopped and freezes the session duration
// to the last known metrics duration.
func (s *RecordingStore) Stop() {
	s.mu.Lock()

	if s.state != models.RecordingActive && s.state != models.RecordingPaused {
		s.mu.Unlock()
		return
	}
	s.state = models.RecordingStopped
	s.session.IsRecording = false
	s.session.IsPaused = false
	s.session.Duration = s.metrics.Duration

	poseActive := s.pose != nil && s.pose.IsRecording()
	sessionID := s.session.ID
	s.mu.Unlock()

	if poseActive {
		s.pose.StopRecording()
	}

	s.logger.Info("recording stopped",
		zap.String("session_id", sessionID),
		zap.Float64("duration_seconds", s.Metrics().Duration))
}

// Reset returns the store to its initial state: session cleared, settings,
// permissions, capabilities, and metrics back to defaults.
func (s *RecordingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.RecordingIdle
	s.session = nil
	s.settings = defaultCameraSettings()
	s.permissions = defaultPermissions()
	s.capabilities = models.CameraCapabilities{}
	s.metrics = models.RecordingMetrics{}
	s.isInitialized = false
	s.isInitializing = false
	s.errMsg = ""
	s.lastError = nil
	s.saveSettingsLocked()
}

// InitializeCamera negotiates camera access. Hardware failures are recorded
// in the store's error fields rather than returned, so the UI reacts to
// state instead of wrapping the call in error handling. The only returned
// error is the busy precondition.
func (s *RecordingStore) InitializeCamera(ctx context.Context, camera models.CameraType) error {
	s.mu.Lock()
	if s.isInitializing {
		s.mu.Unlock()
		return ErrCameraBusy
	}
	s.isInitializing = true
	s.mu.Unlock()

	err := s.hw.Initialize(ctx, camera)

	s.mu.Lock()
	s.isInitializing = false
	if err != nil {
		s.errMsg = err.Error()
		s.lastError = &models.LastError{Timestamp: s.now(), Message: err.Error()}
		s.mu.Unlock()
		s.logger.Error("camera initialization failed", zap.Error(err))
		return nil
	}
	s.isInitialized = true
	s.settings.Type = camera
	s.errMsg = ""
	s.saveSettingsLocked()
	s.mu.Unlock()

	s.DetectCapabilities(ctx)
	return nil
}

// SwitchCamera swaps the active camera. Rejected while recording (pause or
// stop first) and while another hardware negotiation is in flight. Zoom
// resets to 1 on a successful switch.
func (s *RecordingStore) SwitchCamera(ctx context.Context, camera models.CameraType) error {
	s.mu.Lock()
	if s.state == models.RecordingActive {
		s.mu.Unlock()
		return ErrSwitchWhileRecording
	}
	if s.isInitializing {
		s.mu.Unlock()
		return ErrCameraBusy
	}
	s.isInitializing = true
	s.mu.Unlock()

	err := s.hw.Switch(ctx, camera)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isInitializing = false
	if err != nil {
		s.errMsg = err.Error()
		s.lastError = &models.LastError{Timestamp: s.now(), Message: err.Error()}
		s.logger.Error("camera switch failed", zap.Error(err))
		return nil
	}
	s.settings.Type = camera
	s.settings.ZoomLevel = 1
	s.saveSettingsLocked()
	return nil
}

// RequestPermissions asks the platform for all three capabilities. Denials
// and failures are stored; nothing is thrown past the async boundary.
func (s *RecordingStore) RequestPermissions(ctx context.Context) {
	for _, capability := range []string{CapabilityCamera, CapabilityMicrophone, CapabilityStorage} {
		status, err := s.hw.RequestPermission(ctx, capability)
		s.mu.Lock()
		if err != nil {
			s.lastError = &models.LastError{Timestamp: s.now(), Message: err.Error()}
			status = models.PermissionDenied
		}
		switch capability {
		case CapabilityCamera:
			s.permissions.Camera = status
		case CapabilityMicrophone:
			s.permissions.Microphone = status
		case CapabilityStorage:
			s.permissions.Storage = status
		}
		s.mu.Unlock()
	}
}

// DetectCapabilities populates the read-mostly device capability metadata.
func (s *RecordingStore) DetectCapabilities(ctx context.Context) {
	caps, err := s.hw.DetectCapabilities(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = &models.LastError{Timestamp: s.now(), Message: err.Error()}
		s.logger.Warn("capability detection failed", zap.Error(err))
		return
	}
	s.capabilities = caps
}

// SetPermission records a permission status delivered by the platform
// without a round-trip (for example a grant pushed by the native shell).
func (s *RecordingStore) SetPermission(capability string, status models.PermissionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch capability {
	case CapabilityCamera:
		s.permissions.Camera = status
	case CapabilityMicrophone:
		s.permissions.Microphone = status
	case CapabilityStorage:
		s.permissions.Storage = status
	}
}

func (s *RecordingStore) SetZoomLevel(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < 1 {
		level = 1
	}
	s.settings.ZoomLevel = level
	if s.session != nil {
		s.session.ZoomLevel = level
	}
	s.saveSettingsLocked()
}

func (s *RecordingStore) SetFlashEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.FlashEnabled = enabled
	s.saveSettingsLocked()
}

func (s *RecordingStore) SetStabilization(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Stabilization = enabled
	s.saveSettingsLocked()
}

func (s *RecordingStore) SetHDR(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.HDR = enabled
	s.saveSettingsLocked()
}

func (s *RecordingStore) SetAdaptiveQuality(cfg models.AdaptiveQuality) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Adaptive = cfg
	s.saveSettingsLocked()
}

// ApplyAdaptiveQuality installs a frame-rate/resolution candidate chosen by
// the adaptive policy. The candidate is applied only when at least one field
// differs, and the adjustment counter moves once per applied change-set,
// not per field. Reports whether anything changed.
func (s *RecordingStore) ApplyAdaptiveQuality(frameRate int, resolution models.Resolution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings.FrameRate == frameRate && s.settings.Resolution == resolution {
		return false
	}
	s.logger.Info("adaptive quality adjustment",
		zap.Int("frame_rate", frameRate),
		zap.String("resolution", string(resolution)))
	s.settings.FrameRate = frameRate
	s.settings.Resolution = resolution
	s.metrics.AdaptiveAdjustments++
	s.saveSettingsLocked()
	return true
}

func (s *RecordingStore) UpdateDuration(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Duration = seconds
	if s.session != nil && s.state == models.RecordingActive {
		s.session.Duration = seconds
	}
}

func (s *RecordingStore) AddDroppedFrames(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.DroppedFrames += n
}

func (s *RecordingStore) RecordThermalEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.ThermalEvents++
}

func (s *RecordingStore) SetQualityScore(score int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.QualityScore = score
}

func (s *RecordingStore) State() models.RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Session returns a copy of the session record, if one exists.
func (s *RecordingStore) Session() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return models.Session{}, false
	}
	return *s.session, true
}

func (s *RecordingStore) Settings() models.CameraSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

func (s *RecordingStore) Permissions() models.Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.permissions
}

func (s *RecordingStore) Capabilities() models.CameraCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.capabilities
}

func (s *RecordingStore) Metrics() models.RecordingMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.metrics
}

func (s *RecordingStore) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isInitialized
}

func (s *RecordingStore) IsInitializing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isInitializing
}

func (s *RecordingStore) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errMsg
}

func (s *RecordingStore) LastError() (models.LastError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastError == nil {
		return models.LastError{}, false
	}
	return *s.lastError, true
}
