package store

import (
	"context"
	"time"

	"github.com/anvers/formcoach/server/models"
)

// Capability names understood by the permission provider.
const (
	CapabilityCamera     = "camera"
	CapabilityMicrophone = "microphone"
	CapabilityStorage    = "storage"
)

// CameraHardware models the platform round-trips for camera access. Real
// camera APIs live in the native shells; the engine only sees this surface.
type CameraHardware interface {
	Initialize(ctx context.Context, camera models.CameraType) error
	Switch(ctx context.Context, camera models.CameraType) error
	RequestPermission(ctx context.Context, capability string) (models.PermissionStatus, error)
	DetectCapabilities(ctx context.Context) (models.CameraCapabilities, error)
}

// PoseRecorder is the slice of the pose store RecordingStore is allowed to
// touch. Start/Stop are the only operations that reach across stores.
type PoseRecorder interface {
	ProcessingEnabled() bool
	IsRecording() bool
	StartRecording()
	StopRecording()
}

// PerfController is the slice of the performance store RecordingStore is
// allowed to touch.
type PerfController interface {
	IsMonitoring() bool
	StartMonitoring()
}

// SimulatedHardware answers hardware requests with canned data after a short
// negotiation delay. Used when no native shell is attached.
type SimulatedHardware struct {
	NegotiationDelay time.Duration
}

func NewSimulatedHardware() *SimulatedHardware {
	return &SimulatedHardware{NegotiationDelay: 50 * time.Millisecond}
}

func (h *SimulatedHardware) wait(ctx context.Context) error {
	if h.NegotiationDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(h.NegotiationDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *SimulatedHardware) Initialize(ctx context.Context, camera models.CameraType) error {
	return h.wait(ctx)
}

func (h *SimulatedHardware) Switch(ctx context.Context, camera models.CameraType) error {
	return h.wait(ctx)
}

func (h *SimulatedHardware) RequestPermission(ctx context.Context, capability string) (models.PermissionStatus, error) {
	if err := h.wait(ctx); err != nil {
		return models.PermissionUndetermined, err
	}
	return models.PermissionGranted, nil
}

func (h *SimulatedHardware) DetectCapabilities(ctx context.Context) (models.CameraCapabilities, error) {
	if err := h.wait(ctx); err != nil {
		return models.CameraCapabilities{}, err
	}
	return models.CameraCapabilities{
		AvailableCameras:     []models.CameraType{models.CameraFront, models.CameraBack},
		SupportedResolutions: []models.Resolution{models.Resolution480p, models.Resolution720p, models.Resolution1080p, models.Resolution4K},
		SupportedFrameRates:  []int{15, 24, 30, 60},
		MaxResolution:        models.Resolution4K,
		MaxFrameRate:         60,
	}, nil
}
