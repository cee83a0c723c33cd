package store

import (
	"sync"

	"github.com/anvers/formcoach/server/models"
	"go.uber.org/zap"
)

const (
	DefaultPoseHistoryCap = 100
	DefaultPoseErrorCap   = 10
)

// PoseStore holds the live pose-detection state: the latest frame, a bounded
// rolling history, and a bounded diagnostic error log. There is no state
// machine here; it is an append-only log with FIFO eviction so a long camera
// session cannot grow memory without bound.
type PoseStore struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	current *models.PoseFrame
	history *Ring[models.PoseFrame]
	errors  *Ring[string]

	processingEnabled bool
	isRecording       bool
}

func NewPoseStore(historyCap, errorCap int, logger *zap.Logger) *PoseStore {
	if historyCap <= 0 {
		historyCap = DefaultPoseHistoryCap
	}
	if errorCap <= 0 {
		errorCap = DefaultPoseErrorCap
	}
	return &PoseStore{
		logger:            logger,
		history:           NewRing[models.PoseFrame](historyCap),
		errors:            NewRing[string](errorCap),
		processingEnabled: true,
	}
}

// Ingest appends a detected frame and overwrites the current pose. Frame
// timestamps are caller-supplied and are not re-validated; the only ordering
// guarantee is append order.
func (p *PoseStore) Ingest(frame models.PoseFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := frame
	p.current = &f
	p.history.Push(frame)
}

// RecordError appends a diagnostic message to the bounded error log. Errors
// recorded here are never fatal.
func (p *PoseStore) RecordError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors.Push(message)
	p.logger.Warn("pose detection error", zap.String("message", message))
}

func (p *PoseStore) ClearHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history.Clear()
	p.current = nil
}

func (p *PoseStore) ClearErrors() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors.Clear()
}

func (p *PoseStore) Current() (models.PoseFrame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return models.PoseFrame{}, false
	}
	return *p.current, true
}

func (p *PoseStore) History() []models.PoseFrame {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.history.Items()
}

func (p *PoseStore) Errors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.errors.Items()
}

func (p *PoseStore) SetProcessingEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processingEnabled = enabled
}

func (p *PoseStore) ProcessingEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.processingEnabled
}

func (p *PoseStore) StartRecording() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isRecording = true
}

func (p *PoseStore) StopRecording() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isRecording = false
}

func (p *PoseStore) IsRecording() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.isRecording
}
