package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
)

// AnalysisStoreKey is the persistence key for the durable analysis subset.
const AnalysisStoreKey = "video-analysis-store"

const (
	DefaultAnalysisPoseCap = 100
	durablePoseFrames      = 10
)

// AnalysisStore owns the pipeline state for a single uploaded or recorded
// video: stage, progress, retry bookkeeping, the result union, audio
// playback sub-state, and a bounded buffer of pose frames captured during
// analysis (separate from the live-capture pose store).
//
// Stage transitions are not validated: the external pipeline runner sets
// stages in its own order and the store treats them as display state.
// Progress is the actual source of truth for "is busy".
type AnalysisStore struct {
	mu     sync.Mutex
	logger *zap.Logger

	analysisID  string
	isAnalyzing bool
	progress    float64
	stage       models.AnalysisStage
	retryCount  int
	errMsg      string
	result      models.AnalysisResult
	poseData    *Ring[models.PoseFrame]
	audio       models.AudioState

	persist persist.Store
	ctx     context.Context
	now     func() time.Time
}

// analysisSnapshot is the durable subset written through on every mutation.
type analysisSnapshot struct {
	AnalysisID        string               `json:"analysis_id"`
	Progress          float64              `json:"progress"`
	Stage             models.AnalysisStage `json:"stage"`
	RetryCount        int                  `json:"retry_count"`
	PoseData          []models.PoseFrame   `json:"pose_data"`
	AudioURL          string               `json:"audio_url"`
	AudioDuration     float64              `json:"audio_duration"`
	ShowAudioControls bool                 `json:"show_audio_controls"`
}

func NewAnalysisStore(ctx context.Context, poseCap int, ps persist.Store, logger *zap.Logger) *AnalysisStore {
	if poseCap <= 0 {
		poseCap = DefaultAnalysisPoseCap
	}
	s := &AnalysisStore{
		logger:   logger,
		stage:    models.StageIdle,
		poseData: NewRing[models.PoseFrame](poseCap),
		persist:  ps,
		ctx:      ctx,
		now:      time.Now,
	}
	s.load()
	return s
}

func (s *AnalysisStore) load() {
	if s.persist == nil {
		return
	}
	blob, err := s.persist.Load(s.ctx, AnalysisStoreKey)
	if err != nil {
		return
	}
	var snap analysisSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		s.logger.Warn("discarding unreadable analysis snapshot", zap.Error(err))
		return
	}
	s.analysisID = snap.AnalysisID
	s.progress = snap.Progress
	if snap.Stage != "" {
		s.stage = snap.Stage
	}
	s.retryCount = snap.RetryCount
	for _, frame := range snap.PoseData {
		s.poseData.Push(frame)
	}
	s.audio.URL = snap.AudioURL
	s.audio.Duration = snap.AudioDuration
	s.audio.ShowControls = snap.ShowAudioControls
	s.isAnalyzing = snap.Progress > 0 && snap.Progress < 100
}

func (s *AnalysisStore) saveLocked() {
	if s.persist == nil {
		return
	}
	snap := analysisSnapshot{
		AnalysisID:        s.analysisID,
		Progress:          s.progress,
		Stage:             s.stage,
		RetryCount:        s.retryCount,
		PoseData:          s.poseData.Tail(durablePoseFrames),
		AudioURL:          s.audio.URL,
		AudioDuration:     s.audio.Duration,
		ShowAudioControls: s.audio.ShowControls,
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.persist.Save(s.ctx, AnalysisStoreKey, blob); err != nil {
		s.logger.Warn("failed to persist analysis snapshot", zap.Error(err))
	}
}

// StartAnalysis begins a pipeline run for the given id.
func (s *AnalysisStore) StartAnalysis(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analysisID = id
	s.isAnalyzing = true
	s.progress = 0
	s.stage = models.StagePoseDetection
	s.errMsg = ""
	s.saveLocked()
	s.logger.Info("analysis started", zap.String("analysis_id", id))
}

// SetStage records the stage reported by the pipeline runner. Any stage may
// be set at any time; ordering is the runner's problem.
func (s *AnalysisStore) SetStage(stage models.AnalysisStage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = stage
	s.saveLocked()
}

// SetProgress stores progress and derives the busy flag from it: the store
// is analyzing exactly while 0 < progress < 100.
func (s *AnalysisStore) SetProgress(progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = progress
	s.isAnalyzing = progress > 0 && progress < 100
	s.saveLocked()
}

// CompleteAnalysis finishes the run. The result union is not touched here;
// callers set it separately via SetResult.
func (s *AnalysisStore) CompleteAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analysisID = ""
	s.isAnalyzing = false
	s.progress = 100
	s.stage = models.StageCompleted
	s.saveLocked()
}

// SetResult stores the success/failure union. A failure mirrors its message
// into the plain error field for display binding; a success clears it.
func (s *AnalysisStore) SetResult(result models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = result
	switch r := result.(type) {
	case models.AnalysisFailure:
		s.errMsg = r.Message
	case models.AnalysisSuccess:
		s.errMsg = ""
	}
	s.saveLocked()
}

func (s *AnalysisStore) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = message
}

// RetryAnalysis rewinds an active run to its initial in-flight state and
// counts the attempt. Without an active analysis id it is a silent no-op.
func (s *AnalysisStore) RetryAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analysisID == "" {
		return
	}
	s.retryCount++
	s.progress = 0
	s.isAnalyzing = true
	s.stage = models.StagePoseDetection
	s.errMsg = ""
	s.saveLocked()
	s.logger.Info("analysis retry",
		zap.String("analysis_id", s.analysisID),
		zap.Int("retry_count", s.retryCount))
}

// SetAudioURL installs the playback url. A non-empty url shows the audio
// controls; clearing the url hides them.
func (s *AnalysisStore) SetAudioURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.URL = url
	s.audio.ShowControls = url != ""
	s.saveLocked()
}

func (s *AnalysisStore) SetAudioPlaybackState(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.IsPlaying = playing
}

func (s *AnalysisStore) SetAudioCurrentTime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.CurrentTime = seconds
}

func (s *AnalysisStore) SetAudioDuration(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.Duration = seconds
	s.saveLocked()
}

func (s *AnalysisStore) SetShowAudioControls(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.ShowControls = show
	s.saveLocked()
}

func (s *AnalysisStore) ToggleAudioControls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio.ShowControls = !s.audio.ShowControls
	s.saveLocked()
}

// IngestPoseFrame appends a frame detected during analysis. Same bound
// policy as the live pose store, logically separate buffer.
func (s *AnalysisStore) IngestPoseFrame(frame models.PoseFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.poseData.Push(frame)
	s.saveLocked()
}

// Reset restores every field to its initial default, audio included.
func (s *AnalysisStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analysisID = ""
	s.isAnalyzing = false
	s.progress = 0
	s.stage = models.StageIdle
	s.retryCount = 0
	s.errMsg = ""
	s.result = nil
	s.poseData.Clear()
	s.audio = models.AudioState{}
	s.saveLocked()
}

func (s *AnalysisStore) AnalysisID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.analysisID
}

func (s *AnalysisStore) IsAnalyzing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isAnalyzing
}

func (s *AnalysisStore) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progress
}

func (s *AnalysisStore) Stage() models.AnalysisStage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stage
}

func (s *AnalysisStore) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryCount
}

func (s *AnalysisStore) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errMsg
}

func (s *AnalysisStore) Result() models.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result
}

func (s *AnalysisStore) PoseData() []models.PoseFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.poseData.Items()
}

func (s *AnalysisStore) Audio() models.AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.audio
}
