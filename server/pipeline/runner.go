package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/store"
)

// Inference is the slice of the client the runner needs; tests substitute
// a fake.
type Inference interface {
	DetectPoses(ctx context.Context, videoID string) (*PoseDetectResponse, error)
	Analyze(ctx context.Context, videoID string, frames []models.PoseFrame) (*AnalyzeResponse, error)
	GenerateFeedback(ctx context.Context, summary string, confidence float64) (*FeedbackResponse, error)
	Synthesize(ctx context.Context, text string) (*SynthesizeResponse, error)
}

// Runner drives an analysis store through the pipeline stages. The stage
// ordering lives here, not in the store: the store records whatever stage
// the runner reports.
type Runner struct {
	inference Inference
	analysis  *store.AnalysisStore
	logger    *zap.Logger

	mutex       sync.Mutex
	lastVideoID string
}

func NewRunner(inference Inference, analysis *store.AnalysisStore, logger *zap.Logger) *Runner {
	return &Runner{
		inference: inference,
		analysis:  analysis,
		logger:    logger,
	}
}

// Run executes a full pipeline pass over the given video. Stage failures
// are recorded on the store as a failure result and returned.
func (r *Runner) Run(ctx context.Context, videoID string) error {
	r.mutex.Lock()
	r.lastVideoID = videoID
	r.mutex.Unlock()

	analysisID := ulid.Make().String()
	r.analysis.StartAnalysis(analysisID)

	return r.execute(ctx, analysisID, videoID)
}

// Retry re-runs the pipeline for the active analysis. Without an active
// analysis this is a silent no-op, matching the store's retry semantics.
func (r *Runner) Retry(ctx context.Context) error {
	analysisID := r.analysis.AnalysisID()
	if analysisID == "" {
		return nil
	}

	r.analysis.RetryAnalysis()

	r.mutex.Lock()
	videoID := r.lastVideoID
	r.mutex.Unlock()

	return r.execute(ctx, analysisID, videoID)
}

func (r *Runner) execute(ctx context.Context, analysisID, videoID string) error {
	r.logger.Info("analysis pipeline started",
		zap.String("analysis_id", analysisID),
		zap.String("video_id", videoID))

	poses, err := r.inference.DetectPoses(ctx, videoID)
	if err != nil {
		return r.fail(analysisID, "pose_detection_failed", err)
	}
	for _, frame := range poses.Frames {
		r.analysis.IngestPoseFrame(frame)
	}
	r.analysis.SetProgress(25)

	r.analysis.SetStage(models.StageVideoAnalysis)
	analysis, err := r.inference.Analyze(ctx, videoID, poses.Frames)
	if err != nil {
		return r.fail(analysisID, "video_analysis_failed", err)
	}
	r.analysis.SetProgress(50)

	r.analysis.SetStage(models.StageLLMFeedback)
	feedback, err := r.inference.GenerateFeedback(ctx, analysis.Summary, analysis.Confidence)
	if err != nil {
		return r.fail(analysisID, "llm_feedback_failed", err)
	}
	r.analysis.SetProgress(75)

	r.analysis.SetStage(models.StageTTSGeneration)
	speech, err := r.inference.Synthesize(ctx, feedback.Feedback)
	if err != nil {
		return r.fail(analysisID, "tts_generation_failed", err)
	}
	r.analysis.SetAudioURL(speech.AudioURL)
	r.analysis.SetAudioDuration(speech.Duration)
	r.analysis.SetProgress(95)

	r.analysis.SetResult(models.AnalysisSuccess{
		AnalysisID: analysisID,
		Confidence: analysis.Confidence,
		Summary:    feedback.Feedback,
	})
	r.analysis.CompleteAnalysis()

	r.logger.Info("analysis pipeline completed", zap.String("analysis_id", analysisID))
	return nil
}

func (r *Runner) fail(analysisID, code string, err error) error {
	r.logger.Error("analysis pipeline stage failed",
		zap.String("analysis_id", analysisID),
		zap.String("code", code),
		zap.Error(err))

	r.analysis.SetResult(models.AnalysisFailure{
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
	return err
}
