package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
	"github.com/anvers/formcoach/server/persist"
	"github.com/anvers/formcoach/server/store"
)

// fakeInference scripts each stage; a nil error means the canned response
// is returned.
type fakeInference struct {
	detectErr    error
	analyzeErr   error
	feedbackErr  error
	synthErr     error
	detectCalls  int
	analyzeCalls int
}

func (f *fakeInference) DetectPoses(ctx context.Context, videoID string) (*PoseDetectResponse, error) {
	f.detectCalls++
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return &PoseDetectResponse{Frames: []models.PoseFrame{{ID: 1}, {ID: 2}}}, nil
}

func (f *fakeInference) Analyze(ctx context.Context, videoID string, frames []models.PoseFrame) (*AnalyzeResponse, error) {
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &AnalyzeResponse{Confidence: 0.9, Summary: "knees track over toes"}, nil
}

func (f *fakeInference) GenerateFeedback(ctx context.Context, summary string, confidence float64) (*FeedbackResponse, error) {
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	return &FeedbackResponse{Feedback: "Keep your chest up through the descent."}, nil
}

func (f *fakeInference) Synthesize(ctx context.Context, text string) (*SynthesizeResponse, error) {
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &SynthesizeResponse{AudioURL: "https://cdn.example.com/tts.mp3", Duration: 18.5}, nil
}

func newTestRunner(t *testing.T, inference Inference) (*Runner, *store.AnalysisStore) {
	t.Helper()
	logger := zap.NewNop()
	analysis := store.NewAnalysisStore(context.Background(), 100, persist.NewMemoryStore(logger), logger)
	return NewRunner(inference, analysis, logger), analysis
}

func TestRunnerSuccessPath(t *testing.T) {
	fake := &fakeInference{}
	runner, analysis := newTestRunner(t, fake)

	require.NoError(t, runner.Run(context.Background(), "video-1"))

	assert.False(t, analysis.IsAnalyzing())
	assert.Equal(t, 100.0, analysis.Progress())
	assert.Equal(t, models.StageCompleted, analysis.Stage())
	assert.Empty(t, analysis.AnalysisID())
	assert.Empty(t, analysis.Error())

	success, ok := analysis.Result().(models.AnalysisSuccess)
	require.True(t, ok)
	assert.Equal(t, 0.9, success.Confidence)
	assert.Equal(t, "Keep your chest up through the descent.", success.Summary)

	assert.Len(t, analysis.PoseData(), 2)

	audio := analysis.Audio()
	assert.Equal(t, "https://cdn.example.com/tts.mp3", audio.URL)
	assert.Equal(t, 18.5, audio.Duration)
	assert.True(t, audio.ShowControls)
}

func TestRunnerStageFailureCodes(t *testing.T) {
	boom := errors.New("upstream boom")

	tests := []struct {
		name string
		fake *fakeInference
		code string
	}{
		{"pose detection", &fakeInference{detectErr: boom}, "pose_detection_failed"},
		{"video analysis", &fakeInference{analyzeErr: boom}, "video_analysis_failed"},
		{"llm feedback", &fakeInference{feedbackErr: boom}, "llm_feedback_failed"},
		{"tts generation", &fakeInference{synthErr: boom}, "tts_generation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, analysis := newTestRunner(t, tt.fake)

			err := runner.Run(context.Background(), "video-1")
			assert.ErrorIs(t, err, boom)

			failure, ok := analysis.Result().(models.AnalysisFailure)
			require.True(t, ok)
			assert.Equal(t, tt.code, failure.Code)
			assert.Equal(t, "upstream boom", failure.Message)
			assert.Equal(t, "upstream boom", analysis.Error())
			// The analysis id stays live so the run can be retried.
			assert.NotEmpty(t, analysis.AnalysisID())
		})
	}
}

func TestRunnerRetryAfterFailure(t *testing.T) {
	fake := &fakeInference{analyzeErr: errors.New("model cold start")}
	runner, analysis := newTestRunner(t, fake)

	require.Error(t, runner.Run(context.Background(), "video-1"))
	analysisID := analysis.AnalysisID()
	require.NotEmpty(t, analysisID)

	// The model recovers; Retry re-runs the same analysis end to end.
	fake.analyzeErr = nil
	require.NoError(t, runner.Retry(context.Background()))

	assert.Equal(t, 1, analysis.RetryCount())
	assert.Equal(t, models.StageCompleted, analysis.Stage())
	assert.Equal(t, 100.0, analysis.Progress())
	assert.Equal(t, 2, fake.detectCalls)
	assert.Equal(t, 2, fake.analyzeCalls)

	_, ok := analysis.Result().(models.AnalysisSuccess)
	assert.True(t, ok)
}

func TestRunnerRetryWithoutRunIsNoOp(t *testing.T) {
	fake := &fakeInference{}
	runner, analysis := newTestRunner(t, fake)

	require.NoError(t, runner.Retry(context.Background()))
	assert.Equal(t, 0, fake.detectCalls)
	assert.Equal(t, 0, analysis.RetryCount())
}
