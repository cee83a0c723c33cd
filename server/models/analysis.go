package models

import "time"

type AnalysisStage string

const (
	StageIdle          AnalysisStage = "idle"
	StagePoseDetection AnalysisStage = "pose-detection"
	StageVideoAnalysis AnalysisStage = "video-analysis"
	StageLLMFeedback   AnalysisStage = "llm-feedback"
	StageTTSGeneration AnalysisStage = "tts-generation"
	StageCompleted     AnalysisStage = "completed"
)

// AnalysisResult is a closed success/failure union. Consumers switch on the
// concrete type; there is no variant with both populated.
type AnalysisResult interface {
	isAnalysisResult()
}

type AnalysisSuccess struct {
	AnalysisID string  `json:"analysis_id"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

type AnalysisFailure struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (AnalysisSuccess) isAnalysisResult() {}
func (AnalysisFailure) isAnalysisResult() {}

type AudioState struct {
	URL          string  `json:"url"`
	IsPlaying    bool    `json:"is_playing"`
	CurrentTime  float64 `json:"current_time"`
	Duration     float64 `json:"duration"`
	ShowControls bool    `json:"show_controls"`
}
