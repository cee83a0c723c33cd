package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/anvers/formcoach/server/models"
)

func TestPoseStoreIngest(t *testing.T) {
	s := NewPoseStore(100, 10, zap.NewNop())

	_, ok := s.Current()
	assert.False(t, ok)

	s.Ingest(models.PoseFrame{ID: 1, Confidence: 0.9})
	s.Ingest(models.PoseFrame{ID: 2, Confidence: 0.8})

	current, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, int64(2), current.ID)
	assert.Len(t, s.History(), 2)
}

func TestPoseStoreHistoryBound(t *testing.T) {
	s := NewPoseStore(100, 10, zap.NewNop())

	for i := 0; i < 105; i++ {
		s.Ingest(models.PoseFrame{ID: int64(i)})
	}

	history := s.History()
	assert.Len(t, history, 100)
	assert.Equal(t, int64(5), history[0].ID)
	assert.Equal(t, int64(104), history[99].ID)
}

func TestPoseStoreErrorLogBound(t *testing.T) {
	s := NewPoseStore(100, 10, zap.NewNop())

	for i := 0; i < 13; i++ {
		s.RecordError(fmt.Sprintf("detector error %d", i))
	}

	errs := s.Errors()
	assert.Len(t, errs, 10)
	assert.Equal(t, "detector error 3", errs[0])
	assert.Equal(t, "detector error 12", errs[9])
}

func TestPoseStoreClear(t *testing.T) {
	s := NewPoseStore(100, 10, zap.NewNop())
	s.Ingest(models.PoseFrame{ID: 1})
	s.RecordError("boom")

	s.ClearHistory()
	s.ClearErrors()

	_, ok := s.Current()
	assert.False(t, ok)
	assert.Empty(t, s.History())
	assert.Empty(t, s.Errors())
}

func TestPoseStoreFlags(t *testing.T) {
	s := NewPoseStore(100, 10, zap.NewNop())

	assert.True(t, s.ProcessingEnabled())
	assert.False(t, s.IsRecording())

	s.SetProcessingEnabled(false)
	assert.False(t, s.ProcessingEnabled())

	s.StartRecording()
	assert.True(t, s.IsRecording())
	s.StopRecording()
	assert.False(t, s.IsRecording())
}
