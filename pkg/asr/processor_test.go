package asr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/shadow-caption/pkg/caption"
	"github.com/ccp-p/shadow-caption/pkg/models"
)

func TestASRProcessorProcessResults(t *testing.T) {
	cfg := models.NewDefaultConfig()
	cfg.CaptionsDir = t.TempDir()
	cfg.ExportSRT = true

	duration := 3.0
	transcript := &models.Transcript{
		Duration: &duration,
		Utterances: []models.Utterance{{
			Text: "Hi there.", Start: 0.2, End: 1,
			Words: []models.Word{{Word: "Hi", Start: 0.2, End: 0.5}, {Word: " there.", Start: 0.5, End: 1}},
		}},
	}

	processor := NewASRProcessor(cfg, nil)
	files, gen, err := processor.ProcessResults(context.Background(), transcript, "/media/hello.mp4")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.CaptionsDir, "hello_segments.json"), files["json"])
	assert.FileExists(t, files["txt"])
	assert.FileExists(t, files["srt"])
	assert.Equal(t, caption.StrategyLocal, gen.Strategy)
	assert.Len(t, gen.Document.Segments, 3)

	doc, err := processor.SegmentsExporter.Load("hello")
	require.NoError(t, err)
	assert.Equal(t, gen.Document.Segments, doc.Segments)
}

func TestASRProcessorEmptyTranscript(t *testing.T) {
	cfg := models.NewDefaultConfig()
	cfg.CaptionsDir = t.TempDir()

	_, _, err := NewASRProcessor(cfg, nil).ProcessResults(context.Background(), &models.Transcript{}, "x.mp3")
	assert.ErrorIs(t, err, caption.ErrEmptyTranscript)
}
