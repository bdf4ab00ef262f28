package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

func sentence(start, end float64, text string) models.Segment {
	return models.Segment{Start: start, End: end, Text: text}
}

// assertTiles 检查字幕块首尾相接地覆盖 [0, duration]
func assertTiles(t *testing.T, blocks []models.Segment, duration float64) {
	t.Helper()
	require.NotEmpty(t, blocks)
	assert.Equal(t, 0.0, blocks[0].Start)
	assert.Equal(t, duration, blocks[len(blocks)-1].End)
	for i := range blocks {
		assert.Equal(t, i, blocks[i].ID)
		if i > 0 {
			assert.Equal(t, blocks[i-1].End, blocks[i].Start, "block %d", i)
		}
	}
}

func TestReconcileScenarioContiguous(t *testing.T) {
	sentences := BuildSentences(scenarioTokens(), []int{1, 3}, false)

	blocks := Reconcile(sentences, floatPtr(2.0))

	require.Len(t, blocks, 2)
	for _, b := range blocks {
		assert.False(t, b.IsFiller())
	}
	assertTiles(t, blocks, 2.0)
}

func TestReconcileMicroGapMerge(t *testing.T) {
	sentences := []models.Segment{
		sentence(0, 1.5, "First one."),
		sentence(1.9, 3.0, "Second one."),
	}

	blocks := Reconcile(sentences, floatPtr(3.0))

	require.Len(t, blocks, 2)
	assert.Equal(t, 1.9, blocks[0].End)
	assert.Equal(t, 1.9, blocks[1].Start)
	assert.Equal(t, "Second one.", blocks[1].Text)
	assertTiles(t, blocks, 3.0)
}

func TestReconcileMacroGapFiller(t *testing.T) {
	sentences := []models.Segment{
		sentence(0, 1.5, "First one."),
		sentence(3.5, 5.0, "Second one."),
	}

	blocks := Reconcile(sentences, floatPtr(5.0))

	require.Len(t, blocks, 3)
	assert.True(t, blocks[1].IsFiller())
	assert.Equal(t, models.NoCaptionText, blocks[1].Text)
	assert.InDelta(t, 2.0, blocks[1].Duration(), 1e-9)
	assert.Equal(t, 1.5, blocks[0].End)
	assertTiles(t, blocks, 5.0)
}

func TestReconcileGapAtThresholdInsertsFiller(t *testing.T) {
	sentences := []models.Segment{
		sentence(0, 1.0, "a."),
		sentence(1.9, 2.5, "b."),
	}

	blocks := Reconcile(sentences, nil)

	require.Len(t, blocks, 3)
	assert.True(t, blocks[1].IsFiller())
}

func TestReconcileLeadingAndTrailingFiller(t *testing.T) {
	sentences := []models.Segment{
		sentence(0.3, 1.0, "Hello."),
		sentence(1.2, 2.0, "World."),
	}

	blocks := Reconcile(sentences, floatPtr(10.0))

	// 开头的小间隙没有前一个句子块可并入，仍然插入占位块
	require.Len(t, blocks, 4)
	assert.True(t, blocks[0].IsFiller())
	assert.Equal(t, 0.3, blocks[0].End)
	assert.Equal(t, 1.2, blocks[1].End)
	assert.True(t, blocks[3].IsFiller())
	assert.Equal(t, 2.0, blocks[3].Start)
	assertTiles(t, blocks, 10.0)
}

func TestReconcileUnknownDuration(t *testing.T) {
	sentences := []models.Segment{sentence(0, 1.0, "Only.")}

	blocks := Reconcile(sentences, nil)

	require.Len(t, blocks, 1)
	assert.Equal(t, 1.0, blocks[0].End)
}

func TestReconcileSortsAndClampsOverlaps(t *testing.T) {
	sentences := []models.Segment{
		{ID: 7, Start: 2.0, End: 3.0, Text: "Later."},
		{ID: 3, Start: 0, End: 2.4, Text: "Earlier."},
	}

	blocks := Reconcile(sentences, floatPtr(3.0))

	require.Len(t, blocks, 2)
	assert.Equal(t, "Earlier.", blocks[0].Text)
	assert.Equal(t, 2.4, blocks[1].Start)
	assertTiles(t, blocks, 3.0)
	// 输入不被修改
	assert.Equal(t, 7, sentences[0].ID)
	assert.Equal(t, 2.0, sentences[0].Start)
}

func TestReconcileTrimsOvershoot(t *testing.T) {
	sentences := []models.Segment{sentence(0, 4.2, "Too long.")}

	blocks := Reconcile(sentences, floatPtr(4.0))

	require.Len(t, blocks, 1)
	assertTiles(t, blocks, 4.0)
}

func TestReconcileDropsSentencesPastDuration(t *testing.T) {
	// 最后一句开始于媒体时长之后
	sentences := []models.Segment{
		sentence(0, 9.5, "a."),
		sentence(10.2, 11, "b."),
	}

	blocks := Reconcile(sentences, floatPtr(10.0))

	require.Len(t, blocks, 2)
	assert.Equal(t, "a.", blocks[0].Text)
	assert.Equal(t, 9.5, blocks[0].End)
	assert.True(t, blocks[1].IsFiller())
	assertTiles(t, blocks, 10.0)
}

func TestReconcileClampsSentenceEndToDuration(t *testing.T) {
	// 最后一句跨过媒体时长，小间隙合并后仍以时长结束
	sentences := []models.Segment{
		sentence(0, 9.5, "a."),
		sentence(9.8, 10.6, "b."),
	}

	blocks := Reconcile(sentences, floatPtr(10.0))

	require.Len(t, blocks, 2)
	assert.Equal(t, 9.8, blocks[0].End)
	assert.Equal(t, "b.", blocks[1].Text)
	assert.Equal(t, 10.0, blocks[1].End)
	for _, b := range blocks {
		assert.LessOrEqual(t, b.End, 10.0)
	}
	assertTiles(t, blocks, 10.0)
}

func TestReconcileEmptyWithDuration(t *testing.T) {
	blocks := Reconcile(nil, floatPtr(3.0))

	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].IsFiller())
	assertTiles(t, blocks, 3.0)

	assert.Empty(t, Reconcile(nil, nil))
}

func TestReconcileCustomThreshold(t *testing.T) {
	sentences := []models.Segment{
		sentence(0, 1.0, "a."),
		sentence(1.5, 2.0, "b."),
	}

	assert.Len(t, NewReconciler(0.3).Reconcile(sentences, nil), 3)
	assert.Len(t, NewReconciler(0).Reconcile(sentences, nil), 2)
}

func TestReconcileCoverage(t *testing.T) {
	sentences := []models.Segment{
		sentence(0.5, 1.2, "a."),
		sentence(1.6, 2.0, "b."),
		sentence(2.0, 3.1, "c."),
		sentence(5.0, 6.3, "d."),
		sentence(6.2, 7.0, "e."),
		sentence(7.85, 9.0, "f."),
	}

	blocks := Reconcile(sentences, floatPtr(12.5))

	assertTiles(t, blocks, 12.5)
	texts := 0
	for _, b := range blocks {
		if !b.IsFiller() {
			texts++
		}
		assert.LessOrEqual(t, b.Start, b.End)
	}
	assert.Equal(t, len(sentences), texts)
}
