package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDirectory 创建测试目录和测试文件，返回视频目录和字幕目录
func setupTestDirectory(t *testing.T) (string, string) {
	t.Helper()
	videosDir := t.TempDir()
	captionsDir := t.TempDir()

	// 文件名 -> 相对当前时间的修改时间偏移
	testFiles := map[string]time.Duration{
		"old_talk.mp3":  -3 * time.Hour,
		"lecture.mp4":   -2 * time.Hour,
		"podcast.m4a":   -1 * time.Hour,
		"clip.webm":     0,
		"notes.pdf":     0,
		"image.jpg":     0,
		".hidden.mp3":   0,
		"sub/inner.mp3": 0,
	}

	require.NoError(t, os.MkdirAll(filepath.Join(videosDir, "sub"), 0755))
	now := time.Now()
	for name, offset := range testFiles {
		path := filepath.Join(videosDir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		mtime := now.Add(offset)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	// lecture 已有字幕产物
	require.NoError(t, os.WriteFile(filepath.Join(captionsDir, "lecture_segments.json"), []byte(`{}`), 0644))
	return videosDir, captionsDir
}

func TestScanDirectory(t *testing.T) {
	videosDir, _ := setupTestDirectory(t)

	files, err := NewMediaScanner().ScanDirectory(videosDir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	// 按修改时间从新到旧，非媒体、隐藏文件和子目录都被跳过
	assert.Equal(t, []string{"clip.webm", "podcast.m4a", "lecture.mp4", "old_talk.mp3"}, names)
	assert.True(t, files[0].IsVideo)
	assert.True(t, files[1].IsAudio)
	assert.Equal(t, ".m4a", files[1].Ext)
}

func TestScanDirectoryMissing(t *testing.T) {
	_, err := NewMediaScanner().ScanDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestListMedia(t *testing.T) {
	videosDir, captionsDir := setupTestDirectory(t)

	entries, err := ListMedia(videosDir, captionsDir)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "clip.webm", entries[0].Filename)
	assert.Equal(t, "clip", entries[0].Title)
	assert.Equal(t, "video", entries[0].MediaType)
	assert.False(t, entries[0].HasSegments)

	assert.Equal(t, "podcast", entries[1].Title)
	assert.Equal(t, "audio", entries[1].MediaType)

	assert.Equal(t, "lecture.mp4", entries[2].Filename)
	assert.True(t, entries[2].HasSegments)
}

func TestListMediaEmptyDir(t *testing.T) {
	entries, err := ListMedia(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestFilterUncaptioned(t *testing.T) {
	videosDir, captionsDir := setupTestDirectory(t)
	s := NewMediaScanner()

	files, err := s.ScanDirectory(videosDir)
	require.NoError(t, err)

	pending := s.FilterUncaptioned(files, captionsDir)
	assert.Len(t, pending, 3)
	for _, f := range pending {
		assert.NotEqual(t, "lecture.mp4", f.Name)
	}
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"a.mp4":  "video/mp4",
		"a.WEBM": "video/webm",
		"a.mkv":  "video/x-matroska",
		"a.mp3":  "audio/mpeg",
		"a.m4a":  "audio/mp4",
		"a.wav":  "audio/wav",
		"a.txt":  "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, MimeType(name), name)
	}
}
