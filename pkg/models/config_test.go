package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 使用临时目录的配置，避免在包目录下创建文件夹
func newTestConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	config := NewDefaultConfig()
	config.VideosDir = filepath.Join(dir, "videos")
	config.CaptionsDir = filepath.Join(dir, "captions")
	return config
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// 验证默认值是否正确设置
	assert.Equal(t, "./data/videos", config.VideosDir)
	assert.Equal(t, "./data/captions", config.CaptionsDir)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 3.0, config.RetryDelay)
	assert.Equal(t, 0.9, config.MicroGapThreshold)
	assert.Equal(t, 8.0, config.MaxSegmentDuration)
	assert.Equal(t, "en", config.Language)
	assert.Equal(t, "auto", config.ASRService)
	assert.True(t, config.UsePunctuationRestore)
	assert.False(t, config.ExportSRT)
}

func TestConfigValidate(t *testing.T) {
	// 测试有效配置
	config := newTestConfig(t)
	require.NoError(t, config.Validate())
	assert.DirExists(t, config.VideosDir)
	assert.DirExists(t, config.CaptionsDir)

	// 测试无效的MaxRetries
	config.MaxRetries = 0
	err := config.Validate()
	require.Error(t, err)
	var configErr *ConfigValidationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "MaxRetries", configErr.Field)

	// 恢复有效值并测试另一个字段
	config.MaxRetries = 3
	config.ASRService = "jianying"
	err = config.Validate()
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "ASRService", configErr.Field)

	config.ASRService = "whisper"
	config.MicroGapThreshold = -1
	err = config.Validate()
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "MicroGapThreshold", configErr.Field)

	config.MicroGapThreshold = 0.9
	config.CaptionsDir = ""
	err = config.Validate()
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "CaptionsDir", configErr.Field)
}

func TestConfigSaveAndLoad(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			original := newTestConfig(t)
			original.MaxRetries = 5
			original.ExportSRT = true
			original.MicroGapThreshold = 0.5

			path := filepath.Join(t.TempDir(), "config"+ext)
			require.NoError(t, original.SaveToFile(path))

			loaded := NewDefaultConfig()
			require.NoError(t, loaded.LoadFromFile(path))

			assert.Equal(t, original.VideosDir, loaded.VideosDir)
			assert.Equal(t, original.CaptionsDir, loaded.CaptionsDir)
			assert.Equal(t, 5, loaded.MaxRetries)
			assert.True(t, loaded.ExportSRT)
			assert.Equal(t, 0.5, loaded.MicroGapThreshold)
		})
	}
}

func TestConfigLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	config := NewDefaultConfig()
	assert.Error(t, config.LoadFromFile(path))
	assert.Error(t, config.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestConfigUpdate(t *testing.T) {
	config := newTestConfig(t)

	// 有效更新
	err := config.Update(map[string]interface{}{
		"max_retries": 5,
		"export_srt":  true,
		"language":    "de",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, config.MaxRetries)
	assert.True(t, config.ExportSRT)
	assert.Equal(t, "de", config.Language)

	// 无效更新
	err = config.Update(map[string]interface{}{
		"max_retries": 20, // 超出最大值10
	})
	assert.Error(t, err)
	assert.Equal(t, 5, config.MaxRetries) // 应该保持原值
}

func TestConfigReset(t *testing.T) {
	config := newTestConfig(t)
	config.MaxRetries = 5
	config.ExportSRT = true

	config.Reset()

	assert.Equal(t, "./data/videos", config.VideosDir)
	assert.Equal(t, 3, config.MaxRetries)
	assert.False(t, config.ExportSRT)
}

func TestConfigArtifactPaths(t *testing.T) {
	config := NewDefaultConfig()
	config.CaptionsDir = "caps"

	assert.Equal(t, filepath.Join("caps", "talk_segments.json"), config.SegmentsPath("talk"))
	assert.Equal(t, filepath.Join("caps", "talk.txt"), config.TranscriptPath("talk"))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvOpenAIBaseURL, "http://localhost:9999/v1")
	t.Setenv(EnvVideosDir, "/srv/videos")
	t.Setenv(EnvCaptionsDir, "")

	config := NewDefaultConfig()
	config.ApplyEnv()

	assert.Equal(t, "sk-test", config.LLMAPIKey)
	assert.Equal(t, "http://localhost:9999/v1", config.LLMBaseURL)
	assert.Equal(t, "http://localhost:9999/v1", config.WhisperURL)
	assert.Equal(t, "/srv/videos", config.VideosDir)
	assert.Equal(t, "./data/captions", config.CaptionsDir)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHADOW_DOTENV_PROBE=from-file\n"), 0644))
	t.Setenv("SHADOW_DOTENV_PROBE", "")
	os.Unsetenv("SHADOW_DOTENV_PROBE")

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("SHADOW_DOTENV_PROBE"))
}

func TestSegmentIsFiller(t *testing.T) {
	assert.True(t, Segment{Text: NoCaptionText}.IsFiller())
	assert.False(t, Segment{Text: "Hi there."}.IsFiller())
	assert.InDelta(t, 1.5, Segment{Start: 1, End: 2.5}.Duration(), 1e-9)
}

func TestTranscriptHasWordTimestamps(t *testing.T) {
	var nilTranscript *Transcript
	assert.False(t, nilTranscript.HasWordTimestamps())
	assert.False(t, (&Transcript{Utterances: []Utterance{{Text: "hi"}}}).HasWordTimestamps())
	assert.True(t, (&Transcript{Utterances: []Utterance{{Text: "hi"}, {Words: []Word{{Word: "x"}}}}}).HasWordTimestamps())
}
