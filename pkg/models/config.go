package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config 表示应用程序的配置
type Config struct {
	VideosDir   string `json:"videos_dir" yaml:"videos_dir" toml:"videos_dir"`       // 媒体文件所在文件夹
	CaptionsDir string `json:"captions_dir" yaml:"captions_dir" toml:"captions_dir"` // 字幕产物文件夹
	NotesDir    string `json:"notes_dir" yaml:"notes_dir" toml:"notes_dir"`          // 笔记文件夹
	InboxDir    string `json:"inbox_dir" yaml:"inbox_dir" toml:"inbox_dir"`          // 投递目录，放入的媒体会被移动到VideosDir
	TempDir     string `json:"temp_dir" yaml:"temp_dir" toml:"temp_dir"`             // 临时目录

	// asr-service
	ASRService   string `json:"asr_service" yaml:"asr_service" toml:"asr_service"` // ASR服务选择 (whisper, bcut, kuaishou, auto)
	WhisperURL   string `json:"whisper_url" yaml:"whisper_url" toml:"whisper_url"`
	WhisperModel string `json:"whisper_model" yaml:"whisper_model" toml:"whisper_model"`
	UseCache     bool   `json:"use_cache" yaml:"use_cache" toml:"use_cache"` // 是否缓存识别结果

	// llm
	LLMBaseURL            string `json:"llm_base_url" yaml:"llm_base_url" toml:"llm_base_url"`
	LLMAPIKey             string `json:"llm_api_key" yaml:"llm_api_key" toml:"llm_api_key"`
	LLMModel              string `json:"llm_model" yaml:"llm_model" toml:"llm_model"`
	UsePunctuationRestore bool   `json:"use_punctuation_restore" yaml:"use_punctuation_restore" toml:"use_punctuation_restore"` // 是否调用外部服务恢复标点
	UseBoundaryInference  bool   `json:"use_boundary_inference" yaml:"use_boundary_inference" toml:"use_boundary_inference"`    // 是否调用外部服务推断句子边界

	// 字幕参数
	Language           string  `json:"language" yaml:"language" toml:"language"`
	MicroGapThreshold  float64 `json:"micro_gap_threshold" yaml:"micro_gap_threshold" toml:"micro_gap_threshold"`    // 小于该值的间隙并入前一块（秒）
	MaxSegmentDuration float64 `json:"max_segment_duration" yaml:"max_segment_duration" toml:"max_segment_duration"` // 粗粒度语句段的最大时长（秒）

	ExportSRT     bool    `json:"export_srt" yaml:"export_srt" toml:"export_srt"`             // 是否导出SRT字幕文件
	DownloadVideo bool    `json:"download_video" yaml:"download_video" toml:"download_video"` // 字幕完成后是否后台下载完整视频
	MaxRetries    int     `json:"max_retries" yaml:"max_retries" toml:"max_retries"`          // 最大重试次数
	RetryDelay    float64 `json:"retry_delay" yaml:"retry_delay" toml:"retry_delay"`          // 重试延迟（秒）
	LogLevel      string  `json:"log_level" yaml:"log_level" toml:"log_level"`                // 日志级别
	LogFile       string  `json:"log_file" yaml:"log_file" toml:"log_file"`                   // 日志文件
	ListenAddr    string  `json:"listen_addr" yaml:"listen_addr" toml:"listen_addr"`          // Web服务监听地址
	WatchMode     bool    `json:"watch_mode" yaml:"watch_mode" toml:"watch_mode"`             // 是否启用监听模式
	ShowProgress  bool    `json:"show_progress" yaml:"show_progress" toml:"show_progress"`    // 显示进度条
}

// ConfigValidationError 表示配置验证错误
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("配置验证错误: %s - %s", e.Field, e.Message)
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		VideosDir:             "./data/videos",
		CaptionsDir:           "./data/captions",
		NotesDir:              "./data/notes",
		TempDir:               "",
		ASRService:            "auto",
		WhisperURL:            "https://api.openai.com/v1",
		WhisperModel:          "whisper-1",
		UseCache:              true,
		LLMBaseURL:            "https://api.openai.com/v1",
		LLMModel:              "gpt-4o-mini",
		UsePunctuationRestore: true,
		UseBoundaryInference:  true,
		Language:              "en",
		MicroGapThreshold:     0.9,
		MaxSegmentDuration:    8,
		ExportSRT:             false,
		DownloadVideo:         true,
		MaxRetries:            3,
		RetryDelay:            3.0,
		LogLevel:              "INFO",
		LogFile:               "",
		ListenAddr:            ":5000",
		WatchMode:             false,
		ShowProgress:          true,
	}
}

var validASRServices = map[string]bool{
	"auto":     true,
	"whisper":  true,
	"bcut":     true,
	"kuaishou": true,
}

// Validate 验证配置是否有效
func (c *Config) Validate() error {
	// 验证文件夹路径
	if c.VideosDir == "" {
		return &ConfigValidationError{"VideosDir", "不能为空"}
	}
	if err := ensureDirExists(c.VideosDir); err != nil {
		return &ConfigValidationError{"VideosDir", err.Error()}
	}

	if c.CaptionsDir == "" {
		return &ConfigValidationError{"CaptionsDir", "不能为空"}
	}
	if err := ensureDirExists(c.CaptionsDir); err != nil {
		return &ConfigValidationError{"CaptionsDir", err.Error()}
	}

	if err := ensureDirExists(c.InboxDir); err != nil {
		return &ConfigValidationError{"InboxDir", err.Error()}
	}

	if !validASRServices[strings.ToLower(c.ASRService)] {
		return &ConfigValidationError{"ASRService", "必须是 whisper, bcut, kuaishou 或 auto"}
	}

	// 验证数值范围
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return &ConfigValidationError{"MaxRetries", "必须在1-10之间"}
	}

	if c.RetryDelay < 0 || c.RetryDelay > 30.0 {
		return &ConfigValidationError{"RetryDelay", "必须在0-30秒之间"}
	}

	if c.MicroGapThreshold < 0 || c.MicroGapThreshold > 5 {
		return &ConfigValidationError{"MicroGapThreshold", "必须在0-5秒之间"}
	}

	if c.MaxSegmentDuration < 1 || c.MaxSegmentDuration > 60 {
		return &ConfigValidationError{"MaxSegmentDuration", "必须在1-60秒之间"}
	}

	return nil
}

// LoadFromFile 从文件加载配置，按扩展名选择 json / yaml / toml 解码
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("读取配置文件失败: %v", err)
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		_, err = toml.Decode(string(data), c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		logrus.Errorf("解析配置文件失败: %v", err)
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := c.Validate(); err != nil {
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// SaveToFile 保存配置到文件
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.Errorf("创建目录失败: %v", err)
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		logrus.Errorf("序列化配置失败: %v", err)
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.Errorf("写入配置文件失败: %v", err)
		return err
	}

	return nil
}

// Update 批量更新配置
func (c *Config) Update(updates map[string]interface{}) error {
	// 保存当前配置用于回滚
	tempConfig := *c

	// 将更新序列化为JSON再反序列化到结构体中
	updateBytes, err := json.Marshal(updates)
	if err != nil {
		logrus.Errorf("序列化更新数据失败: %v", err)
		return err
	}

	if err := json.Unmarshal(updateBytes, c); err != nil {
		*c = tempConfig
		logrus.Errorf("应用配置更新失败: %v", err)
		return err
	}

	if err := c.Validate(); err != nil {
		*c = tempConfig
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// Reset 重置为默认配置
func (c *Config) Reset() {
	*c = *NewDefaultConfig()
}

// PrintConfig 打印当前配置，API Key 做脱敏处理
func (c *Config) PrintConfig() {
	masked := *c
	if masked.LLMAPIKey != "" {
		masked.LLMAPIKey = maskSecret(masked.LLMAPIKey)
	}
	bytes, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		logrus.Errorf("序列化配置失败: %v", err)
		return
	}
	logrus.Info("\n当前配置:\n" + string(bytes))
}

// SegmentsPath 返回媒体对应的字幕产物路径
func (c *Config) SegmentsPath(baseName string) string {
	return filepath.Join(c.CaptionsDir, baseName+"_segments.json")
}

// TranscriptPath 返回媒体对应的纯文本转写路径
func (c *Config) TranscriptPath(baseName string) string {
	return filepath.Join(c.CaptionsDir, baseName+".txt")
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// 确保目录存在，如果不存在则创建
func ensureDirExists(path string) error {
	if path == "" {
		return nil // 空路径视为可选
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}

	return nil
}
