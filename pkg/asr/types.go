package asr

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

// ProgressCallback 是进度回调函数，用于通知识别过程的进度
type ProgressCallback func(percent int, message string)

// ASRService 定义了语音识别服务的接口
type ASRService interface {
	// GetResult 执行识别并返回结果
	GetResult(ctx context.Context, callback ProgressCallback) (*models.Transcript, error)
}

// Options 创建识别服务时的参数
type Options struct {
	UseCache    bool
	CacheDir    string
	BaseURL     string // Whisper接口地址，为空时使用默认地址
	BcutURL     string
	KuaishouURL string
	APIKey      string
	Model       string
	Language    string
	HTTPClient  *http.Client
}

// OptionsFromConfig 从应用配置生成识别参数
func OptionsFromConfig(cfg *models.Config) Options {
	opts := Options{CacheDir: "./cache"}
	if cfg == nil {
		return opts
	}
	opts.UseCache = cfg.UseCache
	if cfg.TempDir != "" {
		opts.CacheDir = filepath.Join(cfg.TempDir, "asr-cache")
	}
	opts.BaseURL = cfg.WhisperURL
	opts.APIKey = cfg.LLMAPIKey
	opts.Model = cfg.WhisperModel
	opts.Language = cfg.Language
	return opts
}

func (o Options) httpClient(timeout time.Duration) *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

func reportProgress(callback ProgressCallback, percent int, message string) {
	if callback != nil {
		callback(percent, message)
	}
}
