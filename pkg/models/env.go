package models

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 环境变量名
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvVideosDir     = "SHADOW_VIDEOS_DIR"
	EnvCaptionsDir   = "SHADOW_CAPTIONS_DIR"
)

// LoadDotEnv 加载 .env 文件（不存在时忽略），已存在的环境变量不会被覆盖
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logrus.Warnf("加载环境变量文件 %s 失败: %v", p, err)
		}
	}
}

// ApplyEnv 用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.LLMAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.LLMBaseURL = v
		c.WhisperURL = v
	}
	if v := os.Getenv(EnvVideosDir); v != "" {
		c.VideosDir = v
	}
	if v := os.Getenv(EnvCaptionsDir); v != "" {
		c.CaptionsDir = v
	}
}
