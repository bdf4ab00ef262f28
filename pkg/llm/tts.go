package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Model string  `json:"model"`
	Voice string  `json:"voice"`
	Input string  `json:"input"`
	Speed float64 `json:"speed"`
}

// TextToSpeech 将英文文本合成为MP3音频（女声 nova）
func (c *ChatClient) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	payload, err := json.Marshal(SpeechRequest{Model: "tts-1", Voice: "nova", Input: text, Speed: 1.0})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	audio, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS API 调用失败: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS API 调用失败: 返回了空的音频内容")
	}

	utils.Info("语音生成成功，大小: %s", utils.FormatFileSize(int64(len(audio))))
	return audio, nil
}
