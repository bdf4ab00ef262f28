package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// DefaultWhisperURL OpenAI兼容接口的默认地址
const DefaultWhisperURL = "https://api.openai.com/v1"

// WhisperASR OpenAI兼容的 /audio/transcriptions 接口，输出词级时间戳
type WhisperASR struct {
	*BaseASR
	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

// NewWhisperASR 创建Whisper识别实例
func NewWhisperASR(audioPath string, opts Options) (ASRService, error) {
	baseASR, err := NewBaseASR(audioPath, opts)
	if err != nil {
		return nil, err
	}

	w := &WhisperASR{
		BaseASR:  baseASR,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		model:    opts.Model,
		language: opts.Language,
		client:   opts.httpClient(10 * time.Minute),
	}
	if w.baseURL == "" {
		w.baseURL = DefaultWhisperURL
	}
	if w.model == "" {
		w.model = "whisper-1"
	}
	return w, nil
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// whisperResponse verbose_json 响应
type whisperResponse struct {
	Language string   `json:"language"`
	Duration *float64 `json:"duration"`
	Text     string   `json:"text"`
	Segments []struct {
		ID    int           `json:"id"`
		Start float64       `json:"start"`
		End   float64       `json:"end"`
		Text  string        `json:"text"`
		Words []whisperWord `json:"words"`
	} `json:"segments"`
	Words []whisperWord `json:"words"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetResult 实现ASRService接口
func (w *WhisperASR) GetResult(ctx context.Context, callback ProgressCallback) (*models.Transcript, error) {
	return w.withCache("WhisperASR", callback, func() (*models.Transcript, error) {
		reportProgress(callback, 20, "正在上传...")

		resp, err := w.submit(ctx)
		if err != nil {
			return nil, fmt.Errorf("Whisper识别请求失败: %w", err)
		}

		reportProgress(callback, 90, "解析结果...")
		transcript := w.makeTranscript(resp)
		reportProgress(callback, 100, "识别完成")
		return transcript, nil
	})
}

// submit 以multipart表单提交音频
func (w *WhisperASR) submit(ctx context.Context) (*whisperResponse, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	fields := [][2]string{
		{"model", w.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "word"},
		{"timestamp_granularities[]", "segment"},
	}
	if w.language != "" {
		fields = append(fields, [2]string{"language", w.language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("写入表单字段失败: %w", err)
		}
	}

	part, err := writer.CreateFormFile("file", filepath.Base(w.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("创建表单文件失败: %w", err)
	}
	if _, err := part.Write(w.FileBinary); err != nil {
		return nil, fmt.Errorf("写入文件数据失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭表单写入器失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败 (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	return &result, nil
}

// makeTranscript 转换为统一的识别结果
func (w *WhisperASR) makeTranscript(resp *whisperResponse) *models.Transcript {
	transcript := &models.Transcript{
		Language: w.language,
		Duration: resp.Duration,
	}

	utterances := make([]models.Utterance, 0, len(resp.Segments))
	nested := false
	for _, seg := range resp.Segments {
		u := models.Utterance{Text: strings.TrimSpace(seg.Text), Start: seg.Start, End: seg.End}
		for _, word := range seg.Words {
			u.Words = append(u.Words, models.Word(word))
			nested = true
		}
		utterances = append(utterances, u)
	}

	if !nested {
		words := make([]models.Word, len(resp.Words))
		for i, word := range resp.Words {
			words[i] = models.Word(word)
		}
		utterances = attachWords(utterances, words)
	}

	if len(utterances) == 0 && strings.TrimSpace(resp.Text) != "" {
		utterances = append(utterances, models.Utterance{Text: strings.TrimSpace(resp.Text)})
		if resp.Duration != nil {
			utterances[0].End = *resp.Duration
		}
	}

	transcript.Utterances = utterances
	normalizeWordSpacing(transcript)

	utils.Log.Infof("Whisper识别完成: %d 个语句段, %d 个词", len(utterances), len(resp.Words))
	return transcript
}
