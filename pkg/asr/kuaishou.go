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

// DefaultKuaishouURL 快手字幕生成接口
const DefaultKuaishouURL = "https://ai.kuaishou.com/api/effects/subtitle_generate"

// KuaiShouASR 快手语音识别实现，只有语句级时间戳
type KuaiShouASR struct {
	*BaseASR
	endpoint string
	client   *http.Client
}

// NewKuaiShouASR 创建快手ASR实例
func NewKuaiShouASR(audioPath string, opts Options) (ASRService, error) {
	baseASR, err := NewBaseASR(audioPath, opts)
	if err != nil {
		return nil, err
	}

	endpoint := opts.KuaishouURL
	if endpoint == "" {
		endpoint = DefaultKuaishouURL
	}
	return &KuaiShouASR{
		BaseASR:  baseASR,
		endpoint: endpoint,
		client:   opts.httpClient(5 * time.Minute),
	}, nil
}

// KuaiShouResponse 响应结构
type KuaiShouResponse struct {
	Data struct {
		Text []struct {
			Text      string  `json:"text"`
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
		} `json:"text"`
	} `json:"data"`
}

// GetResult 实现ASRService接口
func (k *KuaiShouASR) GetResult(ctx context.Context, callback ProgressCallback) (*models.Transcript, error) {
	return k.withCache("KuaiShouASR", callback, func() (*models.Transcript, error) {
		reportProgress(callback, 50, "正在识别...")

		result, err := k.submit(ctx)
		if err != nil {
			return nil, fmt.Errorf("快手ASR请求失败: %w", err)
		}

		transcript := k.makeTranscript(result)
		reportProgress(callback, 100, "识别完成")
		return transcript, nil
	})
}

// submit 提交识别请求
func (k *KuaiShouASR) submit(ctx context.Context) (*KuaiShouResponse, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	if err := writer.WriteField("typeId", "1"); err != nil {
		return nil, fmt.Errorf("写入表单字段失败: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(k.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("创建表单文件失败: %w", err)
	}
	if _, err := part.Write(k.FileBinary); err != nil {
		return nil, fmt.Errorf("写入文件数据失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭表单写入器失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result KuaiShouResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}
	return &result, nil
}

// makeTranscript 处理识别结果，语句段不带词级时间戳
func (k *KuaiShouASR) makeTranscript(resp *KuaiShouResponse) *models.Transcript {
	transcript := &models.Transcript{}
	for _, item := range resp.Data.Text {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		transcript.Utterances = append(transcript.Utterances, models.Utterance{
			Text:  text,
			Start: item.StartTime,
			End:   item.EndTime,
		})
	}
	utils.Log.Infof("快手ASR识别完成: %d 个语句段", len(transcript.Utterances))
	return transcript
}
