package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// DefaultBcutURL 必剪API基础URL
const DefaultBcutURL = "https://member.bilibili.com/x/bcut/rubick-interface"

const (
	bcutUserAgent = "Bilibili/1.0.0 (https://www.bilibili.com)"
	bcutModelID   = "8"
	// 经验公式：API时间值/1000 + 偏移量(0.105秒)
	bcutTimeOffset = 0.105
	bcutMaxPolls   = 500
)

// BcutASR 必剪语音识别实现，结果带词级时间戳
type BcutASR struct {
	*BaseASR
	apiBase      string
	client       *http.Client
	pollInterval time.Duration

	taskID      string
	etags       []string
	inBossKey   string
	resourceID  string
	uploadID    string
	uploadURLs  []string
	perSize     int
	downloadURL string
}

// NewBcutASR 创建必剪ASR实例
func NewBcutASR(audioPath string, opts Options) (ASRService, error) {
	baseASR, err := NewBaseASR(audioPath, opts)
	if err != nil {
		return nil, err
	}

	apiBase := strings.TrimRight(opts.BcutURL, "/")
	if apiBase == "" {
		apiBase = DefaultBcutURL
	}

	return &BcutASR{
		BaseASR:      baseASR,
		apiBase:      apiBase,
		client:       opts.httpClient(60 * time.Second),
		pollInterval: time.Second,
	}, nil
}

type bcutEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type bcutUploadInfo struct {
	InBossKey  string   `json:"in_boss_key"`
	ResourceID string   `json:"resource_id"`
	UploadID   string   `json:"upload_id"`
	UploadURLs []string `json:"upload_urls"`
	PerSize    int      `json:"per_size"`
}

type bcutTaskResult struct {
	TaskID string `json:"task_id"`
	State  int    `json:"state"`
	Result string `json:"result"`
}

// bcutResult 任务完成后 result 字段中的JSON
type bcutResult struct {
	Utterances []struct {
		Transcript string  `json:"transcript"`
		StartTime  float64 `json:"start_time"`
		EndTime    float64 `json:"end_time"`
		Words      []struct {
			Label     string  `json:"label"`
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
		} `json:"words"`
	} `json:"utterances"`
}

// GetResult 实现ASRService接口
func (b *BcutASR) GetResult(ctx context.Context, callback ProgressCallback) (*models.Transcript, error) {
	return b.withCache("BcutASR", callback, func() (*models.Transcript, error) {
		reportProgress(callback, 20, "正在上传...")
		if err := b.upload(ctx); err != nil {
			return nil, fmt.Errorf("必剪ASR上传失败: %w", err)
		}

		reportProgress(callback, 50, "提交任务...")
		if err := b.createTask(ctx); err != nil {
			return nil, fmt.Errorf("必剪ASR创建任务失败: %w", err)
		}

		reportProgress(callback, 60, "等待结果...")
		result, err := b.queryResult(ctx, callback)
		if err != nil {
			return nil, fmt.Errorf("必剪ASR查询结果失败: %w", err)
		}

		transcript := b.makeTranscript(result)
		reportProgress(callback, 100, "识别完成")
		return transcript, nil
	})
}

// upload 申请上传、分片上传、提交上传
func (b *BcutASR) upload(ctx context.Context) error {
	if err := b.requestUpload(ctx); err != nil {
		return err
	}
	if err := b.uploadParts(ctx); err != nil {
		return err
	}
	return b.commitUpload(ctx)
}

// doJSON 发送请求并解析必剪的统一响应结构
func (b *BcutASR) doJSON(ctx context.Context, method, url string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("JSON编码失败: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("User-Agent", bcutUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var envelope bcutEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	if envelope.Code != 0 || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("响应格式错误: code=%d %s", envelope.Code, envelope.Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("解析响应数据失败: %w", err)
	}
	return nil
}

// requestUpload 申请上传
func (b *BcutASR) requestUpload(ctx context.Context) error {
	payload := map[string]interface{}{
		"type":             2,
		"name":             "audio.mp3",
		"size":             len(b.FileBinary),
		"ResourceFileType": "mp3",
		"model_id":         bcutModelID,
	}

	var info bcutUploadInfo
	if err := b.doJSON(ctx, http.MethodPost, b.apiBase+"/resource/create", payload, &info); err != nil {
		return err
	}
	if len(info.UploadURLs) == 0 || info.PerSize <= 0 {
		return fmt.Errorf("申请上传返回的分片信息无效")
	}

	b.inBossKey = info.InBossKey
	b.resourceID = info.ResourceID
	b.uploadID = info.UploadID
	b.uploadURLs = info.UploadURLs
	b.perSize = info.PerSize

	utils.Log.Infof("申请上传成功, 总计大小%dKB, %d分片, 分片大小%dKB: %s",
		len(b.FileBinary)/1024, len(b.uploadURLs), b.perSize/1024, b.inBossKey)
	return nil
}

// uploadParts 上传分片
func (b *BcutASR) uploadParts(ctx context.Context) error {
	b.etags = make([]string, len(b.uploadURLs))

	for i, uploadURL := range b.uploadURLs {
		startRange := i * b.perSize
		endRange := (i + 1) * b.perSize
		if startRange > len(b.FileBinary) {
			startRange = len(b.FileBinary)
		}
		if endRange > len(b.FileBinary) {
			endRange = len(b.FileBinary)
		}

		utils.Log.Debugf("开始上传分片%d: %d-%d", i, startRange, endRange)

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(b.FileBinary[startRange:endRange]))
		if err != nil {
			return fmt.Errorf("创建HTTP请求失败: %w", err)
		}
		req.Header.Set("User-Agent", bcutUserAgent)
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := b.client.Do(req)
		if err != nil {
			return fmt.Errorf("发送HTTP请求失败: %w", err)
		}

		etag := resp.Header.Get("Etag")
		if etag == "" {
			// 没有Etag头时尝试从响应体获取
			var result struct {
				Etag string `json:"etag"`
			}
			if body, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(body, &result) == nil {
				etag = result.Etag
			}
		}
		resp.Body.Close()

		if etag == "" {
			return fmt.Errorf("分片%d上传失败: 未获取到Etag", i)
		}
		b.etags[i] = etag
		utils.Log.Debugf("分片%d上传成功: %s", i, etag)
	}

	return nil
}

// commitUpload 提交上传
func (b *BcutASR) commitUpload(ctx context.Context) error {
	payload := map[string]interface{}{
		"InBossKey":  b.inBossKey,
		"ResourceId": b.resourceID,
		"Etags":      strings.Join(b.etags, ","),
		"UploadId":   b.uploadID,
		"model_id":   bcutModelID,
	}

	var result struct {
		DownloadURL string `json:"download_url"`
	}
	if err := b.doJSON(ctx, http.MethodPost, b.apiBase+"/resource/create/complete", payload, &result); err != nil {
		return err
	}
	b.downloadURL = result.DownloadURL
	utils.Log.Infof("提交成功，获取下载URL: %s", b.downloadURL)
	return nil
}

// createTask 创建任务
func (b *BcutASR) createTask(ctx context.Context) error {
	payload := map[string]interface{}{
		"resource": b.downloadURL,
		"model_id": bcutModelID,
	}

	var task bcutTaskResult
	if err := b.doJSON(ctx, http.MethodPost, b.apiBase+"/task", payload, &task); err != nil {
		return err
	}
	b.taskID = task.TaskID
	utils.Log.Infof("任务已创建: %s", b.taskID)
	return nil
}

// queryResult 轮询任务状态直到完成
func (b *BcutASR) queryResult(ctx context.Context, callback ProgressCallback) (*bcutResult, error) {
	url := fmt.Sprintf("%s/task/result?model_id=%s&task_id=%s", b.apiBase, "7", b.taskID)

	for i := 0; i < bcutMaxPolls; i++ {
		var task bcutTaskResult
		if err := b.doJSON(ctx, http.MethodGet, url, nil, &task); err != nil {
			return nil, err
		}

		if task.State == 4 {
			var result bcutResult
			if err := json.Unmarshal([]byte(task.Result), &result); err != nil {
				return nil, fmt.Errorf("解析结果失败: %w", err)
			}
			return &result, nil
		}

		if i%10 == 0 {
			progress := 60 + int(float64(i)/bcutMaxPolls*39)
			reportProgress(callback, progress, fmt.Sprintf("处理中 %d/%d...", i, bcutMaxPolls))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}
	}

	return nil, fmt.Errorf("任务超时未完成")
}

func bcutSeconds(ms float64) float64 {
	return ms/1000.0 + bcutTimeOffset
}

// makeTranscript 转换为统一的识别结果，时长未知
func (b *BcutASR) makeTranscript(result *bcutResult) *models.Transcript {
	transcript := &models.Transcript{}
	for _, u := range result.Utterances {
		utterance := models.Utterance{
			Text:  strings.TrimSpace(u.Transcript),
			Start: bcutSeconds(u.StartTime),
			End:   bcutSeconds(u.EndTime),
		}
		for _, w := range u.Words {
			utterance.Words = append(utterance.Words, models.Word{
				Word:  w.Label,
				Start: bcutSeconds(w.StartTime),
				End:   bcutSeconds(w.EndTime),
			})
		}
		transcript.Utterances = append(transcript.Utterances, utterance)
	}
	normalizeWordSpacing(transcript)

	if len(transcript.Utterances) == 0 {
		utils.Log.Warnf("解析必剪ASR结果失败: 未找到utterances")
	}
	return transcript
}
