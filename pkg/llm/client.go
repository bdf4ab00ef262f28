package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// DefaultBaseURL OpenAI兼容接口默认地址
const DefaultBaseURL = "https://api.openai.com/v1"

var (
	// ErrMissingAPIKey 未配置API Key，需要用户处理
	ErrMissingAPIKey = errors.New("未设置 OPENAI_API_KEY，请在 .env 文件或配置中添加API密钥")
	// ErrEmptyInput 输入文本为空
	ErrEmptyInput = errors.New("文本内容为空")
)

// ChatClient 封装对OpenAI兼容 chat completions 接口的访问
type ChatClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HttpClient *http.Client
}

// ChatMessage 表示聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 表示对API的请求
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// ChatResponse 表示API的响应
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewChatClient 创建一个新的API客户端
func NewChatClient(apiKey, baseURL, model string) *ChatClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChatClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HttpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// NewChatClientFromConfig 根据配置创建客户端
func NewChatClientFromConfig(cfg *models.Config) *ChatClient {
	return NewChatClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
}

// Chat 发送一次对话请求并返回第一条回复内容
func (c *ChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if req.Model == "" {
		req.Model = c.Model
	}

	jsonBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	url := c.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	utils.Debug("发送API请求到 %s (model=%s)", url, req.Model)
	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("API响应中没有生成内容")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// do 发送请求，非200状态码视为错误
func (c *ChatClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func temperature(v float64) *float64 {
	return &v
}
