package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const punctuationPrompt = `你是英文口语转写的标点恢复助手。
输入是一个JSON字符串数组，每个元素是语音识别输出的一个词（可能带前导空格）。
请只在句子结束的词末尾补上 . ! 或 ?，不要修改、合并、拆分、增加或删除任何元素，保留原有空格。
只输出一个与输入等长的JSON字符串数组，不要输出任何解释。`

const boundaryPrompt = `你是英文口语转写的断句助手。
输入是一个JSON字符串数组，每个元素是语音识别输出的一个词。
请判断句子在哪些词结束，输出这些词的下标（从0开始，升序）。
只输出一个JSON整数数组，不要输出任何解释。`

// RestorePunctuation 调用模型为token补全句末标点，返回与输入等长的数组
func (c *ChatClient) RestorePunctuation(ctx context.Context, tokens []string) ([]string, error) {
	content, err := c.askJSONArray(ctx, punctuationPrompt, tokens)
	if err != nil {
		return nil, err
	}

	var restored []string
	if err := json.Unmarshal([]byte(content), &restored); err != nil {
		return nil, fmt.Errorf("标点恢复响应不是字符串数组: %w", err)
	}
	if len(restored) != len(tokens) {
		return nil, fmt.Errorf("标点恢复响应长度不匹配: 期望 %d, 实际 %d", len(tokens), len(restored))
	}
	return restored, nil
}

// InferBoundaries 调用模型推断句末token下标
func (c *ChatClient) InferBoundaries(ctx context.Context, tokens []string) ([]int, error) {
	content, err := c.askJSONArray(ctx, boundaryPrompt, tokens)
	if err != nil {
		return nil, err
	}

	var indices []int
	if err := json.Unmarshal([]byte(content), &indices); err != nil {
		return nil, fmt.Errorf("边界推断响应不是整数数组: %w", err)
	}
	return indices, nil
}

func (c *ChatClient) askJSONArray(ctx context.Context, system string, tokens []string) (string, error) {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("序列化token失败: %w", err)
	}

	reply, err := c.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: string(payload)},
		},
		Temperature: temperature(0),
	})
	if err != nil {
		return "", err
	}
	return extractJSONArray(reply)
}

// extractJSONArray 从模型回复中取出JSON数组，兼容 ```json 代码块
func extractJSONArray(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("响应中没有JSON数组: %.80q", reply)
	}
	return reply[start : end+1], nil
}
