package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

const notesSystemPrompt = "你是一个专业的英语学习笔记整理助手。"

const notesPrompt = `你的任务是将用户提供的视频字幕文本，逐句转换成结构化的学习笔记。
请确保对字幕中的每一句话都生成笔记，不要遗漏任何句子。
不要添加任何额外解释、开场白或总结。

每句话输出一个条目：
序号. 英文句子
短语/句式：提取并讲解 1-2 个常用短语或句式
中文：对整个句子的地道中文翻译
应用：基于该句子的语法或短语，创造 1-2 个日常生活中的英文例句
补充说明：如果有语法点、文化背景或使用场景，请简要说明

字幕文本：
"%s"`

const transformSystemPrompt = "你是一个专业的英语表达助手，擅长将中文转换为地道的美式英语。"

const transformPrompt = `任务：将用户的中文内容转换为地道的美式英语。
1. 不需要逐字翻译，但尽量保留细节
2. 理清用户的内容后用英文重新组织
3. 尽量使用日常词汇、短语动词和习惯用语
4. 每个句子最长不超过20个单词，保持口语化

用户的中文内容：
%s

请直接输出转换后的英文，不要添加任何解释：`

const transformWithNotePrompt = `将用户的中文内容转化为一段地道、自然的美式英语 vlog 独白。
不逐字翻译，模仿笔记模板的语气、句式与词汇风格，但内容围绕用户的中文表达。
每句平均不超过20词，用 ** 标记来自模板的短语或表达。

模板参考：
%s

用户输入：
%s`

// 模板参考最多使用的字符数
const maxNoteTemplateRunes = 2000

// GenerateNotes 把字幕文本整理成逐句学习笔记
func (c *ChatClient) GenerateNotes(ctx context.Context, captionText string) (string, error) {
	if strings.TrimSpace(captionText) == "" {
		return "", ErrEmptyInput
	}

	utils.Info("正在调用大语言模型生成笔记...")
	notes, err := c.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: notesSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(notesPrompt, captionText)},
		},
		MaxTokens:   4000,
		Temperature: temperature(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("生成笔记失败: %w", err)
	}
	return notes, nil
}

// TransformChineseToEnglish 把中文内容改写为地道英文，noteTemplate 非空时模仿其风格
func (c *ChatClient) TransformChineseToEnglish(ctx context.Context, chineseText, noteTemplate string) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(chineseText) == "" {
		return "", ErrEmptyInput
	}

	prompt := fmt.Sprintf(transformPrompt, chineseText)
	if strings.TrimSpace(noteTemplate) != "" {
		runes := []rune(noteTemplate)
		if len(runes) > maxNoteTemplateRunes {
			runes = runes[:maxNoteTemplateRunes]
		}
		prompt = fmt.Sprintf(transformWithNotePrompt, string(runes), chineseText)
	}

	english, err := c.Chat(ctx, ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: "system", Content: transformSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: temperature(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("API调用失败: %w", err)
	}
	if english == "" {
		return "", fmt.Errorf("API调用失败: 返回了空响应")
	}
	return english, nil
}
