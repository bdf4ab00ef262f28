package caption

import (
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// BuildSentences 按边界把token切分为句子。
// 每句由上一边界之后到当前边界（含）的token文本直接拼接后去除首尾空白；
// 最后一个边界之后剩余的token组成末句。空文本的切片被丢弃。
// appendTerminal 为true时，缺少 . ! ? 结尾的句子补一个句号。
// 返回的ID只是临时编号，最终编号由 Reconcile 统一分配。
func BuildSentences(tokens []models.Token, boundaries []int, appendTerminal bool) []models.Segment {
	boundaries = SanitizeBoundaries(boundaries, len(tokens))
	sentences := make([]models.Segment, 0, len(boundaries)+1)

	emit := func(span []models.Token) {
		if len(span) == 0 {
			return
		}
		var sb strings.Builder
		for _, t := range span {
			sb.WriteString(t.Text)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			return
		}
		if appendTerminal && !endsWithAny(text, ".!?") {
			text += "."
		}
		sentences = append(sentences, models.Segment{
			ID:    len(sentences),
			Start: utils.RoundTime(span[0].Start),
			End:   utils.RoundTime(span[len(span)-1].End),
			Text:  text,
		})
	}

	start := 0
	for _, b := range boundaries {
		emit(tokens[start : b+1])
		start = b + 1
	}
	if start < len(tokens) {
		emit(tokens[start:])
	}

	return sentences
}
