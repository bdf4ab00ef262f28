package caption

import (
	"sort"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

// Aggregate 将按语句段分组的识别结果展平为一个按时间排序的token序列，
// 同时返回用单个空格拼接的完整转写文本。
// 没有词级时间戳的语句段只贡献转写文本；文本为空的语句段不参与拼接。
func Aggregate(utterances []models.Utterance) ([]models.Token, string) {
	var (
		tokens []models.Token
		parts  []string
	)

	for _, u := range utterances {
		if text := strings.TrimSpace(u.Text); text != "" {
			parts = append(parts, text)
		}
		for _, w := range u.Words {
			end := w.End
			if end < w.Start {
				end = w.Start
			}
			tokens = append(tokens, models.Token{Text: w.Word, Start: w.Start, End: end})
		}
	}

	// 引擎输出本应有序，这里保持相同起点的原始顺序
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Start < tokens[j].Start
	})

	return tokens, strings.TrimSpace(strings.Join(parts, " "))
}

// TokenTexts 返回token的纯文本视图
func TokenTexts(tokens []models.Token) []string {
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	return texts
}
