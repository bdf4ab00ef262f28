package asr

import (
	"strings"
	"unicode"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

// normalizeWordSpacing 下游按原样拼接词文本，引擎输出的词若都不带前导空格，
// 则除第一个词外统一补一个空格。中日韩文字不处理
func normalizeWordSpacing(t *models.Transcript) {
	var (
		total      int
		hasLeading bool
		hasCJK     bool
	)
	for _, u := range t.Utterances {
		for _, w := range u.Words {
			total++
			if w.Word != "" && unicode.IsSpace([]rune(w.Word)[0]) {
				hasLeading = true
			}
			if containsCJK(w.Word) {
				hasCJK = true
			}
		}
	}
	if total < 2 || hasLeading || hasCJK {
		return
	}

	first := true
	for i := range t.Utterances {
		for j := range t.Utterances[i].Words {
			if first {
				first = false
				continue
			}
			t.Utterances[i].Words[j].Word = " " + t.Utterances[i].Words[j].Word
		}
	}
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// attachWords 把整段输出的词按时间分配到各语句段
func attachWords(utterances []models.Utterance, words []models.Word) []models.Utterance {
	if len(words) == 0 {
		return utterances
	}
	if len(utterances) == 0 {
		var sb strings.Builder
		for _, w := range words {
			sb.WriteString(w.Word)
		}
		return []models.Utterance{{
			Text:  strings.TrimSpace(sb.String()),
			Start: words[0].Start,
			End:   words[len(words)-1].End,
			Words: words,
		}}
	}

	idx := 0
	for _, w := range words {
		for idx < len(utterances)-1 && w.Start >= utterances[idx].End {
			idx++
		}
		utterances[idx].Words = append(utterances[idx].Words, w)
	}
	return utterances
}
