package caption

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// 长句拆分参数
const (
	DefaultMaxSegmentDuration = 8.0
	commaSplitMinDuration     = 5.0 // 估算时长超过该值且含逗号的句子按逗号再拆
	commaChunkMaxWords        = 15  // 逗号片段合并后的单词数上限（不含）
	forcedChunkWords          = 10  // 无标点时按固定单词数拆分
	DefaultMaxLineLength      = 80
)

// 句末标点后跟空白处断开
var sentenceBreak = regexp.MustCompile(`[.!?]\s+`)

// SplitLongSegment 把没有词级时间戳、时长超过 maxDuration 的文本段拆成多个子段。
// 依次按句末标点、逗号、固定单词数拆分，时间按字符数比例分配，最后一段的结束时间等于 end。
func SplitLongSegment(text string, start, end, maxDuration float64) []models.Segment {
	duration := end - start
	if duration <= maxDuration {
		return []models.Segment{{Start: start, End: end, Text: text}}
	}

	textLen := utf8.RuneCountInString(text)
	var pieces []string
	for _, sent := range splitAfterSentenceEnd(text) {
		estimated := float64(utf8.RuneCountInString(sent)) / float64(textLen) * duration
		if estimated > commaSplitMinDuration && strings.Contains(sent, ",") {
			pieces = append(pieces, mergeCommaParts(sent)...)
		} else {
			pieces = append(pieces, sent)
		}
	}

	if len(pieces) <= 1 {
		pieces = chunkWords(text, forcedChunkWords)
	}
	if len(pieces) == 0 {
		return []models.Segment{{Start: start, End: end, Text: text}}
	}

	return distribute(pieces, start, end)
}

// SplitBySentence 严格按 . ! ? 拆分并保留标点，时间按字符比例分配
func SplitBySentence(text string, start, end float64) []models.Segment {
	text = strings.TrimSpace(text)

	var sentences []string
	current := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[current : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			current = i + 1
		}
	}
	if current < len(text) {
		if s := strings.TrimSpace(text[current:]); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) <= 1 {
		if len(sentences) == 1 {
			text = sentences[0]
		}
		return []models.Segment{{Start: start, End: end, Text: text}}
	}
	return distribute(sentences, start, end)
}

// SplitByLength 没有句子边界时按最大字符数拆分，maxLength<=0 时使用默认值
func SplitByLength(text string, start, end float64, maxLength int) []models.Segment {
	if maxLength <= 0 {
		maxLength = DefaultMaxLineLength
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if length+wordLen+1 > maxLength && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			length = wordLen
			continue
		}
		current = append(current, word)
		length += wordLen + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	if len(chunks) == 0 {
		return []models.Segment{{Start: start, End: end, Text: strings.TrimSpace(text)}}
	}
	return distribute(chunks, start, end)
}

// splitAfterSentenceEnd 在句末标点之后、空白处切分，标点保留在前一句
func splitAfterSentenceEnd(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last : loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// mergeCommaParts 按逗号拆开后贪心合并，每块少于 commaChunkMaxWords 个单词。
// 被切开处的逗号留在前一块末尾，拼接后与原句一致
func mergeCommaParts(sent string) []string {
	var (
		chunks  []string
		current string
		started bool
	)
	for _, part := range strings.Split(sent, ",") {
		candidate := part
		if started {
			candidate = current + "," + part
		}
		if len(strings.Fields(candidate)) < commaChunkMaxWords {
			current = candidate
			started = true
			continue
		}
		if s := strings.TrimSpace(current); started && s != "" {
			chunks = append(chunks, s+",")
		}
		current = part
		started = true
	}
	if s := strings.TrimSpace(current); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func chunkWords(text string, size int) []string {
	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words); i += size {
		j := i + size
		if j > len(words) {
			j = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:j], " "))
	}
	return chunks
}

// distribute 按字符数比例给每个片段分配时间
func distribute(pieces []string, start, end float64) []models.Segment {
	duration := end - start
	totalChars := 0
	for _, p := range pieces {
		totalChars += utf8.RuneCountInString(p)
	}

	segments := make([]models.Segment, 0, len(pieces))
	current := start
	for i, p := range pieces {
		var pieceDuration float64
		if totalChars > 0 {
			pieceDuration = float64(utf8.RuneCountInString(p)) / float64(totalChars) * duration
		} else {
			pieceDuration = duration / float64(len(pieces))
		}
		pieceEnd := current + pieceDuration
		if i == len(pieces)-1 {
			pieceEnd = end
		}
		segments = append(segments, models.Segment{
			ID:    i,
			Start: utils.RoundTime(current),
			End:   utils.RoundTime(pieceEnd),
			Text:  strings.TrimSpace(p),
		})
		current = pieceEnd
	}
	return segments
}
