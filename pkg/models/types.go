package models

// NoCaptionText 静音/非人声区间的占位字幕文本
const NoCaptionText = "[no caption]"

// Word 识别引擎输出的词级时间戳
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Utterance 识别引擎输出的一个语句段，Words 可能为空（粗粒度识别服务）
type Utterance struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript 一次识别的完整结果
type Transcript struct {
	Language   string      `json:"language,omitempty"`
	Duration   *float64    `json:"duration,omitempty"` // 媒体总时长（秒），未知时为nil
	Utterances []Utterance `json:"utterances"`
}

// HasWordTimestamps 判断是否至少有一个语句段带有词级时间戳
func (t *Transcript) HasWordTimestamps() bool {
	if t == nil {
		return false
	}
	for _, u := range t.Utterances {
		if len(u.Words) > 0 {
			return true
		}
	}
	return false
}

// Token 展平后的最小计时单元（大致对应一个单词）
type Token struct {
	Text  string
	Start float64
	End   float64
}

// Segment 字幕块：句子或"无字幕"占位块
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// IsFiller 是否为静音占位块
func (s Segment) IsFiller() bool {
	return s.Text == NoCaptionText
}

// Duration 字幕块时长
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// CaptionDocument 持久化的字幕产物，字段名与下游跟读功能约定一致
type CaptionDocument struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// MediaEntry 媒体列表中的一项
type MediaEntry struct {
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	HasSegments bool   `json:"has_segments"`
	MediaType   string `json:"media_type"` // audio / video
}
