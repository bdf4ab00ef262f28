package models

// Result 单个媒体文件的字幕生成结果统计
type Result struct {
	MediaPath     string            `json:"media_path"`      // 处理的媒体路径
	Service       string            `json:"service"`         // 使用的ASR服务
	Strategy      string            `json:"strategy"`        // 断句策略
	OutputFiles   map[string]string `json:"output_files"`    // 输出文件路径
	SentenceCount int               `json:"sentence_count"`  // 句子数
	SegmentCount  int               `json:"segment_count"`   // 字幕块总数（含占位块）
	DurationMs    int64             `json:"duration_ms"`     // 媒体时长（毫秒）
	ProcessTimeMs int64             `json:"process_time_ms"` // 处理时间（毫秒）
}
