package caption

import "errors"

var (
	// ErrNoAudio 音频文件不存在或不可读
	ErrNoAudio = errors.New("音频文件不存在")
	// ErrEmptyTranscript 识别结果为空，没有可生成字幕的内容
	ErrEmptyTranscript = errors.New("识别结果为空")
)
