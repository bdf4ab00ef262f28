package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ccp-p/shadow-caption/pkg/caption"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// SRTExporter 负责将字幕块导出为SRT字幕文件
type SRTExporter struct {
	OutputFolder  string
	MaxLineLength int // 单条字幕的最大字符数，<=0 时不拆分
}

// NewSRTExporter 创建一个新的SRT导出器
func NewSRTExporter(outputFolder string) *SRTExporter {
	return &SRTExporter{
		OutputFolder:  outputFolder,
		MaxLineLength: caption.DefaultMaxLineLength,
	}
}

// GenerateSRTContent 生成SRT格式内容，占位块不输出
func (e *SRTExporter) GenerateSRTContent(segments []models.Segment) string {
	var srtLines []string

	index := 0
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" || segment.IsFiller() {
			continue
		}

		for _, cue := range e.cues(segment) {
			index++
			srtLines = append(srtLines,
				fmt.Sprintf("%d", index),
				fmt.Sprintf("%s --> %s", utils.FormatSRTTimestamp(cue.Start), utils.FormatSRTTimestamp(cue.End)),
				cue.Text,
				"",
			)
		}
	}

	return strings.Join(srtLines, "\n")
}

// cues 把过长的字幕块先按句子、再按长度拆成多条字幕，时间在块内按字符比例分配
func (e *SRTExporter) cues(segment models.Segment) []models.Segment {
	text := strings.TrimSpace(segment.Text)
	if e.MaxLineLength <= 0 || utf8.RuneCountInString(text) <= e.MaxLineLength || segment.Duration() <= 0 {
		return []models.Segment{{Start: segment.Start, End: segment.End, Text: text}}
	}

	var cues []models.Segment
	for _, sent := range caption.SplitBySentence(text, segment.Start, segment.End) {
		if utf8.RuneCountInString(sent.Text) <= e.MaxLineLength {
			cues = append(cues, sent)
			continue
		}
		cues = append(cues, caption.SplitByLength(sent.Text, sent.Start, sent.End, e.MaxLineLength)...)
	}
	return cues
}

// ExportSRT 导出SRT格式字幕文件
func (e *SRTExporter) ExportSRT(segments []models.Segment, mediaPath string) (string, error) {
	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile := filepath.Join(e.OutputFolder, utils.BaseName(mediaPath)+".srt")
	if err := os.WriteFile(outputFile, []byte(e.GenerateSRTContent(segments)), 0644); err != nil {
		return "", fmt.Errorf("写入SRT文件失败: %w", err)
	}

	utils.Info("已导出SRT字幕: %s", outputFile)
	return outputFile, nil
}
