package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// ErrSegmentsNotFound 媒体还没有字幕产物
var ErrSegmentsNotFound = errors.New("字幕文件不存在")

// SegmentsExporter 负责写入和读取跟读用的字幕产物：
// <base>_segments.json 与纯文本转写 <base>.txt
type SegmentsExporter struct {
	CaptionsDir string
}

// NewSegmentsExporter 创建字幕产物导出器
func NewSegmentsExporter(captionsDir string) *SegmentsExporter {
	return &SegmentsExporter{CaptionsDir: captionsDir}
}

// SegmentsPath 字幕JSON路径
func (e *SegmentsExporter) SegmentsPath(baseName string) string {
	return filepath.Join(e.CaptionsDir, baseName+"_segments.json")
}

// TranscriptPath 纯文本转写路径
func (e *SegmentsExporter) TranscriptPath(baseName string) string {
	return filepath.Join(e.CaptionsDir, baseName+".txt")
}

// Export 写入转写文本和字幕JSON，返回输出文件路径
func (e *SegmentsExporter) Export(doc *models.CaptionDocument, mediaPath string) (map[string]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("字幕文档为空")
	}
	if err := os.MkdirAll(e.CaptionsDir, 0755); err != nil {
		return nil, fmt.Errorf("创建字幕目录失败: %w", err)
	}

	baseName := utils.BaseName(mediaPath)
	txtPath := e.TranscriptPath(baseName)
	if err := os.WriteFile(txtPath, []byte(doc.Text), 0644); err != nil {
		return nil, fmt.Errorf("写入转写文本失败: %w", err)
	}

	segments := doc.Segments
	if segments == nil {
		segments = []models.Segment{}
	}
	jsonPath := e.SegmentsPath(baseName)
	if err := utils.SaveJSONFile(jsonPath, models.CaptionDocument{
		Text:     doc.Text,
		Language: doc.Language,
		Segments: segments,
	}); err != nil {
		return nil, fmt.Errorf("写入字幕文件失败: %w", err)
	}

	utils.Info("已保存带时间戳的字幕: %s (%d 个字幕块)", jsonPath, len(segments))
	return map[string]string{"txt": txtPath, "json": jsonPath}, nil
}

// Load 读取已保存的字幕产物
func (e *SegmentsExporter) Load(baseName string) (*models.CaptionDocument, error) {
	path := e.SegmentsPath(baseName)
	if !utils.CheckFileExists(path) {
		return nil, ErrSegmentsNotFound
	}
	var doc models.CaptionDocument
	if err := utils.LoadJSONInto(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Exists 是否已有字幕产物
func (e *SegmentsExporter) Exists(baseName string) bool {
	return utils.CheckFileExists(e.SegmentsPath(baseName))
}
