package asr

import (
	"context"
	"fmt"

	"github.com/ccp-p/shadow-caption/pkg/caption"
	"github.com/ccp-p/shadow-caption/pkg/export"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// ASRProcessor 把识别结果生成字幕并导出
type ASRProcessor struct {
	Config           *models.Config
	Generator        *caption.Generator
	SegmentsExporter *export.SegmentsExporter
	SRTExporter      *export.SRTExporter
}

// NewASRProcessor 创建新的ASR处理器
func NewASRProcessor(config *models.Config, generator *caption.Generator) *ASRProcessor {
	if generator == nil {
		generator = caption.NewGenerator(nil, config)
	}
	return &ASRProcessor{
		Config:           config,
		Generator:        generator,
		SegmentsExporter: export.NewSegmentsExporter(config.CaptionsDir),
		SRTExporter:      export.NewSRTExporter(config.CaptionsDir),
	}
}

// ProcessResults 生成字幕并写入输出文件。写入失败属于硬错误
func (p *ASRProcessor) ProcessResults(ctx context.Context, transcript *models.Transcript, mediaPath string) (map[string]string, *caption.Generation, error) {
	gen, err := p.Generator.GenerateDetailed(ctx, transcript)
	if err != nil {
		return nil, nil, err
	}

	outputFiles, err := p.SegmentsExporter.Export(gen.Document, mediaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("导出字幕失败: %w", err)
	}

	if p.Config.ExportSRT {
		srtPath, err := p.SRTExporter.ExportSRT(gen.Document.Segments, mediaPath)
		if err != nil {
			utils.Warn("导出SRT字幕失败: %v", err)
		} else {
			outputFiles["srt"] = srtPath
		}
	}

	return outputFiles, gen, nil
}
