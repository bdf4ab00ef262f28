package adapters

import (
	"context"
	"path/filepath"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// MediaProcessor 是处理媒体文件的接口
type MediaProcessor interface {
	ProcessFile(filePath string) bool
	IsRecognizedFile(filePath string) bool
}

// CaptionRunner 能为单个媒体文件生成字幕的组件
type CaptionRunner interface {
	CaptionFile(ctx context.Context, path string) (*models.Result, error)
	HasCaption(path string) bool
}

// CaptionAdapter 把 CaptionRunner 适配为 MediaProcessor
type CaptionAdapter struct {
	Runner   CaptionRunner
	OnResult func(path string, result *models.Result, err error)

	ctx context.Context
}

// NewCaptionAdapter 创建新的字幕适配器，ctx 取消后不再处理新文件
func NewCaptionAdapter(ctx context.Context, runner CaptionRunner) *CaptionAdapter {
	return &CaptionAdapter{
		Runner: runner,
		ctx:    ctx,
	}
}

// ProcessFile 处理文件
func (a *CaptionAdapter) ProcessFile(filePath string) bool {
	if a.ctx.Err() != nil {
		return false
	}

	result, err := a.Runner.CaptionFile(a.ctx, filePath)
	if a.OnResult != nil {
		a.OnResult(filePath, result, err)
	}
	if err != nil {
		utils.Error("生成字幕失败 %s: %v", filepath.Base(filePath), err)
		return false
	}
	return true
}

// IsRecognizedFile 检查文件是否已有字幕
func (a *CaptionAdapter) IsRecognizedFile(filePath string) bool {
	return a.Runner.HasCaption(filePath)
}
