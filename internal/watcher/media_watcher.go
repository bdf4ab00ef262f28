package watcher

import (
	"sync"
	"time"

	"github.com/ccp-p/shadow-caption/internal/adapters"
	"github.com/ccp-p/shadow-caption/internal/ui"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/scanner"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// DefaultDebounce 文件写入完成的等待时间
const DefaultDebounce = 5 * time.Second

// MediaHandler 新媒体文件出现时自动生成字幕
type MediaHandler struct {
	processor       adapters.MediaProcessor
	progressManager *ui.ProgressManager

	mutex      sync.Mutex
	processing map[string]bool
	wg         sync.WaitGroup
}

// NewMediaHandler 创建媒体文件处理器
func NewMediaHandler(processor adapters.MediaProcessor, progressManager *ui.ProgressManager) *MediaHandler {
	return &MediaHandler{
		processor:       processor,
		progressManager: progressManager,
		processing:      make(map[string]bool),
	}
}

// OnFileCreated 已有字幕或正在处理的文件会被跳过
func (h *MediaHandler) OnFileCreated(filePath string) {
	if h.processor.IsRecognizedFile(filePath) {
		utils.Debug("文件已有字幕，跳过: %s", filePath)
		return
	}

	h.mutex.Lock()
	if h.processing[filePath] {
		h.mutex.Unlock()
		return
	}
	h.processing[filePath] = true
	h.wg.Add(1)
	h.mutex.Unlock()

	defer func() {
		h.mutex.Lock()
		delete(h.processing, filePath)
		h.mutex.Unlock()
		h.wg.Done()
	}()

	barID := "watch_" + filePath
	h.progressManager.CreateProgressBar(barID, 1, "字幕 "+utils.BaseName(filePath), "处理中...")
	if h.processor.ProcessFile(filePath) {
		h.progressManager.CompleteProgressBar(barID, "完成")
	} else {
		h.progressManager.CompleteProgressBar(barID, "失败")
	}
}

// OnFileModified 修改事件由防抖处理
func (h *MediaHandler) OnFileModified(filePath string) {}

// OnFileDeleted 删除事件无需处理，字幕产物保留
func (h *MediaHandler) OnFileDeleted(filePath string) {
	utils.Debug("媒体文件已删除: %s", filePath)
}

// Wait 等待正在处理的文件完成
func (h *MediaHandler) Wait() {
	h.wg.Wait()
}

// MediaWatcher 监控媒体目录（和可选的投递目录）
type MediaWatcher struct {
	config          *models.Config
	handler         *MediaHandler
	progressManager *ui.ProgressManager
	debounce        time.Duration
	stopFuncs       []func()
}

// NewMediaWatcher 创建媒体文件监控器
func NewMediaWatcher(config *models.Config, processor adapters.MediaProcessor, progressManager *ui.ProgressManager) *MediaWatcher {
	return &MediaWatcher{
		config:          config,
		handler:         NewMediaHandler(processor, progressManager),
		progressManager: progressManager,
		debounce:        DefaultDebounce,
	}
}

// SetDebounce 设置防抖时间
func (w *MediaWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Extensions 监控的媒体文件扩展名
func Extensions() []string {
	s := scanner.NewMediaScanner()
	exts := make([]string, 0, len(s.AudioExtensions)+len(s.VideoExtensions))
	exts = append(exts, s.VideoExtensions...)
	return append(exts, s.AudioExtensions...)
}

// Start 启动监控
func (w *MediaWatcher) Start() error {
	monitor, err := NewFolderMonitor(w.config.VideosDir, Extensions(), w.handler, w.debounce)
	if err != nil {
		return err
	}
	if err := monitor.Start(); err != nil {
		monitor.Stop()
		return err
	}
	w.stopFuncs = append(w.stopFuncs, monitor.Stop)

	// 投递目录中的文件移动到媒体目录后由上面的监控接手
	if w.config.InboxDir != "" {
		stopInbox, err := StartFolderMonitoring(w.config.InboxDir, w.config.VideosDir, Extensions(), w.debounce)
		if err != nil {
			w.Stop()
			return err
		}
		w.stopFuncs = append(w.stopFuncs, stopInbox)
	}

	utils.Info("媒体文件监控已启动")
	return nil
}

// ProcessExisting 为媒体目录中已有但没有字幕的文件生成字幕，返回处理的文件数
func (w *MediaWatcher) ProcessExisting() (int, error) {
	s := scanner.NewMediaScanner()
	files, err := s.ScanDirectory(w.config.VideosDir)
	if err != nil {
		return 0, err
	}

	pending := s.FilterUncaptioned(files, w.config.CaptionsDir)
	for _, f := range pending {
		w.handler.OnFileCreated(f.Path)
	}
	return len(pending), nil
}

// Stop 停止监控并等待正在处理的文件
func (w *MediaWatcher) Stop() {
	for i := len(w.stopFuncs) - 1; i >= 0; i-- {
		w.stopFuncs[i]()
	}
	w.stopFuncs = nil
	w.handler.Wait()
	utils.Info("媒体文件监控已停止")
}
