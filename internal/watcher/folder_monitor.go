package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// FileEventHandler 是处理文件事件的接口
type FileEventHandler interface {
	OnFileCreated(filePath string)
	OnFileModified(filePath string)
	OnFileDeleted(filePath string)
}

// FolderMonitor 监控文件夹变化，创建和写入事件经过防抖后才交给处理器
type FolderMonitor struct {
	watcher        *fsnotify.Watcher
	folderPath     string
	fileExtensions []string
	handler        FileEventHandler
	debounceTime   time.Duration
	pendingFiles   map[string]*time.Timer
	mutex          sync.Mutex
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewFolderMonitor 创建新的文件夹监控器
func NewFolderMonitor(folderPath string, extensions []string, handler FileEventHandler, debounceTime time.Duration) (*FolderMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &FolderMonitor{
		watcher:        watcher,
		folderPath:     folderPath,
		fileExtensions: extensions,
		handler:        handler,
		debounceTime:   debounceTime,
		pendingFiles:   make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start 开始监控文件夹
func (m *FolderMonitor) Start() error {
	if err := utils.EnsureDirExists(m.folderPath); err != nil {
		return err
	}

	if err := m.watcher.Add(m.folderPath); err != nil {
		return fmt.Errorf("添加监控文件夹失败: %w", err)
	}

	go m.watchLoop()

	utils.Info("开始监控文件夹: %s", m.folderPath)
	return nil
}

// Stop 停止监控，可重复调用
func (m *FolderMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.watcher.Close()

		// 取消所有待处理的文件定时器
		m.mutex.Lock()
		for path, timer := range m.pendingFiles {
			timer.Stop()
			delete(m.pendingFiles, path)
		}
		m.mutex.Unlock()

		utils.Info("停止监控文件夹: %s", m.folderPath)
	})
}

// watchLoop 监控循环
func (m *FolderMonitor) watchLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleFileEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			utils.Error("监控文件夹时出错: %v", err)
		}
	}
}

// 处理文件事件
func (m *FolderMonitor) handleFileEvent(event fsnotify.Event) {
	filePath := event.Name

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		m.cancelPending(filePath)
		if m.handler != nil && m.hasTargetExt(filePath) {
			m.handler.OnFileDeleted(filePath)
		}
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !m.isTargetFile(filePath) {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 重置防抖定时器
	if timer, exists := m.pendingFiles[filePath]; exists {
		timer.Stop()
		if m.handler != nil {
			go m.handler.OnFileModified(filePath)
		}
	}
	m.pendingFiles[filePath] = time.AfterFunc(m.debounceTime, func() {
		m.processFile(filePath)
	})

	utils.Debug("检测到文件变化: %s", filePath)
}

func (m *FolderMonitor) cancelPending(filePath string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if timer, exists := m.pendingFiles[filePath]; exists {
		timer.Stop()
		delete(m.pendingFiles, filePath)
	}
}

// 判断是否为目标类型的常规文件
func (m *FolderMonitor) isTargetFile(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil || fileInfo.IsDir() {
		return false
	}
	return m.hasTargetExt(filePath)
}

func (m *FolderMonitor) hasTargetExt(filePath string) bool {
	if strings.HasPrefix(filepath.Base(filePath), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, targetExt := range m.fileExtensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}

// 防抖结束后处理文件
func (m *FolderMonitor) processFile(filePath string) {
	m.mutex.Lock()
	delete(m.pendingFiles, filePath)
	m.mutex.Unlock()

	select {
	case <-m.stopChan:
		return
	default:
	}

	if !utils.CheckFileExists(filePath) {
		return
	}

	utils.Info("准备处理文件: %s", filePath)
	if m.handler != nil {
		m.handler.OnFileCreated(filePath)
	}
}

// FileMovementHandler 把投递目录中的文件移动到目标文件夹
type FileMovementHandler struct {
	targetFolder   string
	processedFiles map[string]bool
	mutex          sync.Mutex
}

// NewFileMovementHandler 创建文件移动处理器
func NewFileMovementHandler(targetFolder string) (*FileMovementHandler, error) {
	if err := utils.EnsureDirExists(targetFolder); err != nil {
		return nil, err
	}

	return &FileMovementHandler{
		targetFolder:   targetFolder,
		processedFiles: make(map[string]bool),
	}, nil
}

// OnFileCreated 处理文件创建事件
func (h *FileMovementHandler) OnFileCreated(filePath string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.processedFiles[filePath] {
		return
	}

	if _, err := h.moveFile(filePath); err != nil {
		utils.Error("%v", err)
		return
	}
	h.processedFiles[filePath] = true
}

// OnFileModified 修改事件由防抖处理，这里不做额外操作
func (h *FileMovementHandler) OnFileModified(filePath string) {}

// OnFileDeleted 处理文件删除事件
func (h *FileMovementHandler) OnFileDeleted(filePath string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.processedFiles, filePath)
}

// moveFile 将文件移动到目标文件夹，重名时追加时间戳
func (h *FileMovementHandler) moveFile(sourcePath string) (string, error) {
	filename := filepath.Base(sourcePath)
	targetPath := filepath.Join(h.targetFolder, filename)

	if utils.CheckFileExists(targetPath) {
		ext := filepath.Ext(filename)
		name := strings.TrimSuffix(filename, ext)
		timestamp := time.Now().Format("20060102150405")
		targetPath = filepath.Join(h.targetFolder, fmt.Sprintf("%s_%s%s", name, timestamp, ext))
	}

	if err := os.Rename(sourcePath, targetPath); err != nil {
		return "", fmt.Errorf("移动文件失败 %s -> %s: %w", sourcePath, targetPath, err)
	}

	utils.Info("文件已移动: %s -> %s", sourcePath, targetPath)
	return targetPath, nil
}

// StartFolderMonitoring 开始监控投递目录并把媒体文件移动到目标目录
func StartFolderMonitoring(sourceFolder, targetFolder string, extensions []string, debounce time.Duration) (func(), error) {
	handler, err := NewFileMovementHandler(targetFolder)
	if err != nil {
		return nil, err
	}

	monitor, err := NewFolderMonitor(sourceFolder, extensions, handler, debounce)
	if err != nil {
		return nil, err
	}

	if err := monitor.Start(); err != nil {
		monitor.Stop()
		return nil, err
	}

	return monitor.Stop, nil
}
