package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ccp-p/shadow-caption/pkg/export"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// MediaFile 表示一个媒体文件
type MediaFile struct {
	Path    string    // 文件路径
	Name    string    // 文件名
	Ext     string    // 文件扩展名
	Size    int64     // 文件大小（字节）
	ModTime time.Time // 修改时间
	IsVideo bool      // 是否为视频文件
	IsAudio bool      // 是否为音频文件
}

// MediaType 返回 "audio" 或 "video"
func (f MediaFile) MediaType() string {
	if f.IsAudio {
		return "audio"
	}
	return "video"
}

// MediaScanner 用于扫描媒体文件
type MediaScanner struct {
	AudioExtensions []string
	VideoExtensions []string
}

// NewMediaScanner 创建新的媒体扫描器
func NewMediaScanner() *MediaScanner {
	return &MediaScanner{
		AudioExtensions: []string{".mp3", ".m4a", ".wav"},
		VideoExtensions: []string{".mp4", ".webm", ".mkv"},
	}
}

// mimeTypes 媒体流接口使用的内容类型
var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
}

// MimeType 根据扩展名返回内容类型，未知类型返回 application/octet-stream
func MimeType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// IsMedia 判断文件扩展名是否为支持的媒体类型
func (s *MediaScanner) IsMedia(path string) bool {
	return s.isAudio(path) || s.isVideo(path)
}

func (s *MediaScanner) isAudio(path string) bool {
	return hasExt(path, s.AudioExtensions)
}

func (s *MediaScanner) isVideo(path string) bool {
	return hasExt(path, s.VideoExtensions)
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ScanDirectory 扫描指定目录中的媒体文件（非递归），按修改时间从新到旧排序
func (s *MediaScanner) ScanDirectory(dir string) ([]MediaFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	mediaFiles := make([]MediaFile, 0, len(entries))
	for _, entry := range entries {
		// 跳过目录和隐藏文件
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if !s.IsMedia(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			utils.Warn("获取文件信息失败: %v", err)
			continue
		}

		mediaFiles = append(mediaFiles, MediaFile{
			Path:    path,
			Name:    entry.Name(),
			Ext:     strings.ToLower(filepath.Ext(path)),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsVideo: s.isVideo(path),
			IsAudio: s.isAudio(path),
		})
	}

	sort.SliceStable(mediaFiles, func(i, j int) bool {
		return mediaFiles[i].ModTime.After(mediaFiles[j].ModTime)
	})

	utils.Debug("扫描完成，%s 中共找到 %d 个媒体文件", dir, len(mediaFiles))
	return mediaFiles, nil
}

// FilterUncaptioned 过滤出还没有字幕产物的文件
func (s *MediaScanner) FilterUncaptioned(files []MediaFile, captionsDir string) []MediaFile {
	exporter := export.NewSegmentsExporter(captionsDir)

	var pending []MediaFile
	for _, file := range files {
		if !exporter.Exists(utils.BaseName(file.Name)) {
			pending = append(pending, file)
		}
	}
	return pending
}

// ListMedia 列出媒体目录中的文件，并标记是否已有字幕
func ListMedia(videosDir, captionsDir string) ([]models.MediaEntry, error) {
	files, err := NewMediaScanner().ScanDirectory(videosDir)
	if err != nil {
		return nil, err
	}

	exporter := export.NewSegmentsExporter(captionsDir)
	entries := make([]models.MediaEntry, 0, len(files))
	for _, f := range files {
		title := utils.BaseName(f.Name)
		entries = append(entries, models.MediaEntry{
			Filename:    f.Name,
			Title:       title,
			HasSegments: exporter.Exists(title),
			MediaType:   f.MediaType(),
		})
	}
	return entries, nil
}
