package processor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// ProgressCallback 进度回调函数类型
type ProgressCallback func(current, total int, message string)

// MediaInfo 存储媒体文件的详细信息
type MediaInfo struct {
	Path       string  // 文件路径
	Name       string  // 文件名
	Format     string  // 文件格式
	Duration   float64 // 时长(秒)
	SampleRate int     // 采样率(Hz)
	Channels   int     // 声道数
	Bitrate    int     // 比特率(kbps)
	Size       int64   // 文件大小(字节)
}

// MediaProcessor 负责调用 ffmpeg/ffprobe 处理媒体文件
type MediaProcessor struct {
	OutputDir        string // 提取音频的输出目录
	FFmpegPath       string
	FFprobePath      string
	ProgressCallback ProgressCallback
}

// NewMediaProcessor 创建新的媒体处理器
func NewMediaProcessor(outputDir string) *MediaProcessor {
	return &MediaProcessor{
		OutputDir:   outputDir,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// ProbeDuration 用 ffprobe 读取媒体时长（秒）
func (p *MediaProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx,
		p.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("获取媒体时长失败: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("解析媒体时长失败: %w", err)
	}
	return duration, nil
}

// GetMediaInfo 获取媒体文件信息
func (p *MediaProcessor) GetMediaInfo(ctx context.Context, filePath string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx,
		p.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate:stream=sample_rate,channels",
		"-select_streams", "a:0",
		"-of", "default=noprint_wrappers=1",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("获取媒体信息失败: %w", err)
	}

	info := parseProbeOutput(string(output))
	info.Path = filePath
	info.Name = filepath.Base(filePath)
	info.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if fi, err := os.Stat(filePath); err == nil {
		info.Size = fi.Size()
	}
	return info, nil
}

// parseProbeOutput 解析 key=value 形式的 ffprobe 输出，N/A 字段保持零值
func parseProbeOutput(output string) *MediaInfo {
	info := &MediaInfo{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || value == "N/A" {
			continue
		}
		switch key {
		case "duration":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				info.Duration = v
			}
		case "sample_rate":
			if v, err := strconv.Atoi(value); err == nil {
				info.SampleRate = v
			}
		case "channels":
			if v, err := strconv.Atoi(value); err == nil {
				info.Channels = v
			}
		case "bit_rate":
			if v, err := strconv.Atoi(value); err == nil {
				info.Bitrate = v / 1000 // 转换为kbps
			}
		}
	}
	return info
}

// ExtractAudioFromVideo 从视频文件提取 mp3 音频，已存在时直接复用
func (p *MediaProcessor) ExtractAudioFromVideo(ctx context.Context, videoPath string) (string, error) {
	if !utils.CheckFileExists(videoPath) {
		return "", fmt.Errorf("文件不存在: %s: %w", videoPath, os.ErrNotExist)
	}

	audioPath := p.AudioPathFor(videoPath)
	if err := utils.EnsureDirExists(filepath.Dir(audioPath)); err != nil {
		return "", err
	}

	if utils.CheckFileExists(audioPath) {
		utils.Info("音频已存在: %s", audioPath)
		return audioPath, nil
	}

	p.report(0, 1, "准备提取音频")
	cmd := exec.CommandContext(ctx,
		p.FFmpegPath,
		"-i", videoPath,
		"-vn",
		"-q:a", "0",
		"-map", "a",
		audioPath,
		"-y", // 覆盖已存在的文件
	)

	utils.Info("正在从视频提取音频: %s", filepath.Base(videoPath))
	if out, err := cmd.CombinedOutput(); err != nil {
		p.report(1, 1, fmt.Sprintf("提取失败: %v", err))
		utils.Debug("ffmpeg 输出: %s", string(out))
		return "", fmt.Errorf("音频提取失败: %w", err)
	}

	if !utils.CheckFileExists(audioPath) {
		p.report(1, 1, "提取失败: 文件不存在")
		return "", fmt.Errorf("提取的音频文件不存在: %s", audioPath)
	}

	p.report(1, 1, "提取完成")
	utils.Info("成功从视频提取音频: %s -> %s", videoPath, audioPath)
	return audioPath, nil
}

// AudioPathFor 返回视频对应的音频输出路径，OutputDir 为空时放在视频旁边
func (p *MediaProcessor) AudioPathFor(videoPath string) string {
	outputDir := p.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(videoPath)
	}
	return filepath.Join(outputDir, utils.BaseName(videoPath)+".mp3")
}

func (p *MediaProcessor) report(current, total int, message string) {
	if p.ProgressCallback != nil {
		p.ProgressCallback(current, total, message)
	}
}
