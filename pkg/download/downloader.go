package download

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/shadow-caption/pkg/utils"
)

const (
	// AudioFormat yt-dlp 音频格式选择
	AudioFormat = "bestaudio/best"
	// VideoFormat yt-dlp 视频格式选择，优先 mp4+m4a
	VideoFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
)

// Runner 执行外部命令并返回标准输出
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner 使用 os/exec 执行命令
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// Downloader 使用 yt-dlp 下载音频或视频到媒体目录
type Downloader struct {
	OutputDir string
	YtDlpPath string
	Run       Runner
	Retry     *utils.ErrorHandler

	wg sync.WaitGroup
}

// NewDownloader 创建下载器，失败时固定间隔 3 秒重试 3 次
func NewDownloader(outputDir string) *Downloader {
	return &Downloader{
		OutputDir: outputDir,
		YtDlpPath: "yt-dlp",
		Run:       ExecRunner,
		Retry:     utils.NewFixedErrorHandler(3, 3),
	}
}

// DownloadAudio 下载并转换为 192k mp3，返回音频路径
func (d *Downloader) DownloadAudio(ctx context.Context, url string) (string, error) {
	args := []string{
		"-f", AudioFormat,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
	}
	return d.download(ctx, "下载音频", url, ".mp3", args)
}

// DownloadVideo 下载完整视频（合并为 mp4），返回视频路径
func (d *Downloader) DownloadVideo(ctx context.Context, url string) (string, error) {
	args := []string{
		"-f", VideoFormat,
		"--merge-output-format", "mp4",
	}
	return d.download(ctx, "下载视频", url, ".mp4", args)
}

func (d *Downloader) download(ctx context.Context, operation, url, ext string, args []string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("%s失败: URL为空", operation)
	}
	if err := utils.EnsureDirExists(d.OutputDir); err != nil {
		return "", err
	}

	args = append(args,
		"--no-playlist",
		"--quiet",
		"-o", filepath.Join(d.OutputDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	)

	var path string
	err := d.Retry.RetryContext(ctx, operation, func(ctx context.Context) error {
		out, err := d.Run(ctx, d.YtDlpPath, args...)
		if err != nil {
			return fmt.Errorf("yt-dlp 执行失败: %w", err)
		}

		path = lastLine(string(out))
		if path == "" || !utils.CheckFileExists(path) {
			return fmt.Errorf("下载后未找到文件: %q", path)
		}
		if !strings.EqualFold(filepath.Ext(path), ext) {
			utils.Warn("下载文件扩展名不是 %s: %s", ext, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	utils.Info("%s成功: %s", operation, path)
	return path, nil
}

// DownloadVideoAsync 在后台下载完整视频，结果只写日志，返回任务ID
func (d *Downloader) DownloadVideoAsync(url string) string {
	taskID := uuid.New().String()
	log := utils.WithFields(logrus.Fields{"task": taskID, "url": url})
	log.Info("开始后台下载视频")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("后台下载视频发生panic: %v", r)
			}
		}()

		path, err := d.DownloadVideo(context.Background(), url)
		if err != nil {
			log.Warnf("后台下载视频失败: %v", err)
			return
		}
		log.WithField("path", path).Info("后台下载视频完成")
	}()

	return taskID
}

// Wait 等待所有后台下载结束
func (d *Downloader) Wait() {
	d.wg.Wait()
}

// lastLine 返回输出中最后一个非空行
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
