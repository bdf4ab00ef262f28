package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/ccp-p/shadow-caption/internal/adapters"
	"github.com/ccp-p/shadow-caption/internal/ui"
	"github.com/ccp-p/shadow-caption/internal/watcher"
	"github.com/ccp-p/shadow-caption/pkg/asr"
	"github.com/ccp-p/shadow-caption/pkg/caption"
	"github.com/ccp-p/shadow-caption/pkg/download"
	"github.com/ccp-p/shadow-caption/pkg/llm"
	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/processor"
	"github.com/ccp-p/shadow-caption/pkg/scanner"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// BatchResult 批量处理中单个文件的结果
type BatchResult struct {
	Path   string
	Result *models.Result
	Err    error
}

// ProcessorController 处理器控制器，协调各个组件工作
type ProcessorController struct {
	// 配置
	Config *models.Config

	// UI组件
	ProgressManager *ui.ProgressManager

	// 处理组件
	ASRSelector    *asr.ASRSelector
	ASROptions     asr.Options
	ASRProcessor   *asr.ASRProcessor
	MediaProcessor *processor.MediaProcessor
	Downloader     *download.Downloader
	Errors         *utils.ErrorHandler // 提取音频和识别阶段的错误统计

	// 上下文控制
	ctx        context.Context
	cancelFunc context.CancelFunc

	// 状态数据
	Stats struct {
		StartTime       time.Time
		TotalFiles      int
		SuccessfulFiles int
		FailedFiles     int
	}

	// 资源管理
	TempDir string
	cleanup []func() // 清理函数列表
	mu      sync.Mutex
}

// NewProcessorController 根据配置创建处理器控制器
func NewProcessorController(cfg *models.Config) (*ProcessorController, error) {
	if cfg == nil {
		cfg = models.NewDefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pc := &ProcessorController{
		Config:          cfg,
		ProgressManager: ui.NewProgressManager(cfg.ShowProgress),
		ctx:             ctx,
		cancelFunc:      cancel,
	}
	pc.Stats.StartTime = time.Now()

	tempDir := cfg.TempDir
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "shadow-caption")
		if err != nil {
			cancel()
			return nil, fmt.Errorf("创建临时目录失败: %w", err)
		}
		tempDir = dir
		pc.addCleanup(func() { os.RemoveAll(dir) })
	} else if err := utils.EnsureDirExists(tempDir); err != nil {
		cancel()
		return nil, err
	}
	pc.TempDir = tempDir

	pc.initComponents()
	return pc, nil
}

// 初始化所有组件
func (pc *ProcessorController) initComponents() {
	cfg := pc.Config

	pc.ASROptions = asr.OptionsFromConfig(cfg)
	if cfg.TempDir == "" {
		pc.ASROptions.CacheDir = filepath.Join(pc.TempDir, "asr-cache")
	}

	pc.ASRSelector = asr.NewASRSelector()
	pc.registerASRServices()

	pc.ASRProcessor = asr.NewASRProcessor(cfg, caption.NewGenerator(pc.newResolver(), cfg))

	pc.MediaProcessor = processor.NewMediaProcessor(filepath.Join(pc.TempDir, "audio"))
	pc.Errors = utils.NewErrorHandler(1, 0)

	pc.Downloader = download.NewDownloader(cfg.VideosDir)
	pc.Downloader.Retry = utils.NewFixedErrorHandler(cfg.MaxRetries, cfg.RetryDelay)
}

// newResolver 根据开关和API Key决定是否使用大模型断句
func (pc *ProcessorController) newResolver() *caption.Resolver {
	cfg := pc.Config
	if cfg.LLMAPIKey == "" {
		if cfg.UsePunctuationRestore || cfg.UseBoundaryInference {
			utils.Warn("未配置API Key，断句只使用本地标点")
		}
		return caption.NewResolver(nil, nil)
	}

	client := llm.NewChatClientFromConfig(cfg)
	var restorer caption.PunctuationRestorer
	var inferrer caption.BoundaryInferrer
	if cfg.UsePunctuationRestore {
		restorer = client
	}
	if cfg.UseBoundaryInference {
		inferrer = client
	}
	return caption.NewResolver(restorer, inferrer)
}

// 注册ASR服务
func (pc *ProcessorController) registerASRServices() {
	pc.ASRSelector.RegisterService("whisper", asr.NewWhisperASR, 30)
	pc.ASRSelector.RegisterService("bcut", asr.NewBcutASR, 20)
	pc.ASRSelector.RegisterService("kuaishou", asr.NewKuaiShouASR, 10)
}

// Context 返回控制器的上下文，收到中断信号后被取消
func (pc *ProcessorController) Context() context.Context {
	return pc.ctx
}

// HasCaption 媒体文件是否已有字幕产物
func (pc *ProcessorController) HasCaption(mediaPath string) bool {
	return pc.ASRProcessor.SegmentsExporter.Exists(utils.BaseName(mediaPath))
}

// CaptionURL 下载音频并生成字幕，成功后在后台下载完整视频
func (pc *ProcessorController) CaptionURL(ctx context.Context, url string) (*models.Result, error) {
	utils.Info("开始下载音频: %s", url)
	audioPath, err := pc.Downloader.DownloadAudio(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("下载音频失败: %w", err)
	}

	result, err := pc.CaptionFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	if pc.Config.DownloadVideo {
		taskID := pc.Downloader.DownloadVideoAsync(url)
		utils.Debug("后台视频下载任务: %s", taskID)
	}
	return result, nil
}

// CaptionFile 为本地音频或视频文件生成字幕
func (pc *ProcessorController) CaptionFile(ctx context.Context, mediaPath string) (*models.Result, error) {
	start := time.Now()
	if !utils.CheckFileExists(mediaPath) {
		pc.recordResult(false)
		return nil, fmt.Errorf("%w: %s", caption.ErrNoAudio, mediaPath)
	}

	result, err := pc.captionFile(ctx, mediaPath)
	pc.recordResult(err == nil)
	if err != nil {
		return nil, err
	}

	result.ProcessTimeMs = time.Since(start).Milliseconds()
	utils.Info("字幕生成完成: %s (服务=%s, 句子=%d, 字幕块=%d, 用时 %s)",
		filepath.Base(mediaPath), result.Service, result.SentenceCount, result.SegmentCount,
		utils.FormatTimeDuration(time.Since(start).Seconds()))
	return result, nil
}

func (pc *ProcessorController) captionFile(ctx context.Context, mediaPath string) (*models.Result, error) {
	audioPath := mediaPath
	if isVideo(mediaPath) {
		// 提取失败时删除 ffmpeg 留下的不完整音频，避免下次被直接复用
		err := pc.Errors.SafeExecute("提取音频", func() error {
			extracted, err := pc.MediaProcessor.ExtractAudioFromVideo(ctx, mediaPath)
			audioPath = extracted
			return err
		}, func() {
			os.Remove(pc.MediaProcessor.AudioPathFor(mediaPath))
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", caption.ErrNoAudio, err)
		}
	}

	barID := "asr_" + filepath.Base(mediaPath)
	pc.ProgressManager.CreateProgressBar(barID, 100, "ASR识别 "+filepath.Base(mediaPath), "准备中...")
	progressCallback := func(percent int, message string) {
		pc.ProgressManager.UpdateProgressBar(barID, percent, message)
	}

	var (
		transcript  *models.Transcript
		serviceName string
	)
	err := pc.Errors.SafeExecute("ASR识别", func() error {
		var err error
		transcript, serviceName, err = pc.ASRSelector.RunWithService(ctx, audioPath, pc.Config.ASRService, pc.ASROptions, progressCallback)
		return err
	}, func() {
		pc.ProgressManager.CompleteProgressBar(barID, "识别失败")
	})
	if err != nil {
		return nil, err
	}
	pc.ProgressManager.CompleteProgressBar(barID, "识别完成")
	if !transcript.HasWordTimestamps() {
		utils.Info("%s 的识别结果没有词级时间戳，按语句段拆分", filepath.Base(mediaPath))
	}

	// 识别服务没有给出时长时用 ffprobe 补齐
	if transcript.Duration == nil {
		if d, err := pc.mediaDuration(ctx, mediaPath); err == nil {
			transcript.Duration = &d
		} else {
			utils.Warn("无法获取媒体时长，结尾不补占位块: %v", err)
		}
	}

	outputFiles, gen, err := pc.ASRProcessor.ProcessResults(ctx, transcript, mediaPath)
	if err != nil {
		return nil, err
	}

	result := &models.Result{
		MediaPath:     mediaPath,
		Service:       serviceName,
		Strategy:      string(gen.Strategy),
		OutputFiles:   outputFiles,
		SentenceCount: len(gen.Sentences),
		SegmentCount:  len(gen.Document.Segments),
	}
	if transcript.Duration != nil {
		result.DurationMs = int64(*transcript.Duration * 1000)
	}
	return result, nil
}

// mediaDuration 优先从媒体信息读取时长，音频流信息缺失时退回只读容器时长
func (pc *ProcessorController) mediaDuration(ctx context.Context, mediaPath string) (float64, error) {
	info, err := pc.MediaProcessor.GetMediaInfo(ctx, mediaPath)
	if err == nil && info.Duration > 0 {
		utils.WithFields(map[string]interface{}{
			"duration":    info.Duration,
			"sample_rate": info.SampleRate,
			"channels":    info.Channels,
			"size":        utils.FormatFileSize(info.Size),
		}).Debug("媒体信息")
		return info.Duration, nil
	}
	return pc.MediaProcessor.ProbeDuration(ctx, mediaPath)
}

// ProcessDirectory 为媒体目录中所有没有字幕的文件生成字幕
func (pc *ProcessorController) ProcessDirectory(ctx context.Context) ([]BatchResult, error) {
	s := scanner.NewMediaScanner()
	files, err := s.ScanDirectory(pc.Config.VideosDir)
	if err != nil {
		return nil, err
	}
	pending := s.FilterUncaptioned(files, pc.Config.CaptionsDir)
	utils.Info("共 %d 个媒体文件，其中 %d 个需要生成字幕", len(files), len(pending))

	results := make([]BatchResult, 0, len(pending))
	for i, f := range pending {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		pc.batchProgressCallback(i+1, len(pending), f.Name, nil)
		result, err := pc.CaptionFile(ctx, f.Path)
		br := BatchResult{Path: f.Path, Result: result, Err: err}
		pc.batchProgressCallback(i+1, len(pending), f.Name, &br)
		results = append(results, br)
	}
	return results, nil
}

func (pc *ProcessorController) batchProgressCallback(current, total int, filename string, result *BatchResult) {
	if result == nil {
		fmt.Printf("\n[%d/%d] 开始处理: %s\n", current, total, filename)
		return
	}
	if result.Err != nil {
		color.Red("[%d/%d] 处理失败: %s - %v", current, total, filename, result.Err)
		return
	}
	color.Green("[%d/%d] 处理成功: %s", current, total, filename)
	for kind, path := range result.Result.OutputFiles {
		fmt.Printf("  %s: %s\n", kind, path)
	}
}

// StartWatchMode 监控媒体目录，为新文件自动生成字幕，直到上下文被取消
func (pc *ProcessorController) StartWatchMode() error {
	adapter := adapters.NewCaptionAdapter(pc.ctx, pc)
	mediaWatcher := watcher.NewMediaWatcher(pc.Config, adapter, pc.ProgressManager)

	if n, err := mediaWatcher.ProcessExisting(); err != nil {
		utils.Warn("处理已有文件失败: %v", err)
	} else if n > 0 {
		utils.Info("已处理 %d 个已有文件", n)
	}

	if err := mediaWatcher.Start(); err != nil {
		return err
	}
	pc.addCleanup(mediaWatcher.Stop)

	utils.Info("监控已启动，按Ctrl+C退出...")
	return pc.waitForTermination()
}

// PrintASRStats 输出服务统计信息
func (pc *ProcessorController) PrintASRStats() {
	utils.Info("ASR服务统计信息:")
	stats := pc.ASRSelector.GetStats()
	for _, name := range pc.ASRSelector.ServiceNames() {
		stat := stats[name]
		utils.Info("%s: 调用次数=%v, 成功率=%v, 可用=%v",
			name, stat["count"], stat["success_rate"], stat["available"])
	}
}

// PrintSummary 输出本次运行的统计
func (pc *ProcessorController) PrintSummary() {
	pc.mu.Lock()
	total, ok, failed := pc.Stats.TotalFiles, pc.Stats.SuccessfulFiles, pc.Stats.FailedFiles
	pc.mu.Unlock()

	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("总文件数: %d\n", total)
	color.Green("成功: %d", ok)
	if failed > 0 {
		color.Red("失败: %d", failed)
	}
	fmt.Printf("总用时: %s\n", utils.FormatChineseTimeDuration(time.Since(pc.Stats.StartTime).Seconds()))

	if failed > 0 {
		pc.Errors.PrintErrorStats()
	}
	if len(pc.Downloader.Retry.GetErrorStats()) > 0 {
		utils.Info("下载重试记录:")
		pc.Downloader.Retry.PrintErrorStats()
	}
}

func (pc *ProcessorController) recordResult(success bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.Stats.TotalFiles++
	if success {
		pc.Stats.SuccessfulFiles++
	} else {
		pc.Stats.FailedFiles++
	}
}

// 添加清理函数
func (pc *ProcessorController) addCleanup(cleanup func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.cleanup = append(pc.cleanup, cleanup)
}

// Cleanup 逆序执行所有清理函数，等待后台下载结束
func (pc *ProcessorController) Cleanup() {
	pc.cancelFunc()

	pc.mu.Lock()
	cleanup := pc.cleanup
	pc.cleanup = nil
	pc.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	pc.Downloader.Wait()
	pc.ProgressManager.CloseAll("已完成")
	utils.DisableTerminalProgress()
}

// HandleSignals 收到中断信号时取消上下文
func (pc *ProcessorController) HandleSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-c:
			utils.Info("接收到中断信号，正在停止...")
			pc.cancelFunc()
		case <-pc.ctx.Done():
		}
		signal.Stop(c)
	}()
}

// 等待终止信号
func (pc *ProcessorController) waitForTermination() error {
	<-pc.ctx.Done()
	if errors.Is(pc.ctx.Err(), context.Canceled) {
		return nil
	}
	return pc.ctx.Err()
}

func isVideo(path string) bool {
	return strings.HasPrefix(scanner.MimeType(path), "video/")
}
