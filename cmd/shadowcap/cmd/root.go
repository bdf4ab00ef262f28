package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/pkg/models"
	"github.com/ccp-p/shadow-caption/pkg/utils"
)

// 未指定 --config 时按顺序查找的配置文件
var defaultConfigFiles = []string{"shadowcap.yaml", "shadowcap.yml", "shadowcap.toml", "shadowcap.json"}

var (
	cfgFile     string
	envFile     string
	logLevel    string
	logFile     string
	asrService  string
	videosDir   string
	captionsDir string

	// config 由 PersistentPreRunE 加载，子命令直接使用
	config *models.Config
)

var rootCmd = &cobra.Command{
	Use:   "shadowcap",
	Short: "跟读字幕生成工具",
	Long: `shadowcap 把视频或音频转换成适合影子跟读的字幕：
语音识别 → 断句 → 句子时间轴 → 首尾相接的字幕块。

命令:
  caption  为视频链接或本地文件生成字幕
  list     列出媒体目录及字幕状态
  serve    启动跟读应用的 HTTP 接口
  watch    监控媒体目录，自动为新文件生成字幕
  config   查看或生成配置文件`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "配置文件路径 (json/yaml/toml，默认查找 ./shadowcap.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "环境变量文件")
	flags.StringVar(&logLevel, "log-level", "", "日志级别 (VERBOSE/INFO/WARN/ERROR)")
	flags.StringVar(&logFile, "log-file", "", "日志文件路径")
	flags.StringVar(&asrService, "asr", "", "ASR服务 (whisper/bcut/kuaishou/auto)")
	flags.StringVar(&videosDir, "videos-dir", "", "媒体目录")
	flags.StringVar(&captionsDir, "captions-dir", "", "字幕目录")
}

// loadConfig 依次应用默认值、配置文件、环境变量和命令行参数
func loadConfig(cmd *cobra.Command, args []string) error {
	models.LoadDotEnv(envFile)

	config = models.NewDefaultConfig()
	path := cfgFile
	if path == "" {
		for _, candidate := range defaultConfigFiles {
			if utils.CheckFileExists(candidate) {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := config.LoadFromFile(path); err != nil {
			return fmt.Errorf("加载配置文件 %s 失败: %w", path, err)
		}
	}

	config.ApplyEnv()
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}
	if asrService != "" {
		config.ASRService = asrService
	}
	if videosDir != "" {
		config.VideosDir = videosDir
	}
	if captionsDir != "" {
		config.CaptionsDir = captionsDir
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	if err := utils.InitLogger(config.LogLevel, config.LogFile); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	return nil
}

func printWelcome() {
	fmt.Println()
	color.Cyan("================================")
	color.Cyan("     shadowcap 跟读字幕生成     ")
	color.Cyan("================================")
	fmt.Println()
}

func checkDependencies(needYtDlp bool) bool {
	fmt.Print("检查系统依赖... ")
	ok := true
	if !utils.CheckFFmpeg() || !utils.CheckFFprobe() {
		color.Red("失败")
		utils.Warn("未检测到FFmpeg/FFprobe，视频文件和时长探测将不可用")
		ok = false
	}
	if needYtDlp && !utils.CheckYtDlp() {
		if ok {
			color.Red("失败")
		}
		utils.Error("未检测到yt-dlp，请确保yt-dlp已安装并添加到系统路径")
		return false
	}
	if ok {
		color.Green("通过")
	}
	return true
}
