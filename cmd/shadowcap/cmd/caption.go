package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/internal/controller"
	"github.com/ccp-p/shadow-caption/pkg/models"
)

var (
	captionAll     bool
	captionNoVideo bool
	captionSRT     bool
)

var captionCmd = &cobra.Command{
	Use:   "caption [url|file...]",
	Short: "为视频链接或本地媒体文件生成字幕",
	Long: `为视频链接或本地媒体文件生成跟读字幕。

链接会先用 yt-dlp 下载音频，字幕生成后在后台下载完整视频。
本地视频会先用 ffmpeg 提取音频。使用 --all 处理媒体目录中所有没有字幕的文件。`,
	RunE: runCaption,
}

func init() {
	captionCmd.Flags().BoolVar(&captionAll, "all", false, "处理媒体目录中所有没有字幕的文件")
	captionCmd.Flags().BoolVar(&captionNoVideo, "no-video", false, "不在后台下载完整视频")
	captionCmd.Flags().BoolVar(&captionSRT, "srt", false, "同时导出SRT字幕")
	rootCmd.AddCommand(captionCmd)
}

func runCaption(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !captionAll {
		return fmt.Errorf("请提供视频链接或文件路径，或使用 --all")
	}

	if captionNoVideo {
		config.DownloadVideo = false
	}
	if captionSRT {
		config.ExportSRT = true
	}

	printWelcome()
	if !checkDependencies(hasURL(args)) {
		return fmt.Errorf("缺少必要的依赖项")
	}

	pc, err := controller.NewProcessorController(config)
	if err != nil {
		return err
	}
	defer pc.Cleanup()
	pc.HandleSignals()
	ctx := pc.Context()

	var failed int
	for _, arg := range args {
		var result *models.Result
		if isURL(arg) {
			result, err = pc.CaptionURL(ctx, arg)
		} else {
			result, err = pc.CaptionFile(ctx, arg)
		}
		if err != nil {
			failed++
			color.Red("处理失败: %s - %v", arg, err)
			continue
		}
		printResult(result)
	}

	if captionAll {
		results, err := pc.ProcessDirectory(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
	}

	if config.DownloadVideo && hasURL(args) {
		fmt.Println("等待后台视频下载完成...")
	}
	pc.PrintASRStats()
	pc.PrintSummary()
	if failed > 0 {
		return fmt.Errorf("%d 个文件处理失败", failed)
	}
	return nil
}

func printResult(result *models.Result) {
	color.Green("字幕生成成功: %s", result.MediaPath)
	fmt.Printf("  服务: %s, 断句: %s, 句子: %d, 字幕块: %d\n",
		result.Service, result.Strategy, result.SentenceCount, result.SegmentCount)
	for kind, path := range result.OutputFiles {
		fmt.Printf("  %s: %s\n", kind, path)
	}
}

func isURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

func hasURL(args []string) bool {
	for _, a := range args {
		if isURL(a) {
			return true
		}
	}
	return false
}
