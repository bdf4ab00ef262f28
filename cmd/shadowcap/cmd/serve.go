package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/internal/controller"
	"github.com/ccp-p/shadow-caption/internal/server"
	"github.com/ccp-p/shadow-caption/pkg/llm"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动跟读应用的 HTTP 接口",
	Long: `启动 HTTP 服务:

  GET  /api/videos                      媒体列表
  GET  /api/videos/{filename}/segments  字幕产物
  GET  /api/videos/{filename}/stream    媒体流
  POST /api/videos/{filename}/notes     生成学习笔记
  POST /api/caption                     创建字幕任务
  GET  /api/task_status/{task_id}       任务状态
  POST /api/transform-text              中文转地道英文
  POST /api/tts                         英文语音合成
  POST /api/save-note                   保存中英对照学习笔记
  GET  /api/notes                       笔记列表
  GET  /api/notes/{filename}            笔记内容
  GET  /api/notes/{filename}/download   下载笔记
  DELETE /api/notes/{filename}          删除笔记`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "监听地址 (默认使用配置中的 listen_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		config.ListenAddr = listenAddr
	}
	// 服务模式下不绘制终端进度条
	config.ShowProgress = false

	pc, err := controller.NewProcessorController(config)
	if err != nil {
		return err
	}
	defer pc.Cleanup()
	pc.HandleSignals()

	srv := server.NewServer(pc.Context(), config, pc, llm.NewChatClientFromConfig(config))
	return srv.ListenAndServe(pc.Context(), config.ListenAddr)
}
