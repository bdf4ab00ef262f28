package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/internal/controller"
)

var inboxDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监控媒体目录，自动为新文件生成字幕",
	Long: `先为媒体目录中已有但没有字幕的文件生成字幕，然后持续监控新文件。
指定 --inbox 时，投递到该目录的媒体文件会被移动到媒体目录再处理。`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&inboxDir, "inbox", "", "投递目录")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if inboxDir != "" {
		config.InboxDir = inboxDir
	}
	config.WatchMode = true

	printWelcome()
	checkDependencies(false)

	pc, err := controller.NewProcessorController(config)
	if err != nil {
		return err
	}
	defer pc.Cleanup()
	pc.HandleSignals()

	if err := pc.StartWatchMode(); err != nil {
		return err
	}
	pc.PrintSummary()
	return nil
}
