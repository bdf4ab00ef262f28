package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/pkg/scanner"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出媒体目录中的文件及字幕状态",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "以JSON格式输出")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	entries, err := scanner.ListMedia(config.VideosDir, config.CaptionsDir)
	if err != nil {
		return err
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("%s 中没有找到媒体文件\n", config.VideosDir)
		return nil
	}

	fmt.Println("--------------------")
	for i, e := range entries {
		kind := "音频"
		if e.MediaType == "video" {
			kind = "视频"
		}
		status := color.YellowString("无字幕")
		if e.HasSegments {
			status = color.GreenString("有字幕")
		}
		fmt.Printf("%d. [%s] %s  %s\n", i+1, kind, e.Filename, status)
	}
	fmt.Println("--------------------")
	return nil
}
