package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看或生成配置文件",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "打印生效的配置（API Key 脱敏）",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.PrintConfig()
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "生成默认配置文件，格式由扩展名决定 (json/yaml/toml)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "shadowcap.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := models.NewDefaultConfig().SaveToFile(path); err != nil {
			return fmt.Errorf("写入配置文件失败: %w", err)
		}
		color.Green("已生成配置文件: %s", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
