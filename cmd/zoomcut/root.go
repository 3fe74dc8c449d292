package main

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ivlev/zoomcut/internal/config"
)

// globalOptions - флаги, общие для всех команд.
type globalOptions struct {
	configPath string
	logLevel   string
}

func (o *globalOptions) logger() hclog.Logger {
	level := hclog.LevelFromString(o.logLevel)
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "zoomcut",
		Level:  level,
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

// loadConfig читает файл конфигурации, если он задан, иначе берет значения
// по умолчанию.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if strings.TrimSpace(o.configPath) == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "zoomcut",
		Short:         "Собирает ролик из интро и основного видео с зумами и пропусками",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Файл конфигурации (.yaml или .toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Уровень логов: trace, debug, info, warn, error")

	rootCmd.AddCommand(newRenderCommand(opts))
	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newProbeCommand(opts))

	return rootCmd
}
