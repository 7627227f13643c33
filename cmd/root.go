// Package cmd 命令列入口：serve 啟動 API 伺服器，generate/parse/ping 直接在終端機使用
package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hsuanyo7160/go-travel-planner/internal/config"
)

// Execute 建立所有子命令並執行
func Execute() error {
	var cfgPath string

	root := &cobra.Command{
		Use:          "travelplanner",
		Short:        "AI 旅遊行程規劃",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml)")

	root.AddCommand(
		serveCMD(&cfgPath),
		generateCMD(&cfgPath),
		parseCMD(&cfgPath),
		pingCMD(&cfgPath),
	)
	return root.ExecuteContext(context.Background())
}

// setup 讀設定並建立 logger，log 一律寫到 stderr，stdout 留給指令輸出
func setup(cfgPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
