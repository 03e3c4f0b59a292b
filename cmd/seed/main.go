package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/seed"
)

func main() {
	var op int
	var n int
	var firstID int64
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机候选人, 2: 从 CSV 文件导入候选池)")
	flag.IntVar(&n, "n", 100, "要插入的随机候选人数量")
	flag.Int64Var(&firstID, "first-id", 1, "随机候选人的起始 ID")
	flag.StringVar(&file, "file", "", "候选池 CSV 文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := repository.Open(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 || firstID <= 0 {
			slog.Error("请输入合法的候选人数量和起始 ID")
			return
		}
		if err := seed.SeedRandomCandidates(repo, firstID, n); err != nil {
			slog.Error("无法插入随机候选人", slog.String("error", err.Error()))
		}
	case 2:
		if file == "" {
			slog.Error("请指定 CSV 文件路径")
			return
		}
		if err := seed.SeedFromCSV(repo, file); err != nil {
			slog.Error("无法导入候选池", slog.String("error", err.Error()))
		}
	default:
		slog.Error("指定的操作非法")
	}
}
