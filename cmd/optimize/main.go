package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/seed"
)

// 在本地直接读取 CSV 候选池并运行一次优化，不依赖数据库等外部服务
func main() {
	var file string
	var seedValue int64
	var generations int
	var populationSize int
	var every int

	flag.StringVar(&file, "file", "players.csv", "候选池 CSV 文件路径")
	flag.Int64Var(&seedValue, "seed", 0, "随机数种子，0 表示随机")
	flag.IntVar(&generations, "generations", 0, "迭代次数，0 表示使用 OPTIMIZER_GENERATIONS")
	flag.IntVar(&populationSize, "population", 0, "种群大小，0 表示使用 OPTIMIZER_POPULATION_SIZE")
	flag.IntVar(&every, "progress-every", 100, "每隔多少代输出一次进度")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadOptimizerConfig()
	if err != nil {
		logger.Error("无法读取优化参数", "error", err)
		os.Exit(1)
	}
	if generations > 0 {
		cfg.Generations = generations
	}
	if populationSize > 0 {
		cfg.PopulationSize = populationSize
	}

	candidates, err := seed.LoadCandidatesFile(file)
	if err != nil {
		logger.Error("无法读取候选池", "file", file, "error", err)
		os.Exit(1)
	}

	opts := []optimizer.Option{
		optimizer.WithLogger(logger),
		optimizer.WithReporter(&optimizer.LogReporter{Logger: logger, Every: every}),
	}
	if seedValue != 0 {
		opts = append(opts, optimizer.WithSeed(seedValue))
	}

	o, err := optimizer.New(cfg, candidates, opts...)
	if err != nil {
		logger.Error("无法创建优化器", "error", err)
		os.Exit(1)
	}

	report, err := o.Optimize()
	if err != nil {
		logger.Error("优化失败", "error", err)
		os.Exit(1)
	}

	fmt.Println("最佳阵容：")
	for _, m := range report.Members {
		line := fmt.Sprintf("%s，%s，%s，身价 %g，预测得分 %g", m.Name, m.Category, m.Group, m.Cost, m.PredictedScore)
		if m.Bench {
			line += "（替补）"
		}
		fmt.Println(line)
	}
	fmt.Printf("总得分（最高分双倍）：%g\n", report.AggregateScore)
	fmt.Printf("总身价：%g\n", report.TotalCost)
}
