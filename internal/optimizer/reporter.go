package optimizer

import "log/slog"

type Progress struct {
	Generation  int     `json:"generation"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"bestFitness"` // 本代繁殖池中最高的适应度
}

// Reporter 接收每一代结束后的进度
// 实现不能阻塞优化过程
type Reporter interface {
	Report(p Progress)
}

type NopReporter struct{}

func (NopReporter) Report(Progress) {}

type ReporterFunc func(p Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// LogReporter 每隔 Every 代输出一次日志
type LogReporter struct {
	Logger *slog.Logger
	Every  int
}

func (r *LogReporter) Report(p Progress) {
	every := max(r.Every, 1)
	if p.Generation%every != 0 && p.Generation != p.Generations {
		return
	}
	r.Logger.Info("优化进度", "generation", p.Generation, "generations", p.Generations, "bestFitness", p.BestFitness)
}
