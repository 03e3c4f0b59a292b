package optimizer

import (
	"cmp"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

type Optimizer struct {
	cfg        *Config
	candidates []domain.Candidate // 候选池，只读
	rng        *rand.Rand         // 只在串行的繁殖过程中使用
	reporter   Reporter
	logger     *slog.Logger
}

type Option func(*Optimizer)

// WithSeed 固定随机数种子，相同的候选池和种子会得到相同的结果
func WithSeed(seed int64) Option {
	return func(o *Optimizer) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

func WithReporter(r Reporter) Option {
	return func(o *Optimizer) {
		o.reporter = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

func New(cfg *Config, candidates []domain.Candidate, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(candidates) < SquadSize {
		return nil, fmt.Errorf("%w: 候选池只有 %d 人，不足 %d 人", ErrInfeasibleConstraints, len(candidates), SquadSize)
	}

	o := &Optimizer{
		cfg:        cfg,
		candidates: slices.Clone(candidates),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		reporter:   NopReporter{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

type scoredSquad struct {
	squad   Squad
	fitness float64
}

func (o *Optimizer) workers() int {
	if o.cfg.Workers > 0 {
		return o.cfg.Workers
	}
	return runtime.NumCPU()
}

// evaluate 并行计算整个种群的适应度，结果按下标写回，与调度顺序无关
func (o *Optimizer) evaluate(pop []Squad) []scoredSquad {
	scored := make([]scoredSquad, len(pop))

	workers := min(o.workers(), len(pop))
	chunk := (len(pop) + workers - 1) / workers

	p := pool.New().WithMaxGoroutines(workers)
	for start := 0; start < len(pop); start += chunk {
		end := min(start+chunk, len(pop))
		p.Go(func() {
			for i := start; i < end; i++ {
				scored[i] = scoredSquad{
					squad:   pop[i],
					fitness: o.fitness(&pop[i]),
				}
			}
		})
	}
	p.Wait()

	return scored
}

// selectParents 按适应度降序排列，保留前一半作为繁殖池
func (o *Optimizer) selectParents(scored []scoredSquad) []scoredSquad {
	slices.SortStableFunc(scored, func(a, b scoredSquad) int {
		return cmp.Compare(b.fitness, a.fitness)
	})
	return scored[:len(scored)/2]
}

// Optimize 运行固定代数的遗传算法，返回最后一代中适应度最高的阵容
func (o *Optimizer) Optimize() (*domain.SquadReport, error) {
	start := time.Now()
	o.logger.Info("开始优化阵容",
		"candidates", len(o.candidates),
		"populationSize", o.cfg.PopulationSize,
		"generations", o.cfg.Generations,
	)

	// 生成初始种群
	pop, err := o.initialPopulation()
	if err != nil {
		return nil, err
	}
	next := make([]Squad, 0, o.cfg.PopulationSize)

	for gen := 0; gen < o.cfg.Generations; gen++ {
		// 评估并选择
		parents := o.selectParents(o.evaluate(pop))

		o.reporter.Report(Progress{
			Generation:  gen + 1,
			Generations: o.cfg.Generations,
			BestFitness: parents[0].fitness,
		})

		// 繁殖
		for len(next) < o.cfg.PopulationSize {
			p1 := &parents[o.rng.Intn(len(parents))].squad
			p2 := &parents[o.rng.Intn(len(parents))].squad

			child := o.crossover(p1, p2)
			if err := o.mutate(&child); err != nil {
				return nil, fmt.Errorf("第 %d 代变异失败: %w", gen+1, err)
			}

			next = append(next, child)
		}

		// 整体替换种群
		pop, next = next, pop[:0]
	}

	// 重新计算最后一代的适应度并找出最佳阵容
	bestIndex := 0
	bestFit := o.fitness(&pop[0])
	for i := 1; i < len(pop); i++ {
		if fit := o.fitness(&pop[i]); fit > bestFit {
			bestFit = fit
			bestIndex = i
		}
	}

	report := o.report(&pop[bestIndex])
	o.logger.Info("阵容优化完成",
		"fitness", report.Fitness,
		"aggregateScore", report.AggregateScore,
		"totalCost", report.TotalCost,
		"duration", time.Since(start),
	)

	return report, nil
}
