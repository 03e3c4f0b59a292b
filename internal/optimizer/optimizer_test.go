package optimizer

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

// newTestPool 生成 20 人的候选池：3 GK、6 DEF、7 MID、4 FWD，
// 每两人属于同一俱乐部，身价在 50~54 之间，预测得分等于 ID
func newTestPool() []domain.Candidate {
	layout := []struct {
		category domain.Category
		n        int
	}{
		{domain.CategoryGoalkeeper, 3},
		{domain.CategoryDefender, 6},
		{domain.CategoryMidfielder, 7},
		{domain.CategoryForward, 4},
	}

	var pool []domain.Candidate
	id := 1
	for _, l := range layout {
		for i := 0; i < l.n; i++ {
			pool = append(pool, domain.Candidate{
				ID:             int64(id),
				Name:           fmt.Sprintf("球员%d", id),
				Cost:           50 + float64(id%5),
				Category:       l.category,
				Group:          fmt.Sprintf("俱乐部%d", (id-1)/2),
				PredictedScore: float64(id),
			})
			id++
		}
	}
	return pool
}

func newTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 10
	cfg.Generations = 5
	cfg.Workers = 2
	return &cfg
}

func newTestOptimizer(t *testing.T, cfg *Config, pool []domain.Candidate) *Optimizer {
	t.Helper()
	o, err := New(cfg, pool, WithSeed(42))
	require.NoError(t, err)
	return o
}

// 2 GK + 5 DEF + 5 MID + 3 FWD，每个俱乐部最多 2 人
var validMembers = Squad{0, 1, 3, 4, 5, 6, 7, 9, 10, 11, 12, 13, 16, 17, 18}

func TestIsValid(t *testing.T) {
	o := newTestOptimizer(t, newTestConfig(), newTestPool())

	duplicate := validMembers
	duplicate[1] = duplicate[0]

	tooManyGoalkeepers := validMembers
	tooManyGoalkeepers[14] = 2

	tests := []struct {
		name    string
		members []int
		mutate  func(cfg *Config)
		want    bool
	}{
		{name: "合法阵容", members: validMembers[:], want: true},
		{name: "重复成员", members: duplicate[:], want: false},
		{name: "位置超限", members: tooManyGoalkeepers[:], want: false},
		{name: "俱乐部超限", members: validMembers[:], mutate: func(cfg *Config) { cfg.MaxPerGroup = 1 }, want: false},
		{name: "超出预算", members: validMembers[:], mutate: func(cfg *Config) { cfg.BudgetCap = 700 }, want: false},
		{name: "人数不足", members: validMembers[:14], want: false},
		{name: "位置没有配置上限", members: validMembers[:], mutate: func(cfg *Config) { delete(cfg.CategoryCaps, "FWD"); cfg.CategoryCaps["XXX"] = 3 }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			o.cfg = cfg
			assert.Equal(t, tt.want, o.isValid(tt.members))
		})
	}
}

func TestFitness(t *testing.T) {
	o := newTestOptimizer(t, newTestConfig(), newTestPool())

	sq := validMembers
	scores := make([]float64, 0, SquadSize)
	for _, idx := range sq {
		scores = append(scores, float64(idx+1))
	}
	slices.Sort(scores)

	want := 0.0
	for i, s := range scores {
		if i < 4 {
			want += s * 0.25
		} else {
			want += s
		}
	}
	assert.Equal(t, want, o.fitness(&sq))

	// 成员顺序不影响适应度
	reversed := sq
	slices.Reverse(reversed[:])
	assert.Equal(t, o.fitness(&sq), o.fitness(&reversed))
}

func TestFitnessOverBudgetIsZero(t *testing.T) {
	cfg := newTestConfig()
	cfg.BudgetCap = 100
	o := newTestOptimizer(t, cfg, newTestPool())

	sq := validMembers
	assert.Zero(t, o.fitness(&sq))
}

func TestRandomSquadIsValid(t *testing.T) {
	o := newTestOptimizer(t, newTestConfig(), newTestPool())

	for i := 0; i < 50; i++ {
		sq, err := o.randomSquad()
		require.NoError(t, err)
		assert.True(t, o.isValid(sq[:]), "随机阵容不合法: %v", sq)
	}
}

func TestRandomSquadInfeasible(t *testing.T) {
	pool := newTestPool()
	for i := range pool {
		pool[i].Cost = 100
	}
	cfg := newTestConfig()
	cfg.MaxDrawAttempts = 1000
	o := newTestOptimizer(t, cfg, pool)

	_, err := o.randomSquad()
	assert.ErrorIs(t, err, ErrInfeasibleConstraints)

	// 任意 15 人的总身价都超出预算，适应度一定为 0
	sq := validMembers
	assert.Zero(t, o.fitness(&sq))
}

func TestNew(t *testing.T) {
	t.Run("候选池人数不足", func(t *testing.T) {
		_, err := New(newTestConfig(), newTestPool()[:14])
		assert.ErrorIs(t, err, ErrInfeasibleConstraints)
	})

	t.Run("种群过小", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.PopulationSize = 1
		_, err := New(cfg, newTestPool())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("种群过大", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.PopulationSize = 1_000_000_000
		_, err := New(cfg, newTestPool())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("迭代次数过多", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Generations = 1 << 32
		_, err := New(cfg, newTestPool())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("变异概率越界", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.MutationRate = 1.5
		_, err := New(cfg, newTestPool())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("位置上限之和不足", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.CategoryCaps = map[string]int{"GK": 1, "DEF": 4, "MID": 4, "FWD": 2}
		_, err := New(cfg, newTestPool())
		assert.ErrorIs(t, err, ErrInfeasibleConstraints)
	})
}

func TestCrossoverReturnsValidSquadOrParent(t *testing.T) {
	o := newTestOptimizer(t, newTestConfig(), newTestPool())

	for i := 0; i < 200; i++ {
		p1, err := o.randomSquad()
		require.NoError(t, err)
		p2, err := o.randomSquad()
		require.NoError(t, err)

		child := o.crossover(&p1, &p2)
		if child == p1 || child == p2 {
			continue
		}
		assert.True(t, o.isValid(child[:]), "交叉结果既不合法也不是父本: %v", child)
	}
}

func TestCrossoverFallsBackToParent(t *testing.T) {
	cfg := newTestConfig()
	cfg.RepairAttempts = 0
	o := newTestOptimizer(t, cfg, newTestPool())

	// 两个父本完全相同时，拼接结果就是父本本身
	p := validMembers
	assert.Equal(t, p, o.crossover(&p, &p))

	// p2 是 p1 的逆序，切点 k > 0 时拼接结果同时包含 p1[0]，去重后不足 15 人；
	// 不允许补人，只能原样返回某个父本（k = 0 时子代就是 p2）
	p1 := validMembers
	p2 := validMembers
	slices.Reverse(p2[:])
	require.NotEqual(t, p1, p2)

	seenP1, seenP2 := false, false
	for i := 0; i < 200; i++ {
		child := o.crossover(&p1, &p2)
		switch child {
		case p1:
			seenP1 = true
		case p2:
			seenP2 = true
		default:
			t.Fatalf("交叉结果不是任何一个父本: %v", child)
		}
	}
	assert.True(t, seenP1, "没有返回过 p1")
	assert.True(t, seenP2, "没有返回过 p2")
}

func TestMutateAlwaysValid(t *testing.T) {
	cfg := newTestConfig()
	cfg.MutationRate = 1
	o := newTestOptimizer(t, cfg, newTestPool())

	sq := validMembers
	for i := 0; i < 200; i++ {
		require.NoError(t, o.mutate(&sq))
		assert.True(t, o.isValid(sq[:]))
	}
}

func TestMutateRegeneratesInvalidSquad(t *testing.T) {
	cfg := newTestConfig()
	cfg.MutationRate = 0
	o := newTestOptimizer(t, cfg, newTestPool())

	sq := validMembers
	sq[1] = sq[0]
	require.NoError(t, o.mutate(&sq))
	assert.True(t, o.isValid(sq[:]))
}

func TestOptimize(t *testing.T) {
	pool := newTestPool()
	o := newTestOptimizer(t, newTestConfig(), pool)

	report, err := o.Optimize()
	require.NoError(t, err)
	require.Len(t, report.Members, SquadSize)

	indexByID := make(map[int64]int, len(pool))
	for i, c := range pool {
		indexByID[c.ID] = i
	}

	members := make([]int, 0, SquadSize)
	sum, best, cost := 0.0, 0.0, 0.0
	for _, m := range report.Members {
		members = append(members, indexByID[m.ID])
		sum += m.PredictedScore
		best = max(best, m.PredictedScore)
		cost += m.Cost
	}

	assert.True(t, o.isValid(members))
	assert.Equal(t, sum+best, report.AggregateScore)
	assert.InDelta(t, cost, report.TotalCost, 1e-9)
	assert.Positive(t, report.Fitness)
}

func TestOptimizeDeterministic(t *testing.T) {
	run := func() *domain.SquadReport {
		o := newTestOptimizer(t, newTestConfig(), newTestPool())
		report, err := o.Optimize()
		require.NoError(t, err)
		return report
	}

	assert.Equal(t, run(), run())
}

func TestOptimizeInfeasiblePool(t *testing.T) {
	pool := newTestPool()
	for i := range pool {
		pool[i].Cost = 100
	}
	cfg := newTestConfig()
	cfg.MaxDrawAttempts = 1000
	o := newTestOptimizer(t, cfg, pool)

	_, err := o.Optimize()
	assert.ErrorIs(t, err, ErrInfeasibleConstraints)
}

func TestOptimizeReportsEveryGeneration(t *testing.T) {
	var got []Progress
	cfg := newTestConfig()
	o, err := New(cfg, newTestPool(), WithSeed(7), WithReporter(ReporterFunc(func(p Progress) {
		got = append(got, p)
	})))
	require.NoError(t, err)

	_, err = o.Optimize()
	require.NoError(t, err)

	require.Len(t, got, cfg.Generations)
	for i, p := range got {
		assert.Equal(t, i+1, p.Generation)
		assert.Equal(t, cfg.Generations, p.Generations)
		assert.Positive(t, p.BestFitness)
	}
}

func TestBuildReport(t *testing.T) {
	scores := []float64{9, 3, 12, 1, 7, 15, 4, 2, 11, 8, 13, 6, 10, 14, 5}
	members := make([]domain.Candidate, len(scores))
	for i, s := range scores {
		members[i] = domain.Candidate{ID: int64(i + 1), PredictedScore: s, Cost: 10}
	}

	report := BuildReport(members)

	require.Len(t, report.Members, len(members))
	for i, m := range report.Members {
		assert.Equal(t, members[i].ID, m.ID, "报告应保持阵容原有顺序")
		assert.Equal(t, scores[i] <= 4, m.Bench, "成员 %d", m.ID)
	}
	assert.Equal(t, 120.0+15.0, report.AggregateScore)
	assert.Equal(t, 150.0, report.TotalCost)
}
