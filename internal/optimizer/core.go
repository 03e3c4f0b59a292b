package optimizer

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

// isValid 检查阵容是否满足全部约束，遇到第一个不满足的约束就返回
func (o *Optimizer) isValid(members []int) bool {
	if len(members) != SquadSize {
		return false
	}

	seen := make(map[int64]struct{}, SquadSize)
	categoryCnt := make(map[domain.Category]int, len(o.cfg.CategoryCaps))
	groupCnt := make(map[string]int, SquadSize)
	totalCost := 0.0

	for _, idx := range members {
		c := &o.candidates[idx]

		if _, exists := seen[c.ID]; exists {
			return false
		}
		seen[c.ID] = struct{}{}

		// 没有配置上限的位置按上限为 0 处理，不会跳过位置检查，
		// 因此变异换入这类候选人后阵容一定不合法
		categoryCnt[c.Category]++
		if categoryCnt[c.Category] > o.cfg.CategoryCaps[string(c.Category)] {
			return false
		}

		groupCnt[c.Group]++
		if groupCnt[c.Group] > o.cfg.MaxPerGroup {
			return false
		}

		totalCost += c.Cost
		if totalCost > o.cfg.BudgetCap {
			return false
		}
	}

	return true
}

/**
 * 计算阵容的适应度
 * 超出预算直接记为 0；否则将预测得分升序排列，
 * 最低的 benchSize 人视为替补只计 benchWeight，其余全额计入
 */
func (o *Optimizer) fitness(sq *Squad) float64 {
	var scores [SquadSize]float64
	totalCost := 0.0

	for i, idx := range sq {
		totalCost += o.candidates[idx].Cost
		scores[i] = o.candidates[idx].PredictedScore
	}

	if totalCost > o.cfg.BudgetCap {
		return 0
	}

	slices.Sort(scores[:])

	sum := 0.0
	for i, score := range scores {
		if i < benchSize {
			sum += score * benchWeight
		} else {
			sum += score
		}
	}

	return sum
}

// randomSquad 随机生成一个满足约束的阵容
func (o *Optimizer) randomSquad() (Squad, error) {
	var sq Squad
	n := 0

	seen := make(map[int64]struct{}, SquadSize)
	categoryCnt := make(map[domain.Category]int, len(o.cfg.CategoryCaps))
	groupCnt := make(map[string]int, SquadSize)
	totalCost := 0.0

	for attempt := 0; n < SquadSize; attempt++ {
		if attempt >= o.cfg.MaxDrawAttempts {
			return Squad{}, fmt.Errorf("%w: 抽取 %d 次后阵容仍只有 %d 人", ErrInfeasibleConstraints, attempt, n)
		}

		idx := o.rng.Intn(len(o.candidates))
		c := &o.candidates[idx]

		if _, exists := seen[c.ID]; exists {
			continue
		}
		if categoryCnt[c.Category] >= o.cfg.CategoryCaps[string(c.Category)] {
			continue
		}
		if groupCnt[c.Group] >= o.cfg.MaxPerGroup {
			continue
		}
		if totalCost+c.Cost > o.cfg.BudgetCap {
			continue
		}

		sq[n] = idx
		n++
		seen[c.ID] = struct{}{}
		categoryCnt[c.Category]++
		groupCnt[c.Group]++
		totalCost += c.Cost
	}

	return sq, nil
}

func (o *Optimizer) initialPopulation() ([]Squad, error) {
	pop := make([]Squad, o.cfg.PopulationSize)
	for i := range pop {
		sq, err := o.randomSquad()
		if err != nil {
			return nil, err
		}
		pop[i] = sq
	}
	return pop, nil
}

// 单点交叉
// 子代由 p1 的前半段和 p2 的后半段拼接而成，去重后从 p1 中随机补人；
// 如果最终仍不合法，则等概率地原样返回其中一个父本
func (o *Optimizer) crossover(p1, p2 *Squad) Squad {
	point := o.rng.Intn(SquadSize)

	child := make([]int, 0, SquadSize)
	seen := make(map[int64]struct{}, SquadSize)
	add := func(idx int) {
		id := o.candidates[idx].ID
		if _, exists := seen[id]; exists {
			return
		}
		seen[id] = struct{}{}
		child = append(child, idx)
	}

	for _, idx := range p1[:point] {
		add(idx)
	}
	for _, idx := range p2[point:] {
		add(idx)
	}

	for attempt := 0; len(child) < SquadSize && attempt < o.cfg.RepairAttempts; attempt++ {
		add(p1[o.rng.Intn(SquadSize)])
	}

	if o.isValid(child) {
		var sq Squad
		copy(sq[:], child)
		return sq
	}

	if o.rng.Float64() < 0.5 {
		return *p1
	}
	return *p2
}

// 变异
// 一定概率把某个位置换成候选池中随机的一人，换完不做检查；
// 之后整体校验，不合法就直接丢弃并重新随机生成
func (o *Optimizer) mutate(sq *Squad) error {
	if o.rng.Float64() < o.cfg.MutationRate {
		sq[o.rng.Intn(SquadSize)] = o.rng.Intn(len(o.candidates))
	}

	if o.isValid(sq[:]) {
		return nil
	}

	fresh, err := o.randomSquad()
	if err != nil {
		return err
	}
	*sq = fresh

	return nil
}
