package optimizer

import (
	"cmp"
	"slices"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

func (o *Optimizer) report(sq *Squad) *domain.SquadReport {
	members := make([]domain.Candidate, 0, SquadSize)
	for _, idx := range sq {
		members = append(members, o.candidates[idx])
	}

	report := BuildReport(members)
	report.Fitness = o.fitness(sq)

	return report
}

// BuildReport 按阵容原有顺序生成报告
// 替补的划分方式和适应度函数一致：按预测得分升序（稳定排序）排在前 benchSize 名的成员
func BuildReport(members []domain.Candidate) *domain.SquadReport {
	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(members[a].PredictedScore, members[b].PredictedScore)
	})

	bench := make([]bool, len(members))
	for rank, i := range order {
		if rank < benchSize {
			bench[i] = true
		}
	}

	report := &domain.SquadReport{
		Members: make([]domain.SquadMember, len(members)),
	}

	maxScore := 0.0
	for i, c := range members {
		report.Members[i] = domain.SquadMember{
			Candidate: c,
			Bench:     bench[i],
		}
		report.AggregateScore += c.PredictedScore
		report.TotalCost += c.Cost
		if i == 0 || c.PredictedScore > maxScore {
			maxScore = c.PredictedScore
		}
	}

	// 得分最高的成员按两倍计算
	report.AggregateScore += maxScore

	return report
}
