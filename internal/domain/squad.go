package domain

type SquadMember struct {
	Candidate
	Bench bool `json:"bench"`
}

// SquadReport 最终阵容的报告
type SquadReport struct {
	Members        []SquadMember `json:"members"`
	Fitness        float64       `json:"fitness"`
	AggregateScore float64       `json:"aggregateScore"` // 所有成员预测得分之和再加上最高分一次
	TotalCost      float64       `json:"totalCost"`
}
