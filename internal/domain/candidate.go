package domain

import "time"

type Category string

const (
	CategoryGoalkeeper Category = "GK"
	CategoryDefender   Category = "DEF"
	CategoryMidfielder Category = "MID"
	CategoryForward    Category = "FWD"
)

// Candidate 候选球员，载入后在整个优化过程中只读
type Candidate struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Cost           float64   `json:"cost"`
	Category       Category  `json:"category"`
	Group          string    `json:"group"` // 所属俱乐部
	PredictedScore float64   `json:"predictedScore"`
	CreatedAt      time.Time `json:"createdAt"`
	Version        int32     `json:"-"`
}
