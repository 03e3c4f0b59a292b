package domain

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type OptimizationRun struct {
	ID          int64           `json:"id"`
	RequesterID int64           `json:"requesterID"`
	Status      RunStatus       `json:"status"`
	Parameters  json.RawMessage `json:"parameters"` // 序列化后的 optimizer.Config
	Seed        int64           `json:"seed"`
	Result      *SquadReport    `json:"result"`
	Error       string          `json:"error"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinishedAt  *time.Time      `json:"finishedAt"`
	Version     int32           `json:"-"`
}

// OptimizationJob 通过消息队列发送给 worker 的任务
type OptimizationJob struct {
	RunID int64 `json:"runID"`
}

// OptimizationProgress 由 worker 写入 redis 的进度快照
type OptimizationProgress struct {
	RunID       int64     `json:"runID"`
	Generation  int       `json:"generation"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"bestFitness"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
