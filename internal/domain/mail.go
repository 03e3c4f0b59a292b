package domain

const MailTypeOptimizationFinished = "optimization_finished"

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type OptimizationFinishedMailData struct {
	FullName       string    `json:"fullName"`
	RunID          int64     `json:"runID"`
	Status         RunStatus `json:"status"`
	AggregateScore float64   `json:"aggregateScore"`
	TotalCost      float64   `json:"totalCost"`
	Error          string    `json:"error"`
}
