package handler

type ContextKey string

var (
	CallerCtx          ContextKey = "caller"
	MyInfoCtx          ContextKey = "myInfo"
	CandidateCtx       ContextKey = "candidate"
	OptimizationRunCtx ContextKey = "optimizationRun"
)
