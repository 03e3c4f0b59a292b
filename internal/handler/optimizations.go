package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/optimizer"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/progress"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/queue"
)

// 同步预览允许的最大计算量（种群大小 × 迭代次数）
const maxPreviewWork = 200_000

// 请求中没有给出的参数沿用服务端配置
type optimizationRequest struct {
	PopulationSize *int           `json:"populationSize"`
	Generations    *int           `json:"generations"`
	MutationRate   *float64       `json:"mutationRate"`
	BudgetCap      *float64       `json:"budgetCap"`
	MaxPerGroup    *int           `json:"maxPerGroup"`
	CategoryCaps   map[string]int `json:"categoryCaps"`
	Seed           *int64         `json:"seed"`
}

func parseOptimizationRequest(base *optimizer.Config, req *optimizationRequest) (optimizer.Config, int64, error) {
	cfg := *base
	cfg.CategoryCaps = maps.Clone(base.CategoryCaps)

	if req.PopulationSize != nil {
		cfg.PopulationSize = *req.PopulationSize
	}
	if req.Generations != nil {
		cfg.Generations = *req.Generations
	}
	if req.MutationRate != nil {
		cfg.MutationRate = *req.MutationRate
	}
	if req.BudgetCap != nil {
		cfg.BudgetCap = *req.BudgetCap
	}
	if req.MaxPerGroup != nil {
		cfg.MaxPerGroup = *req.MaxPerGroup
	}
	if req.CategoryCaps != nil {
		cfg.CategoryCaps = maps.Clone(req.CategoryCaps)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, 0, err
	}

	seed := rand.Int63()
	if req.Seed != nil {
		seed = *req.Seed
	}

	return cfg, seed, nil
}

// readOptimizationRequest 请求体可以为空，此时全部使用默认参数
func (h *Handler) readOptimizationRequest(w http.ResponseWriter, r *http.Request) (optimizer.Config, int64, error) {
	var req optimizationRequest
	if err := h.decode(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		return optimizer.Config{}, 0, err
	}
	return parseOptimizationRequest(&h.config.Optimizer, &req)
}

func (h *Handler) CreateOptimizationRun(w http.ResponseWriter, r *http.Request) {
	cfg, seed, err := h.readOptimizationRequest(w, r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	parameters, err := json.Marshal(cfg)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	run := &domain.OptimizationRun{
		RequesterID: callerFrom(r).ID,
		Parameters:  parameters,
		Seed:        seed,
	}
	if err := h.repository.CreateOptimizationRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 将任务交给 worker 处理
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if _, err := queue.Publish(ctx, h.mqChannel, h.config.RabbitMQ.OptimizationQueue, domain.OptimizationJob{RunID: run.ID}); err != nil {
		if markErr := h.repository.MarkOptimizationRunFailed(run, "无法提交优化任务"); markErr != nil {
			err = errors.Join(err, markErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已提交优化任务", run)
}

// GetAllOptimizationRuns 管理员可以看到所有任务，其他人只能看到自己提交的
func (h *Handler) GetAllOptimizationRuns(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)

	var (
		runs []*domain.OptimizationRun
		err  error
	)
	if c.isAdmin() {
		runs, err = h.repository.GetAllOptimizationRuns()
	} else {
		runs, err = h.repository.GetOptimizationRunsByRequester(c.ID)
	}
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取优化任务成功", runs)
}

func (h *Handler) GetOptimizationRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimizationRunCtx).(*domain.OptimizationRun)

	h.successResponse(w, r, "获取优化任务成功", run)
}

func (h *Handler) GetOptimizationProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimizationRunCtx).(*domain.OptimizationRun)

	p, err := h.progress.Get(r.Context(), run.ID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNotFound):
			// 任务还没开始或者进度已经过期
			h.successResponse(w, r, "暂无优化进度", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取优化进度成功", p)
}

// PreviewOptimization 在请求中直接运行一次优化，不保存结果
func (h *Handler) PreviewOptimization(w http.ResponseWriter, r *http.Request) {
	cfg, seed, err := h.readOptimizationRequest(w, r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	// 种群大小至少为 2，这里用除法比较以免乘积溢出
	if cfg.Generations > maxPreviewWork/cfg.PopulationSize {
		h.errorResponse(w, r, fmt.Sprintf("计算量过大，种群大小与迭代次数之积不能超过 %d，请提交优化任务", maxPreviewWork))
		return
	}

	candidates, err := h.repository.GetAllCandidates()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	o, err := optimizer.New(&cfg, candidates, optimizer.WithSeed(seed))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	report, err := o.Optimize()
	if err != nil {
		switch {
		case errors.Is(err, optimizer.ErrInfeasibleConstraints):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "优化完成", report)
}
