package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/seed"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/utils"
)

const maxImportSize = 10 << 20 // CSV 导入的最大字节数

func (h *Handler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID             int64   `json:"id" validate:"required,gt=0"`
		Name           string  `json:"name" validate:"required"`
		Cost           float64 `json:"cost" validate:"min=0"`
		Category       string  `json:"category" validate:"required"`
		Group          string  `json:"group" validate:"required"`
		PredictedScore float64 `json:"predictedScore"`
	}

	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	c := &domain.Candidate{
		ID:             req.ID,
		Name:           req.Name,
		Cost:           req.Cost,
		Category:       domain.Category(req.Category),
		Group:          req.Group,
		PredictedScore: req.PredictedScore,
	}

	if err := h.repository.CreateCandidate(c); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "candidates_pkey":
				h.errorResponse(w, r, "候选人ID已存在")
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建候选人成功", c)
}

// ImportCandidates 请求体为 CSV 格式的候选池，已存在的候选人会被覆盖
func (h *Handler) ImportCandidates(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	candidates, err := seed.ParseCandidatesCSV(r.Body)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateCandidatePool(candidates); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateCandidates(candidates); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, fmt.Sprintf("成功导入 %d 名候选人", len(candidates)), candidates)
}

func (h *Handler) GetAllCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.repository.GetAllCandidates()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有候选人成功", candidates)
}

func (h *Handler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(CandidateCtx).(*domain.Candidate)

	h.successResponse(w, r, "获取候选人成功", c)
}

func (h *Handler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(CandidateCtx).(*domain.Candidate)

	var req struct {
		Name           *string  `json:"name" validate:"omitempty,min=1"`
		Cost           *float64 `json:"cost" validate:"omitempty,min=0"`
		Category       *string  `json:"category" validate:"omitempty,min=1"`
		Group          *string  `json:"group" validate:"omitempty,min=1"`
		PredictedScore *float64 `json:"predictedScore"`
	}

	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Cost != nil {
		c.Cost = *req.Cost
	}
	if req.Category != nil {
		c.Category = domain.Category(*req.Category)
	}
	if req.Group != nil {
		c.Group = *req.Group
	}
	if req.PredictedScore != nil {
		c.PredictedScore = *req.PredictedScore
	}

	if err := h.repository.UpdateCandidate(c); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新候选人成功", c)
}

func (h *Handler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(CandidateCtx).(*domain.Candidate)

	if err := h.repository.DeleteCandidate(c.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除候选人成功", nil)
}
