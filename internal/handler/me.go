package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type myInfoResponse struct {
	*domain.User
	RunCounts map[domain.RunStatus]int `json:"runCounts"` // 自己提交的优化任务按状态计数
}

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	runs, err := h.repository.GetOptimizationRunsByRequester(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人信息成功", myInfoResponse{
		User:      myInfo,
		RunCounts: countRunsByStatus(runs),
	})
}

func countRunsByStatus(runs []*domain.OptimizationRun) map[domain.RunStatus]int {
	counts := map[domain.RunStatus]int{
		domain.RunStatusPending:   0,
		domain.RunStatusRunning:   0,
		domain.RunStatusSucceeded: 0,
		domain.RunStatusFailed:    0,
	}
	for _, run := range runs {
		counts[run.Status]++
	}
	return counts
}

// GetMyOptimizationRuns 只返回自己提交的优化任务，管理员也一样
func (h *Handler) GetMyOptimizationRuns(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	runs, err := h.repository.GetOptimizationRunsByRequester(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取我的优化任务成功", runs)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if _, err := h.authenticate(myInfo.Username, req.OldPassword); err != nil {
		if errors.Is(err, errBadCredentials) {
			h.errorResponse(w, r, "旧密码错误")
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.UpdateUserPassword(myInfo, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.errorResponse(w, r, "更新密码失败，请重试")
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}
