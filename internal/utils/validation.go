package utils

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

func ValidateCandidate(c *domain.Candidate) error {
	if c.ID <= 0 {
		return errors.New("候选人 ID 必须为正数")
	}
	if c.Name == "" {
		return fmt.Errorf("候选人 %d 的名字不能为空", c.ID)
	}
	if c.Cost < 0 {
		return fmt.Errorf("候选人 %d 的身价不能为负数", c.ID)
	}
	if c.Category == "" {
		return fmt.Errorf("候选人 %d 的位置不能为空", c.ID)
	}
	if c.Group == "" {
		return fmt.Errorf("候选人 %d 的俱乐部不能为空", c.ID)
	}
	return nil
}

// ValidateCandidatePool 检查候选池中每个候选人是否合法，并且 ID 不重复
func ValidateCandidatePool(candidates []domain.Candidate) error {
	seen := make(map[int64]bool, len(candidates))
	for i := range candidates {
		if err := ValidateCandidate(&candidates[i]); err != nil {
			return err
		}
		if seen[candidates[i].ID] {
			return fmt.Errorf("候选人 ID %d 重复", candidates[i].ID)
		}
		seen[candidates[i].ID] = true
	}
	return nil
}
