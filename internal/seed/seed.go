package seed

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/utils"
)

// LoadCandidatesFile 读取并校验 CSV 文件中的候选池
func LoadCandidatesFile(path string) ([]domain.Candidate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	candidates, err := ParseCandidatesCSV(file)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateCandidatePool(candidates); err != nil {
		return nil, err
	}

	return candidates, nil
}

func SeedFromCSV(r *repository.Repository, path string) error {
	candidates, err := LoadCandidatesFile(path)
	if err != nil {
		return err
	}

	if err := r.CreateCandidates(candidates); err != nil {
		return fmt.Errorf("插入候选人失败: %w", err)
	}

	slog.Info("导入候选池完成", "path", path, "count", len(candidates))
	return nil
}

// SeedRandomCandidates 插入 n 个随机候选人，ID 从 firstID 开始连续编号
func SeedRandomCandidates(r *repository.Repository, firstID int64, n int) error {
	candidates := make([]domain.Candidate, n)
	for i := range candidates {
		candidates[i] = utils.GenerateRandomCandidate(firstID + int64(i))
	}

	if err := r.CreateCandidates(candidates); err != nil {
		return fmt.Errorf("插入随机候选人失败: %w", err)
	}

	slog.Info("插入随机候选人完成", "count", n)
	return nil
}
