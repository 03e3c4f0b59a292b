package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

// 候选池 CSV 的列名，列的顺序不限，多余的列会被忽略
const (
	columnID             = "element"
	columnName           = "name"
	columnCost           = "value"
	columnCategory       = "position"
	columnGroup          = "team"
	columnPredictedScore = "predicted_points"
)

var requiredColumns = []string{columnID, columnName, columnCost, columnCategory, columnGroup, columnPredictedScore}

// ParseCandidatesCSV 从 CSV 中读取候选池
func ParseCandidatesCSV(r io.Reader) ([]domain.Candidate, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV 文件为空")
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		columns[strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, exists := columns[name]; !exists {
			return nil, fmt.Errorf("没有找到 %s 列", name)
		}
	}

	candidates := make([]domain.Candidate, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("第 %d 行读取失败: %w", line, err)
		}

		c, err := parseCandidate(row, columns)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func parseCandidate(row []string, columns map[string]int) (domain.Candidate, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[columns[name]])
	}

	id, err := strconv.ParseInt(field(columnID), 10, 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("无法解析 %s: %w", columnID, err)
	}
	cost, err := strconv.ParseFloat(field(columnCost), 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("无法解析 %s: %w", columnCost, err)
	}
	score, err := strconv.ParseFloat(field(columnPredictedScore), 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("无法解析 %s: %w", columnPredictedScore, err)
	}

	return domain.Candidate{
		ID:             id,
		Name:           field(columnName),
		Cost:           cost,
		Category:       domain.Category(field(columnCategory)),
		Group:          field(columnGroup),
		PredictedScore: score,
	}, nil
}
