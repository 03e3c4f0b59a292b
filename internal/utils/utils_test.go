package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

func TestRomanizeChineseName(t *testing.T) {
	assert.Equal(t, "Wang Weiqiang", RomanizeChineseName("王伟强"))
	assert.Equal(t, "Li Na", RomanizeChineseName("李娜"))
	assert.Equal(t, "", RomanizeChineseName("abc"))
}

func TestGenerateRandomCandidate(t *testing.T) {
	for i := int64(1); i <= 100; i++ {
		c := GenerateRandomCandidate(i)
		require.NoError(t, ValidateCandidate(&c))
		assert.Equal(t, i, c.ID)
		assert.GreaterOrEqual(t, c.Cost, 40.0)
		assert.LessOrEqual(t, c.Cost, 130.0)
		assert.Contains(t, categories, c.Category)
	}
}

func TestValidateCandidatePool(t *testing.T) {
	valid := domain.Candidate{ID: 1, Name: "张伟", Cost: 50, Category: domain.CategoryDefender, Group: "广州", PredictedScore: 3}

	tests := []struct {
		name    string
		pool    []domain.Candidate
		wantErr bool
	}{
		{name: "合法", pool: []domain.Candidate{valid, {ID: 2, Name: "李强", Cost: 60, Category: "MID", Group: "上海"}}},
		{name: "ID 重复", pool: []domain.Candidate{valid, valid}, wantErr: true},
		{name: "身价为负", pool: []domain.Candidate{{ID: 3, Name: "王芳", Cost: -1, Category: "GK", Group: "北京"}}, wantErr: true},
		{name: "缺少俱乐部", pool: []domain.Candidate{{ID: 4, Name: "赵敏", Cost: 1, Category: "GK"}}, wantErr: true},
		{name: "ID 非法", pool: []domain.Candidate{{ID: 0, Name: "赵敏", Cost: 1, Category: "GK", Group: "北京"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCandidatePool(tt.pool)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
