package optimizer

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// SquadSize 阵容固定人数
	SquadSize = 15

	benchSize   = 4    // 预测得分最低的几人视为替补
	benchWeight = 0.25 // 替补的得分只按这个比例计入
)

var (
	ErrInvalidConfig         = errors.New("优化参数无效")
	ErrInfeasibleConstraints = errors.New("候选池无法满足阵容约束")
)

// Squad: 一个阵容（染色体），每个元素是候选池中的下标
type Squad [SquadSize]int

// 遗传算法参数，构造一次后只读地共享给所有算子
type Config struct {
	PopulationSize  int            `json:"populationSize" env:"POPULATION_SIZE" envDefault:"150" validate:"min=2,max=10000"` // 种群大小
	Generations     int            `json:"generations" env:"GENERATIONS" envDefault:"2500" validate:"min=1,max=100000"`      // 迭代次数
	MutationRate    float64        `json:"mutationRate" env:"MUTATION_RATE" envDefault:"0.1" validate:"min=0,max=1"`         // 变异概率
	BudgetCap       float64        `json:"budgetCap" env:"BUDGET_CAP" envDefault:"1000" validate:"gt=0"`                     // 总身价上限
	MaxPerGroup     int            `json:"maxPerGroup" env:"MAX_PER_GROUP" envDefault:"3" validate:"min=1"`                  // 同一俱乐部人数上限
	CategoryCaps    map[string]int `json:"categoryCaps" env:"CATEGORY_CAPS" envDefault:"GK:2,DEF:5,MID:5,FWD:3" validate:"required,dive,keys,required,endkeys,min=0"`
	RepairAttempts  int            `json:"repairAttempts" env:"REPAIR_ATTEMPTS" envDefault:"400" validate:"min=0"`           // 交叉后补人的最大尝试次数
	MaxDrawAttempts int            `json:"maxDrawAttempts" env:"MAX_DRAW_ATTEMPTS" envDefault:"100000" validate:"min=1"`     // 随机生成一个阵容时的最大抽取次数
	Workers         int            `json:"workers" env:"WORKERS" envDefault:"0" validate:"min=0"`                            // 计算适应度的并发数，0 表示 CPU 核数
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:  150,
		Generations:     2500,
		MutationRate:    0.1,
		BudgetCap:       1000,
		MaxPerGroup:     3,
		CategoryCaps:    map[string]int{"GK": 2, "DEF": 5, "MID": 5, "FWD": 3},
		RepairAttempts:  400,
		MaxDrawAttempts: 100000,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	total := 0
	for _, n := range c.CategoryCaps {
		total += n
	}
	if total < SquadSize {
		return fmt.Errorf("%w: 各位置人数上限之和 %d 小于阵容人数 %d", ErrInfeasibleConstraints, total, SquadSize)
	}

	return nil
}
