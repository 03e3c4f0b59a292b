package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// RomanizeChineseName 把中文姓名转换为拼音写法，例如 "王伟强" -> "Wang Weiqiang"
func RomanizeChineseName(chineseName string) string {
	syllables := pinyin.LazyConvert(chineseName, nil)
	if len(syllables) == 0 {
		return ""
	}

	surname := capitalize(syllables[0])
	given := capitalize(strings.Join(syllables[1:], ""))
	if given == "" {
		return surname
	}
	return surname + " " + given
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var clubs = []string{
	"广州", "上海", "北京", "山东", "天津", "河南", "成都", "武汉",
	"长春", "大连", "深圳", "青岛", "沧州", "浙江", "梅州", "南通",
}

var categories = []domain.Category{
	domain.CategoryGoalkeeper,
	domain.CategoryDefender,
	domain.CategoryMidfielder,
	domain.CategoryForward,
}

// GenerateRandomCandidate 生成一个随机候选人，身价在 40~130 之间，预测得分大致与身价正相关
func GenerateRandomCandidate(id int64) domain.Candidate {
	chineseName := GenerateRandomChineseName()
	cost := float64(40 + 5*rand.Intn(19))
	score := cost / 10 * (0.5 + rand.Float64())

	return domain.Candidate{
		ID:             id,
		Name:           fmt.Sprintf("%s %s", chineseName, RomanizeChineseName(chineseName)),
		Cost:           cost,
		Category:       categories[rand.Intn(len(categories))],
		Group:          clubs[rand.Intn(len(clubs))],
		PredictedScore: float64(int(score*10)) / 10,
	}
}
