package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	Matching     QuestionType = "matching"
	ShortAnswer  QuestionType = "short_answer"
)

// swagger:model Assessment
type Assessment struct {
	BaseModel
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Language    string     `gorm:"size:10;default:'en'" json:"language"`
	CreatorID   uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
	IsPublished bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	StartAt     *time.Time `json:"startAt,omitempty"` // 可选作答窗口
	EndAt       *time.Time `json:"endAt,omitempty"`

	// 计分策略（来源系统中此处各接口行为不一致，这里收敛为显式配置）
	ClampToZero        bool `gorm:"default:false" json:"clampToZero"`        // 总分是否截断为 >= 0
	PenalizeUnanswered bool `gorm:"default:false" json:"penalizeUnanswered"` // 未作答是否扣负分

	Blocks []QuestionBlock `gorm:"foreignKey:AssessmentID" json:"blocks,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// DurationSeconds 整卷时长 = 各题块 题数 × 单题时长 之和
func (a *Assessment) DurationSeconds() int {
	total := 0
	for _, b := range a.Blocks {
		total += b.QuestionCount * b.SecondsPerQuestion
	}
	return total
}

// WindowOpen 判断 now 是否落在作答窗口内（未配置则始终开放）
func (a *Assessment) WindowOpen(now time.Time) bool {
	if a.StartAt != nil && now.Before(*a.StartAt) {
		return false
	}
	if a.EndAt != nil && now.After(*a.EndAt) {
		return false
	}
	return true
}

// QuestionBlock 同一题型、同一计分规则的一组题目配置
// swagger:model QuestionBlock
type QuestionBlock struct {
	BaseModel
	AssessmentID       uint            `gorm:"index;type:bigint unsigned" json:"assessmentId"`
	Order              int             `gorm:"column:block_order;default:0" json:"order"`
	QuestionType       QuestionType    `gorm:"size:20;not null" json:"questionType"`
	QuestionCount      int             `gorm:"not null" json:"questionCount"`
	SecondsPerQuestion int             `gorm:"not null" json:"secondsPerQuestion"`
	OptionCount        int             `gorm:"default:0" json:"optionCount"` // 单选题选项数
	PairCount          int             `gorm:"default:0" json:"pairCount"`   // 匹配题左右侧数量
	PositiveMarks      decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"positiveMarks"`
	NegativeMarks      decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"negativeMarks"`
	Shuffle            bool            `gorm:"default:true" json:"shuffle"` // 块内乱序，不跨块
}

func (QuestionBlock) TableName() string {
	return "question_blocks"
}
