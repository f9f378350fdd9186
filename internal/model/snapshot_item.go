package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SnapshotItem 固化到一次作答上的单道题目，创建后不可变。
// 评分只依据本表与答题记录，和题库后续变动无关，因此可重放。
// swagger:model SnapshotItem
type SnapshotItem struct {
	BaseModel
	AttemptID    uint            `gorm:"not null;uniqueIndex:idx_snapshot_attempt_order" json:"attemptId"`
	OrderIndex   int             `gorm:"not null;uniqueIndex:idx_snapshot_attempt_order" json:"orderIndex"`
	QuestionType QuestionType    `gorm:"size:20;not null" json:"questionType"`
	Prompt       string          `gorm:"type:text;not null" json:"prompt"`
	Options      json.RawMessage `gorm:"type:json" json:"options,omitempty"` // 题型相关：选项键值 / 匹配左右列
	Answer       string          `gorm:"type:text" json:"-"`                 // 标准答案，进行中禁止下发

	PositiveMarks   decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"positiveMarks"`
	NegativeMarks   decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"negativeMarks"`
	SecondsAllotted int             `gorm:"not null" json:"secondsAllotted"`
}

func (SnapshotItem) TableName() string {
	return "snapshot_items"
}

// ChoiceOption 单选/判断题的一个选项
type ChoiceOption struct {
	Key  string `json:"key"` // "A"/"B"/... 判断题为 "true"/"false"
	Text string `json:"text"`
}

// MatchingOptions 匹配题的左右两列，右列为打乱后的候选
type MatchingOptions struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}
