package model

import (
	"github.com/shopspring/decimal"
)

// AnswerRecord (attempt, question) 的最新一次提交，自动保存反复覆写，
// 交卷时由评分引擎锁定判分字段。
// swagger:model AnswerRecord
type AnswerRecord struct {
	BaseModel
	AttemptID  uint `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"attemptId"`
	QuestionID uint `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"questionId"`

	Value            string `gorm:"type:text" json:"value"`
	ClientSeq        int64  `gorm:"not null;default:0" json:"clientSeq"` // 同题乱序到达时的新旧判据
	TimeSpentSeconds int    `gorm:"default:0" json:"timeSpentSeconds"`

	// 判分结果，Final 置位后不再变动
	IsCorrect *bool           `json:"isCorrect,omitempty"`
	Score     decimal.Decimal `gorm:"type:decimal(6,2);default:0" json:"score"`
	Final     bool            `gorm:"default:false" json:"final"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}
