package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired" // 超时强制交卷，completed 的终态变体
)

type FinalizeReason string

const (
	ReasonStudentSubmit FinalizeReason = "student_submit"
	ReasonTimeout       FinalizeReason = "timeout"
)

// Attempt 一名学生对一份测评的一次限时作答
//
// ActiveKey 在 in_progress 期间为 1，交卷后置 NULL。MySQL 唯一索引中
// NULL 互不冲突，因此 (user_id, assessment_id, active_key) 的唯一索引
// 即是"同一学生同一测评至多一个进行中"的存储级约束。
// swagger:model Attempt
type Attempt struct {
	BaseModel
	AssessmentID  uint          `gorm:"not null;uniqueIndex:idx_attempt_active" json:"assessmentId"`
	UserID        uint          `gorm:"not null;index;uniqueIndex:idx_attempt_active" json:"userId"`
	ActiveKey     *uint8        `gorm:"uniqueIndex:idx_attempt_active" json:"-"`
	AttemptNumber int           `gorm:"not null;default:1" json:"attemptNumber"`
	Status        AttemptStatus `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	IsPreview     bool          `gorm:"default:false" json:"isPreview"` // 教师预览卷，可删除

	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationSeconds int        `gorm:"not null" json:"durationSeconds"`
	EndReason       string     `gorm:"size:20" json:"endReason,omitempty"`

	TotalScore      decimal.Decimal `gorm:"type:decimal(8,2);default:0" json:"totalScore"`
	FidelityWarning string          `gorm:"type:text" json:"fidelityWarning,omitempty"` // 题源返回不足时记录

	Questions []SnapshotItem `gorm:"foreignKey:AttemptID" json:"questions,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Terminal 是否已到终态（completed / expired）
func (a *Attempt) Terminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptExpired
}

// Deadline 交卷截止时刻
func (a *Attempt) Deadline() time.Time {
	return a.StartedAt.Add(time.Duration(a.DurationSeconds) * time.Second)
}
