package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;default:'student'" json:"role"`
	Language  string    `gorm:"size:10;default:'en'" json:"language"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// Enrollment 学生与测评的选课关系，开始作答前的前置校验依据
type Enrollment struct {
	BaseModel
	UserID       uint `gorm:"index;type:bigint unsigned;uniqueIndex:idx_enroll_user_assessment" json:"userId"`
	AssessmentID uint `gorm:"index;type:bigint unsigned;uniqueIndex:idx_enroll_user_assessment" json:"assessmentId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
