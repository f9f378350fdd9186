package service

import (
	"assess_edu_backend/internal/model"
	"time"
)

// Clock 由生命周期管理用来取服务端时间，测试里可替换。
// 剩余时长永远从落库的 StartedAt 推导，客户端时钟不参与。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var SystemClock Clock = realClock{}

// RemainingSeconds max(0, 时长 - 已用时)
func RemainingSeconds(attempt *model.Attempt, now time.Time) int {
	if attempt.Terminal() {
		return 0
	}
	elapsed := int(now.Sub(attempt.StartedAt).Seconds())
	remaining := attempt.DurationSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
