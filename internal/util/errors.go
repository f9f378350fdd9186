package util

import "errors"

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrEmailRegistered = errors.New("该邮箱已被注册")

	ErrNotEnrolled               = errors.New("not enrolled in this assessment")
	ErrNotPublished              = errors.New("assessment not published or not accessible")
	ErrOutsideWindow             = errors.New("assessment outside its start/end window")
	ErrAlreadyCompleted          = errors.New("assessment already completed")
	ErrAttemptNotFound           = errors.New("attempt not found")
	ErrAttemptExpired            = errors.New("attempt expired")
	ErrInvalidQuestionForAttempt = errors.New("question does not belong to attempt")
	ErrNoQuestionsAvailable      = errors.New("no questions available")
	ErrUpstreamUnavailable       = errors.New("upstream unavailable")
	ErrPermissionDenied          = errors.New("permission denied")
)
