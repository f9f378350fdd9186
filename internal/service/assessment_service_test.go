package service

import (
	"testing"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/repository"
	"assess_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssessmentFixture(t *testing.T) (*AssessmentService, *repository.UserRepository, model.User, model.User) {
	t.Helper()
	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)

	teacher := model.User{Name: "teacher", Email: "t@example.com", Password: "x", Role: model.Teacher}
	require.NoError(t, userRepo.Create(&teacher))
	student := model.User{Name: "student", Email: "s@example.com", Password: "x", Role: model.Student}
	require.NoError(t, userRepo.Create(&student))

	return NewAssessmentService(assessmentRepo, userRepo, newFakeClock()), userRepo, teacher, student
}

func validInput() *AssessmentInput {
	return &AssessmentInput{
		Title:    "Chemistry quiz",
		Language: "en",
		Blocks: []BlockInput{
			{QuestionType: model.SingleChoice, QuestionCount: 5, SecondsPerQuestion: 30, OptionCount: 4, PositiveMarks: "1", NegativeMarks: "0.25"},
			{QuestionType: model.ShortAnswer, QuestionCount: 2, SecondsPerQuestion: 120, PositiveMarks: "3", NegativeMarks: "0"},
		},
	}
}

func TestAssessmentCreate(t *testing.T) {
	svc, _, teacher, _ := newAssessmentFixture(t)

	created, err := svc.Create(teacher.ID, validInput())
	require.NoError(t, err)
	assert.False(t, created.IsPublished)
	require.Len(t, created.Blocks, 2)
	assert.Equal(t, 0, created.Blocks[0].Order)
	assert.Equal(t, 1, created.Blocks[1].Order)
	assert.Equal(t, 5*30+2*120, created.DurationSeconds())
}

func TestAssessmentCreate_Validation(t *testing.T) {
	svc, _, teacher, _ := newAssessmentFixture(t)

	tests := []struct {
		name   string
		mutate func(*AssessmentInput)
	}{
		{"单选缺选项数", func(in *AssessmentInput) { in.Blocks[0].OptionCount = 1 }},
		{"负的分值", func(in *AssessmentInput) { in.Blocks[0].PositiveMarks = "-1" }},
		{"分值非数字", func(in *AssessmentInput) { in.Blocks[0].PositiveMarks = "abc" }},
		{"未知题型", func(in *AssessmentInput) { in.Blocks[0].QuestionType = "essay" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			_, err := svc.Create(teacher.ID, input)
			assert.Error(t, err)
		})
	}
}

func TestAssessmentUpdate_LockedAfterPublish(t *testing.T) {
	svc, _, teacher, student := newAssessmentFixture(t)

	created, err := svc.Create(teacher.ID, validInput())
	require.NoError(t, err)

	// 发布前可改
	input := validInput()
	input.Title = "Renamed"
	updated, err := svc.Update(teacher.ID, created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	// 非创建者不可改
	_, err = svc.Update(student.ID, created.ID, input)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	published, err := svc.Publish(teacher.ID, created.ID, true)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)

	_, err = svc.Update(teacher.ID, created.ID, input)
	assert.Error(t, err)
}

func TestAssessmentEnroll_Idempotent(t *testing.T) {
	svc, userRepo, teacher, student := newAssessmentFixture(t)

	created, err := svc.Create(teacher.ID, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Enroll(teacher.ID, created.ID, student.ID))
	require.NoError(t, svc.Enroll(teacher.ID, created.ID, student.ID))

	enrolled, err := userRepo.IsEnrolled(student.ID, created.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	// 学生无权维护名单
	err = svc.Enroll(student.ID, created.ID, teacher.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
