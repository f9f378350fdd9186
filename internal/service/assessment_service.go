package service

import (
	"errors"
	"fmt"
	"time"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/repository"
	"assess_edu_backend/internal/util"

	"gorm.io/gorm"
)

// AssessmentService 教师侧的测评定义维护。
// 发布后结构锁定：题块改动只允许发生在发布之前。
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	userRepo       *repository.UserRepository
	clock          Clock
}

func NewAssessmentService(assessmentRepo *repository.AssessmentRepository, userRepo *repository.UserRepository, clock Clock) *AssessmentService {
	if clock == nil {
		clock = SystemClock
	}
	return &AssessmentService{assessmentRepo: assessmentRepo, userRepo: userRepo, clock: clock}
}

type BlockInput struct {
	QuestionType       model.QuestionType `json:"questionType" binding:"required"`
	QuestionCount      int                `json:"questionCount" binding:"required,min=1"`
	SecondsPerQuestion int                `json:"secondsPerQuestion" binding:"required,min=1"`
	OptionCount        int                `json:"optionCount"`
	PairCount          int                `json:"pairCount"`
	PositiveMarks      string             `json:"positiveMarks" binding:"required"`
	NegativeMarks      string             `json:"negativeMarks" binding:"required"`
	Shuffle            *bool              `json:"shuffle"`
}

type AssessmentInput struct {
	Title              string       `json:"title" binding:"required"`
	Description        string       `json:"description"`
	Language           string       `json:"language"`
	StartAt            *time.Time   `json:"startAt"`
	EndAt              *time.Time   `json:"endAt"`
	ClampToZero        bool         `json:"clampToZero"`
	PenalizeUnanswered bool         `json:"penalizeUnanswered"`
	Blocks             []BlockInput `json:"blocks" binding:"required,min=1,dive"`
}

func (s *AssessmentService) Create(creatorID uint, input *AssessmentInput) (*model.Assessment, error) {
	blocks, err := buildBlocks(input.Blocks)
	if err != nil {
		return nil, err
	}

	language := input.Language
	if language == "" {
		language = "en"
	}

	assessment := &model.Assessment{
		Title:              input.Title,
		Description:        input.Description,
		Language:           language,
		CreatorID:          creatorID,
		StartAt:            input.StartAt,
		EndAt:              input.EndAt,
		ClampToZero:        input.ClampToZero,
		PenalizeUnanswered: input.PenalizeUnanswered,
		Blocks:             blocks,
	}
	if err := s.assessmentRepo.CreateWithBlocks(assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *AssessmentService) Update(creatorID, id uint, input *AssessmentInput) (*model.Assessment, error) {
	assessment, err := s.owned(creatorID, id)
	if err != nil {
		return nil, err
	}
	if assessment.IsPublished {
		return nil, errors.New("已发布的测评不可修改结构")
	}

	blocks, err := buildBlocks(input.Blocks)
	if err != nil {
		return nil, err
	}

	assessment.Title = input.Title
	assessment.Description = input.Description
	if input.Language != "" {
		assessment.Language = input.Language
	}
	assessment.StartAt = input.StartAt
	assessment.EndAt = input.EndAt
	assessment.ClampToZero = input.ClampToZero
	assessment.PenalizeUnanswered = input.PenalizeUnanswered

	if err := s.assessmentRepo.Update(assessment); err != nil {
		return nil, err
	}
	if err := s.assessmentRepo.ReplaceBlocks(id, blocks); err != nil {
		return nil, err
	}
	return s.assessmentRepo.FindByID(id)
}

func (s *AssessmentService) Publish(creatorID, id uint, publish bool) (*model.Assessment, error) {
	assessment, err := s.owned(creatorID, id)
	if err != nil {
		return nil, err
	}
	if publish && len(assessment.Blocks) == 0 {
		return nil, errors.New("没有题块的测评不能发布")
	}
	if err := s.assessmentRepo.SetPublished(id, publish); err != nil {
		return nil, err
	}
	return s.assessmentRepo.FindByID(id)
}

func (s *AssessmentService) Get(id uint) (*model.Assessment, error) {
	assessment, err := s.assessmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotPublished
		}
		return nil, err
	}
	return assessment, nil
}

func (s *AssessmentService) List(page, limit int) ([]model.Assessment, int64, error) {
	return s.assessmentRepo.List(page, limit)
}

// Enroll 教师把学生纳入自己测评的可作答名单
func (s *AssessmentService) Enroll(creatorID, assessmentID, studentID uint) error {
	if _, err := s.owned(creatorID, assessmentID); err != nil {
		return err
	}
	if _, err := s.userRepo.FindByID(studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrUserNotFound
		}
		return err
	}
	if err := s.userRepo.Enroll(studentID, assessmentID); err != nil {
		// 重复加入名单视为成功
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

func (s *AssessmentService) owned(creatorID, id uint) (*model.Assessment, error) {
	assessment, err := s.assessmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotPublished
		}
		return nil, err
	}
	if assessment.CreatorID != creatorID {
		return nil, util.ErrPermissionDenied
	}
	return assessment, nil
}

func buildBlocks(inputs []BlockInput) ([]model.QuestionBlock, error) {
	blocks := make([]model.QuestionBlock, 0, len(inputs))
	for i, in := range inputs {
		block, err := buildBlock(&in)
		if err != nil {
			return nil, fmt.Errorf("第 %d 块: %w", i+1, err)
		}
		block.Order = i
		blocks = append(blocks, *block)
	}
	return blocks, nil
}

func buildBlock(in *BlockInput) (*model.QuestionBlock, error) {
	pos, err := util.ParseMarks(in.PositiveMarks)
	if err != nil {
		return nil, fmt.Errorf("正向分无效: %w", err)
	}
	neg, err := util.ParseMarks(in.NegativeMarks)
	if err != nil {
		return nil, fmt.Errorf("负向分无效: %w", err)
	}
	if pos.IsNegative() || neg.IsNegative() {
		return nil, errors.New("分值必须非负")
	}

	switch in.QuestionType {
	case model.SingleChoice:
		if in.OptionCount < 2 {
			return nil, errors.New("单选题至少需要两个选项")
		}
	case model.Matching:
		if in.PairCount < 2 {
			return nil, errors.New("匹配题至少需要两对")
		}
	case model.TrueFalse, model.ShortAnswer:
		// 无额外结构参数
	default:
		return nil, fmt.Errorf("不支持的题型: %s", in.QuestionType)
	}

	shuffle := true
	if in.Shuffle != nil {
		shuffle = *in.Shuffle
	}
	return &model.QuestionBlock{
		QuestionType:       in.QuestionType,
		QuestionCount:      in.QuestionCount,
		SecondsPerQuestion: in.SecondsPerQuestion,
		OptionCount:        in.OptionCount,
		PairCount:          in.PairCount,
		PositiveMarks:      pos,
		NegativeMarks:      neg,
		Shuffle:            shuffle,
	}, nil
}
