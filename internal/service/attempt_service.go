package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/repository"
	"assess_edu_backend/internal/util"
	"assess_edu_backend/pkg/logger"
	"assess_edu_backend/pkg/monitoring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService 作答生命周期：开卷/续答、自动保存、交卷、超时处理。
// 超时不靠后台定时器，任何一次触达时惰性检查并当场终结，
// 剩余时长永远由服务端的 StartedAt 推导。
type AttemptService struct {
	attemptRepo    *repository.AttemptRepository
	answerRepo     *repository.AnswerRepository
	assessmentRepo *repository.AssessmentRepository
	userRepo       *repository.UserRepository
	builder        *SnapshotBuilder
	scoring        *ScoringService
	clock          Clock
}

func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	assessmentRepo *repository.AssessmentRepository,
	userRepo *repository.UserRepository,
	builder *SnapshotBuilder,
	scoring *ScoringService,
	clock Clock,
) *AttemptService {
	if clock == nil {
		clock = SystemClock
	}
	return &AttemptService{
		attemptRepo:    attemptRepo,
		answerRepo:     answerRepo,
		assessmentRepo: assessmentRepo,
		userRepo:       userRepo,
		builder:        builder,
		scoring:        scoring,
		clock:          clock,
	}
}

// StudentQuestion 下发给作答端的题目视图，永远不带标准答案
type StudentQuestion struct {
	ID              uint               `json:"id"`
	OrderIndex      int                `json:"orderIndex"`
	QuestionType    model.QuestionType `json:"questionType"`
	Prompt          string             `json:"prompt"`
	Options         interface{}        `json:"options,omitempty"`
	PositiveMarks   decimal.Decimal    `json:"positiveMarks"`
	NegativeMarks   decimal.Decimal    `json:"negativeMarks"`
	SecondsAllotted int                `json:"secondsAllotted"`
}

// AttemptState 开卷/续答/进度查询的统一响应
type AttemptState struct {
	AttemptID        uint                `json:"attemptId"`
	Status           model.AttemptStatus `json:"status"`
	AttemptNumber    int                 `json:"attemptNumber"`
	Resumed          bool                `json:"resumed"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	AnsweredCount    int                 `json:"answeredCount"`
	TotalCount       int                 `json:"totalCount"`
	FidelityWarning  string              `json:"fidelityWarning,omitempty"`
	Questions        []StudentQuestion   `json:"questions,omitempty"`
}

// SaveAnswerResult 自动保存的回执
type SaveAnswerResult struct {
	Accepted         bool `json:"accepted"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

// QuestionBreakdown 交卷后的单题明细，此时才允许携带标准答案
type QuestionBreakdown struct {
	QuestionID      uint               `json:"questionId"`
	OrderIndex      int                `json:"orderIndex"`
	QuestionType    model.QuestionType `json:"questionType"`
	Prompt          string             `json:"prompt"`
	Answered        bool               `json:"answered"`
	Correct         bool               `json:"correct"`
	Score           decimal.Decimal    `json:"score"`
	SubmittedValue  string             `json:"submittedValue,omitempty"`
	CanonicalAnswer string             `json:"canonicalAnswer"`
}

// AttemptResult 交卷/复盘响应
type AttemptResult struct {
	AttemptID     uint                `json:"attemptId"`
	Status        model.AttemptStatus `json:"status"`
	EndReason     string              `json:"endReason"`
	TotalScore    decimal.Decimal     `json:"totalScore"`
	AnsweredCount int                 `json:"answeredCount"`
	TotalCount    int                 `json:"totalCount"`
	Breakdown     []QuestionBreakdown `json:"breakdown,omitempty"`
}

// StartOrResume 开卷。已有进行中的作答则原样续答（不重置计时、不重新组卷）。
// 组卷完全发生在作答记录落库之前：题源失败时不留任何痕迹。
// 并发重复开卷由唯一索引裁决，输家自动转续答。
func (s *AttemptService) StartOrResume(ctx context.Context, userID, assessmentID uint) (*AttemptState, error) {
	assessment, err := s.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotPublished
		}
		return nil, err
	}

	// 先找进行中的作答：窗口关闭不该斩断合法开卷的续答，
	// 前置校验只约束新开卷
	if active, err := s.attemptRepo.FindActive(userID, assessmentID); err == nil {
		return s.resume(ctx, active, assessment)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	if !assessment.IsPublished {
		return nil, util.ErrNotPublished
	}
	if !assessment.WindowOpen(now) {
		return nil, util.ErrOutsideWindow
	}
	enrolled, err := s.userRepo.IsEnrolled(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	if _, err := s.attemptRepo.FindLatestTerminal(userID, assessmentID); err == nil {
		return nil, util.ErrAlreadyCompleted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.startNew(ctx, userID, assessment, false)
}

func (s *AttemptService) startNew(ctx context.Context, userID uint, assessment *model.Assessment, preview bool) (*AttemptState, error) {
	count, err := s.attemptRepo.CountByUserAndAssessment(userID, assessment.ID)
	if err != nil {
		return nil, err
	}
	attemptNumber := int(count) + 1

	items, warning, err := s.builder.Build(ctx, assessment, shuffleSeed(userID, assessment.ID, attemptNumber))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	attempt := &model.Attempt{
		AssessmentID:    assessment.ID,
		UserID:          userID,
		AttemptNumber:   attemptNumber,
		Status:          model.AttemptInProgress,
		IsPreview:       preview,
		StartedAt:       now,
		DurationSeconds: assessment.DurationSeconds(),
		FidelityWarning: warning,
	}
	if !preview {
		one := uint8(1)
		attempt.ActiveKey = &one
	}

	if err := s.attemptRepo.CreateWithSnapshot(attempt, items); err != nil {
		// 并发开卷撞了唯一索引：另一条请求抢先创建，转续答
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			active, ferr := s.attemptRepo.FindActive(userID, assessment.ID)
			if ferr != nil {
				return nil, ferr
			}
			return s.resume(ctx, active, assessment)
		}
		return nil, err
	}
	attempt.Questions = items

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("开卷",
		zap.Uint("userID", userID),
		zap.Uint("assessmentID", assessment.ID),
		zap.Uint("attemptID", attempt.ID),
		zap.Int("questions", len(items)),
		zap.Bool("preview", preview))

	return s.buildState(attempt, false)
}

// resume 续答。已超时的作答先按 timeout 终结，再把终态返回给调用方。
func (s *AttemptService) resume(ctx context.Context, attempt *model.Attempt, assessment *model.Assessment) (*AttemptState, error) {
	now := s.clock.Now()
	if RemainingSeconds(attempt, now) == 0 && !attempt.Terminal() {
		if _, err := s.finalize(ctx, attempt, assessment, model.ReasonTimeout); err != nil {
			return nil, err
		}
		reloaded, err := s.attemptRepo.FindByID(attempt.ID)
		if err != nil {
			return nil, err
		}
		attempt = reloaded
	}
	return s.buildState(attempt, true)
}

func (s *AttemptService) buildState(attempt *model.Attempt, resumed bool) (*AttemptState, error) {
	answered, err := s.answerRepo.CountByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}

	questions := make([]StudentQuestion, 0, len(attempt.Questions))
	for _, item := range attempt.Questions {
		q := StudentQuestion{
			ID:              item.ID,
			OrderIndex:      item.OrderIndex,
			QuestionType:    item.QuestionType,
			Prompt:          item.Prompt,
			PositiveMarks:   item.PositiveMarks,
			NegativeMarks:   item.NegativeMarks,
			SecondsAllotted: item.SecondsAllotted,
		}
		if len(item.Options) > 0 {
			q.Options = item.Options
		}
		questions = append(questions, q)
	}

	return &AttemptState{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		AttemptNumber:    attempt.AttemptNumber,
		Resumed:          resumed,
		RemainingSeconds: RemainingSeconds(attempt, s.clock.Now()),
		AnsweredCount:    int(answered),
		TotalCount:       len(attempt.Questions),
		FidelityWarning:  attempt.FidelityWarning,
		Questions:        questions,
	}, nil
}

// SaveAnswer 自动保存。同题并发以 clientSeq 大者为准；
// 截止之后到达的保存触发惰性终结并被拒绝。
func (s *AttemptService) SaveAnswer(ctx context.Context, userID, attemptID, questionID uint, value string, clientSeq int64, timeSpent int) (*SaveAnswerResult, error) {
	attempt, assessment, err := s.loadOwned(userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Terminal() {
		return nil, terminalErr(attempt)
	}

	now := s.clock.Now()
	if RemainingSeconds(attempt, now) == 0 {
		if _, err := s.finalize(ctx, attempt, assessment, model.ReasonTimeout); err != nil {
			return nil, err
		}
		return nil, util.ErrAttemptExpired
	}

	if !questionInSnapshot(attempt, questionID) {
		return nil, util.ErrInvalidQuestionForAttempt
	}

	accepted, err := s.answerRepo.Upsert(&model.AnswerRecord{
		AttemptID:        attemptID,
		QuestionID:       questionID,
		Value:            value,
		ClientSeq:        clientSeq,
		TimeSpentSeconds: timeSpent,
	})
	if err != nil {
		return nil, err
	}

	outcome := "accepted"
	if !accepted {
		outcome = "stale"
	}
	monitoring.AnswersSaved.WithLabelValues(outcome).Inc()

	return &SaveAnswerResult{
		Accepted:         accepted,
		RemainingSeconds: RemainingSeconds(attempt, now),
	}, nil
}

// Submit 学生主动交卷。重复交卷幂等返回首次结果；
// 截止后到达的交卷按 timeout 终结。
func (s *AttemptService) Submit(ctx context.Context, userID, attemptID uint) (*AttemptResult, error) {
	attempt, assessment, err := s.loadOwned(userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Terminal() {
		return s.buildStoredResult(attempt, assessment)
	}

	reason := model.ReasonStudentSubmit
	if RemainingSeconds(attempt, s.clock.Now()) == 0 {
		reason = model.ReasonTimeout
	}
	return s.finalize(ctx, attempt, assessment, reason)
}

// Progress 进度查询，也承担惰性超时检查
func (s *AttemptService) Progress(ctx context.Context, userID, attemptID uint) (*AttemptState, error) {
	attempt, assessment, err := s.loadOwned(userID, attemptID)
	if err != nil {
		return nil, err
	}

	if !attempt.Terminal() && RemainingSeconds(attempt, s.clock.Now()) == 0 {
		if _, err := s.finalize(ctx, attempt, assessment, model.ReasonTimeout); err != nil {
			return nil, err
		}
		reloaded, err := s.attemptRepo.FindByID(attemptID)
		if err != nil {
			return nil, err
		}
		attempt = reloaded
	}
	return s.buildState(attempt, false)
}

// Review 交卷后的复盘：带提交值与标准答案的完整明细。
// 进行中禁止访问，防止借复盘偷看答案。
func (s *AttemptService) Review(ctx context.Context, userID, attemptID uint) (*AttemptResult, error) {
	attempt, assessment, err := s.loadOwned(userID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Terminal() {
		return nil, util.ErrPermissionDenied
	}
	return s.buildStoredResult(attempt, assessment)
}

// StartPreview 教师预览卷：跳过发布/窗口/名单校验，不占用唯一作答名额
func (s *AttemptService) StartPreview(ctx context.Context, teacherID, assessmentID uint) (*AttemptState, error) {
	assessment, err := s.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.CreatorID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return s.startNew(ctx, teacherID, assessment, true)
}

func (s *AttemptService) DeletePreview(teacherID, attemptID uint) error {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return err
	}
	if attempt.UserID != teacherID {
		return util.ErrPermissionDenied
	}
	if err := s.attemptRepo.DeletePreview(attemptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return err
	}
	return nil
}

// ListResults 教师查看某测评的全部作答（预览卷除外）
func (s *AttemptService) ListResults(teacherID, assessmentID uint, page, limit int) ([]model.Attempt, int64, error) {
	assessment, err := s.assessmentRepo.FindByID(assessmentID)
	if err != nil {
		return nil, 0, err
	}
	if assessment.CreatorID != teacherID {
		return nil, 0, util.ErrPermissionDenied
	}
	return s.attemptRepo.ListByAssessment(assessmentID, page, limit)
}

// finalize 终结作答：一次性读全量答案、判分、条件更新转终态、锁定单题结果。
// 条件更新没抢到说明并发方已完成，重读后返回既有结果，保证幂等。
func (s *AttemptService) finalize(ctx context.Context, attempt *model.Attempt, assessment *model.Assessment, reason model.FinalizeReason) (*AttemptResult, error) {
	answers, err := s.answerRepo.ListByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}

	total, results := s.scoring.Evaluate(ctx, assessment, attempt.Questions, answers)

	status := model.AttemptCompleted
	if reason == model.ReasonTimeout {
		status = model.AttemptExpired
	}

	now := s.clock.Now()
	won := false
	err = s.attemptRepo.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.attemptRepo.MarkFinalized(tx, attempt.ID, status, reason, total, now)
		if err != nil {
			return err
		}
		won = ok
		if !ok {
			return nil
		}
		for _, res := range results {
			if !res.Answered {
				continue
			}
			if err := s.answerRepo.LockScore(tx, attempt.ID, res.QuestionID, res.Correct, res.Score); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !won {
		reloaded, err := s.attemptRepo.FindByID(attempt.ID)
		if err != nil {
			return nil, err
		}
		return s.buildStoredResult(reloaded, assessment)
	}

	monitoring.AttemptsFinalized.WithLabelValues(string(reason)).Inc()
	logger.Log.Info("交卷",
		zap.Uint("attemptID", attempt.ID),
		zap.String("reason", string(reason)),
		zap.String("totalScore", total.String()))

	return s.buildResult(attempt, status, string(reason), total, results, answers), nil
}

func (s *AttemptService) buildResult(attempt *model.Attempt, status model.AttemptStatus, reason string, total decimal.Decimal, results []QuestionResult, answers []model.AnswerRecord) *AttemptResult {
	byQuestion := make(map[uint]*model.AnswerRecord, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}
	byResult := make(map[uint]*QuestionResult, len(results))
	for i := range results {
		byResult[results[i].QuestionID] = &results[i]
	}

	answered := 0
	breakdown := make([]QuestionBreakdown, 0, len(attempt.Questions))
	for _, item := range attempt.Questions {
		entry := QuestionBreakdown{
			QuestionID:      item.ID,
			OrderIndex:      item.OrderIndex,
			QuestionType:    item.QuestionType,
			Prompt:          item.Prompt,
			Score:           decimal.Zero,
			CanonicalAnswer: item.Answer,
		}
		if res, ok := byResult[item.ID]; ok {
			entry.Answered = res.Answered
			entry.Correct = res.Correct
			entry.Score = res.Score
		}
		if rec, ok := byQuestion[item.ID]; ok {
			entry.SubmittedValue = rec.Value
		}
		if entry.Answered {
			answered++
		}
		breakdown = append(breakdown, entry)
	}

	return &AttemptResult{
		AttemptID:     attempt.ID,
		Status:        status,
		EndReason:     reason,
		TotalScore:    total,
		AnsweredCount: answered,
		TotalCount:    len(attempt.Questions),
		Breakdown:     breakdown,
	}
}

// buildStoredResult 从已落库的判分结果重建响应，与首次交卷的返回一致
func (s *AttemptService) buildStoredResult(attempt *model.Attempt, assessment *model.Assessment) (*AttemptResult, error) {
	answers, err := s.answerRepo.ListByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}

	results := make([]QuestionResult, 0, len(attempt.Questions))
	for _, item := range attempt.Questions {
		res := QuestionResult{QuestionID: item.ID, OrderIndex: item.OrderIndex, Score: decimal.Zero}
		for i := range answers {
			rec := &answers[i]
			if rec.QuestionID != item.ID {
				continue
			}
			if strings.TrimSpace(rec.Value) != "" {
				res.Answered = true
				if rec.IsCorrect != nil {
					res.Correct = *rec.IsCorrect
				}
				res.Score = rec.Score
			}
			break
		}
		if !res.Answered && assessment.PenalizeUnanswered {
			res.Score = item.NegativeMarks.Neg()
		}
		results = append(results, res)
	}

	return s.buildResult(attempt, attempt.Status, attempt.EndReason, attempt.TotalScore, results, answers), nil
}

// loadOwned 取作答记录并校验归属。他人的作答一律按不存在处理，不泄露存在性。
func (s *AttemptService) loadOwned(userID, attemptID uint) (*model.Attempt, *model.Assessment, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrAttemptNotFound
		}
		return nil, nil, err
	}
	if attempt.UserID != userID {
		return nil, nil, util.ErrAttemptNotFound
	}

	assessment, err := s.assessmentRepo.FindByID(attempt.AssessmentID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, assessment, nil
}

func terminalErr(attempt *model.Attempt) error {
	if attempt.Status == model.AttemptExpired {
		return util.ErrAttemptExpired
	}
	return util.ErrAlreadyCompleted
}

func questionInSnapshot(attempt *model.Attempt, questionID uint) bool {
	for _, item := range attempt.Questions {
		if item.ID == questionID {
			return true
		}
	}
	return false
}

// shuffleSeed 同一 (学生, 测评, 第几次) 组卷可复现
func shuffleSeed(userID, assessmentID uint, attemptNumber int) int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range []uint64{uint64(userID), uint64(assessmentID), uint64(attemptNumber)} {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}
