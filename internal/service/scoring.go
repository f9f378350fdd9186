package service

import (
	"context"
	"encoding/json"
	"strings"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/pkg/logger"
	"assess_edu_backend/pkg/monitoring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ScoringService 交卷时一次性判分。所有金额运算走 decimal，
// 同一份快照加同一批答案永远得到同一份结果。
type ScoringService struct {
	oracle EquivalenceOracle // nil 表示未启用语义判定
}

func NewScoringService(oracle EquivalenceOracle) *ScoringService {
	return &ScoringService{oracle: oracle}
}

// QuestionResult 单题判分明细
type QuestionResult struct {
	QuestionID uint            `json:"questionId"`
	OrderIndex int             `json:"orderIndex"`
	Answered   bool            `json:"answered"`
	Correct    bool            `json:"correct"`
	Score      decimal.Decimal `json:"score"`
}

// Evaluate 逐题判分并按测评策略聚合总分。
// 语义判定失败不会让交卷失败：降级为精确匹配并计数。
func (s *ScoringService) Evaluate(ctx context.Context, assessment *model.Assessment, items []model.SnapshotItem, answers []model.AnswerRecord) (decimal.Decimal, []QuestionResult) {
	byQuestion := make(map[uint]*model.AnswerRecord, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	total := decimal.Zero
	results := make([]QuestionResult, 0, len(items))

	for _, item := range items {
		res := QuestionResult{QuestionID: item.ID, OrderIndex: item.OrderIndex, Score: decimal.Zero}

		rec, ok := byQuestion[item.ID]
		answered := ok && strings.TrimSpace(rec.Value) != ""
		res.Answered = answered

		switch {
		case !answered:
			if assessment.PenalizeUnanswered {
				res.Score = item.NegativeMarks.Neg()
			}
		case s.checkAnswer(ctx, &item, rec.Value, assessment.Language):
			res.Correct = true
			res.Score = item.PositiveMarks
		default:
			res.Score = item.NegativeMarks.Neg()
		}

		total = total.Add(res.Score)
		results = append(results, res)
	}

	if assessment.ClampToZero && total.IsNegative() {
		total = decimal.Zero
	}
	return total, results
}

func (s *ScoringService) checkAnswer(ctx context.Context, item *model.SnapshotItem, value, language string) bool {
	switch item.QuestionType {
	case model.SingleChoice, model.TrueFalse:
		return value == item.Answer
	case model.Matching:
		return matchingCorrect(item.Answer, value)
	case model.ShortAnswer:
		return s.shortAnswerCorrect(ctx, item, value, language)
	}
	return false
}

// matchingCorrect 提交与标准答案都是按左列顺序的右值数组，逐位全对才得分
func matchingCorrect(canonical, submitted string) bool {
	var want, got []string
	if err := json.Unmarshal([]byte(canonical), &want); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(submitted), &got); err != nil {
		return false
	}
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// shortAnswerCorrect 先归一化精确比对，不等再走语义判定。
// 判定器不可用时维持精确比对的结论（fail closed）。
func (s *ScoringService) shortAnswerCorrect(ctx context.Context, item *model.SnapshotItem, value, language string) bool {
	if normalizeAnswer(value) == normalizeAnswer(item.Answer) {
		return true
	}
	if s.oracle == nil {
		return false
	}

	verdict, err := s.oracle.JudgeEquivalence(ctx, value, item.Answer, language)
	if err != nil {
		monitoring.OracleFallbacks.Inc()
		logger.Log.Warn("语义判定不可用，降级为精确匹配",
			zap.Uint("questionID", item.ID),
			zap.Error(err))
		return false
	}
	return verdict
}

// normalizeAnswer 主观题比较用归一化：剥一层成对引号，再走通用归一化
func normalizeAnswer(s string) string {
	t := strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"}} {
		if len(t) >= 2 && strings.HasPrefix(t, pair[0]) && strings.HasSuffix(t, pair[1]) {
			t = t[len(pair[0]) : len(t)-len(pair[1])]
			break
		}
	}
	return normalizeText(t)
}
