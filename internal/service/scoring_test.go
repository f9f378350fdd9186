package service

import (
	"context"
	"errors"
	"testing"

	"assess_edu_backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	verdict bool
	err     error
	calls   int
}

func (o *fakeOracle) JudgeEquivalence(ctx context.Context, submitted, canonical, language string) (bool, error) {
	o.calls++
	return o.verdict, o.err
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func choiceItem(id uint, order int, answer string) model.SnapshotItem {
	return model.SnapshotItem{
		BaseModel:     model.BaseModel{ID: id},
		OrderIndex:    order,
		QuestionType:  model.SingleChoice,
		Prompt:        "q",
		Answer:        answer,
		PositiveMarks: dec("1"),
		NegativeMarks: dec("0.5"),
	}
}

func answer(questionID uint, value string) model.AnswerRecord {
	return model.AnswerRecord{QuestionID: questionID, Value: value, ClientSeq: 1}
}

func TestEvaluate_SingleChoiceAndPolicies(t *testing.T) {
	items := []model.SnapshotItem{
		choiceItem(1, 0, "A"),
		choiceItem(2, 1, "B"),
		choiceItem(3, 2, "C"),
	}

	tests := []struct {
		name       string
		assessment model.Assessment
		answers    []model.AnswerRecord
		wantTotal  string
	}{
		{
			name:       "对一错一空一",
			assessment: model.Assessment{},
			answers:    []model.AnswerRecord{answer(1, "A"), answer(2, "C")},
			wantTotal:  "0.5", // +1 - 0.5 + 0
		},
		{
			name:       "空题计负分",
			assessment: model.Assessment{PenalizeUnanswered: true},
			answers:    []model.AnswerRecord{answer(1, "A"), answer(2, "C")},
			wantTotal:  "0", // +1 - 0.5 - 0.5
		},
		{
			name:       "全错不截断",
			assessment: model.Assessment{},
			answers:    []model.AnswerRecord{answer(1, "B"), answer(2, "C"), answer(3, "A")},
			wantTotal:  "-1.5",
		},
		{
			name:       "全错截断为零",
			assessment: model.Assessment{ClampToZero: true},
			answers:    []model.AnswerRecord{answer(1, "B"), answer(2, "C"), answer(3, "A")},
			wantTotal:  "0",
		},
		{
			name:       "空串视为未作答",
			assessment: model.Assessment{},
			answers:    []model.AnswerRecord{answer(1, "  ")},
			wantTotal:  "0",
		},
	}

	s := NewScoringService(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, results := s.Evaluate(context.Background(), &tt.assessment, items, tt.answers)
			assert.True(t, total.Equal(dec(tt.wantTotal)), "total = %s, want %s", total, tt.wantTotal)
			assert.Len(t, results, len(items))
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	items := []model.SnapshotItem{choiceItem(1, 0, "A"), choiceItem(2, 1, "B")}
	answers := []model.AnswerRecord{answer(1, "A"), answer(2, "A")}
	assessment := &model.Assessment{}

	s := NewScoringService(nil)
	first, _ := s.Evaluate(context.Background(), assessment, items, answers)
	for i := 0; i < 5; i++ {
		again, _ := s.Evaluate(context.Background(), assessment, items, answers)
		require.True(t, first.Equal(again))
	}
}

func TestEvaluate_TrueFalse(t *testing.T) {
	item := model.SnapshotItem{
		BaseModel:     model.BaseModel{ID: 1},
		QuestionType:  model.TrueFalse,
		Answer:        "true",
		PositiveMarks: dec("2"),
		NegativeMarks: dec("1"),
	}
	s := NewScoringService(nil)

	total, results := s.Evaluate(context.Background(), &model.Assessment{},
		[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, "true")})
	assert.True(t, total.Equal(dec("2")))
	assert.True(t, results[0].Correct)

	total, _ = s.Evaluate(context.Background(), &model.Assessment{},
		[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, "false")})
	assert.True(t, total.Equal(dec("-1")))
}

func TestEvaluate_Matching(t *testing.T) {
	item := model.SnapshotItem{
		BaseModel:     model.BaseModel{ID: 1},
		QuestionType:  model.Matching,
		Answer:        `["x","y","z"]`,
		PositiveMarks: dec("3"),
		NegativeMarks: dec("1"),
	}
	s := NewScoringService(nil)

	tests := []struct {
		name      string
		value     string
		wantScore string
		correct   bool
	}{
		{"全对", `["x","y","z"]`, "3", true},
		{"一对错全题不得分", `["x","z","y"]`, "-1", false},
		{"长度不符", `["x","y"]`, "-1", false},
		{"非法 JSON", `not-json`, "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, results := s.Evaluate(context.Background(), &model.Assessment{},
				[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, tt.value)})
			assert.True(t, total.Equal(dec(tt.wantScore)), "total = %s", total)
			assert.Equal(t, tt.correct, results[0].Correct)
		})
	}
}

func TestEvaluate_ShortAnswerNormalization(t *testing.T) {
	item := model.SnapshotItem{
		BaseModel:     model.BaseModel{ID: 1},
		QuestionType:  model.ShortAnswer,
		Answer:        "Photosynthesis",
		PositiveMarks: dec("2"),
		NegativeMarks: dec("0"),
	}
	s := NewScoringService(nil)

	for _, value := range []string{
		"photosynthesis",
		"  Photosynthesis  ",
		`"photosynthesis"`,
		"PHOTOSYNTHESIS",
	} {
		_, results := s.Evaluate(context.Background(), &model.Assessment{},
			[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, value)})
		assert.True(t, results[0].Correct, "value %q should match", value)
	}
}

func TestEvaluate_ShortAnswerOracle(t *testing.T) {
	item := model.SnapshotItem{
		BaseModel:     model.BaseModel{ID: 1},
		QuestionType:  model.ShortAnswer,
		Answer:        "water",
		PositiveMarks: dec("2"),
		NegativeMarks: dec("1"),
	}

	t.Run("判定为等价", func(t *testing.T) {
		oracle := &fakeOracle{verdict: true}
		s := NewScoringService(oracle)
		_, results := s.Evaluate(context.Background(), &model.Assessment{},
			[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, "H2O")})
		assert.True(t, results[0].Correct)
		assert.Equal(t, 1, oracle.calls)
	})

	t.Run("精确匹配命中时不调用判定", func(t *testing.T) {
		oracle := &fakeOracle{verdict: false}
		s := NewScoringService(oracle)
		_, results := s.Evaluate(context.Background(), &model.Assessment{},
			[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, "Water")})
		assert.True(t, results[0].Correct)
		assert.Equal(t, 0, oracle.calls)
	})

	t.Run("判定不可用降级为精确匹配", func(t *testing.T) {
		oracle := &fakeOracle{err: errors.New("upstream down")}
		s := NewScoringService(oracle)
		total, results := s.Evaluate(context.Background(), &model.Assessment{},
			[]model.SnapshotItem{item}, []model.AnswerRecord{answer(1, "H2O")})
		assert.False(t, results[0].Correct)
		assert.True(t, total.Equal(dec("-1")))
	})
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Hello World  ", "hello world"},
		{`"quoted"`, "quoted"},
		{"'quoted'", "quoted"},
		{"Multi   space\ttext", "multi space text"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAnswer(tt.in))
	}
}
