package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 按题型返回预置题目
type fakeSource struct {
	byType map[model.QuestionType][]GeneratedQuestion
	err    error
}

func (s *fakeSource) GenerateQuestions(ctx context.Context, block *model.QuestionBlock, topic, language string) ([]GeneratedQuestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byType[block.QuestionType], nil
}

func choiceQuestions(n int) []GeneratedQuestion {
	out := make([]GeneratedQuestion, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, GeneratedQuestion{
			Prompt: fmt.Sprintf("choice question %d", i),
			Options: []model.ChoiceOption{
				{Key: "A", Text: "a"}, {Key: "B", Text: "b"}, {Key: "C", Text: "c"},
			},
			Answer: "B",
		})
	}
	return out
}

func testAssessment(blocks ...model.QuestionBlock) *model.Assessment {
	return &model.Assessment{
		BaseModel: model.BaseModel{ID: 7},
		Title:     "Biology basics",
		Language:  "en",
		Blocks:    blocks,
	}
}

func TestBuild_BlockOrderPreserved(t *testing.T) {
	source := &fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{
		model.SingleChoice: choiceQuestions(2),
		model.TrueFalse: {
			{Prompt: "tf one", Answer: "true"},
			{Prompt: "tf two", Answer: "false"},
		},
	}}
	builder := NewSnapshotBuilder(source)

	assessment := testAssessment(
		model.QuestionBlock{Order: 0, QuestionType: model.SingleChoice, QuestionCount: 2, SecondsPerQuestion: 30, PositiveMarks: dec("1"), NegativeMarks: dec("0")},
		model.QuestionBlock{Order: 1, QuestionType: model.TrueFalse, QuestionCount: 2, SecondsPerQuestion: 15, PositiveMarks: dec("1"), NegativeMarks: dec("0")},
	)

	items, warning, err := builder.Build(context.Background(), assessment, 42)
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.Len(t, items, 4)

	// 题块之间不混排：先两道单选，后两道判断
	for i, item := range items {
		assert.Equal(t, i, item.OrderIndex)
	}
	assert.Equal(t, model.SingleChoice, items[0].QuestionType)
	assert.Equal(t, model.SingleChoice, items[1].QuestionType)
	assert.Equal(t, model.TrueFalse, items[2].QuestionType)
	assert.Equal(t, model.TrueFalse, items[3].QuestionType)
}

func TestBuild_SeedReproducible(t *testing.T) {
	source := &fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{
		model.SingleChoice: choiceQuestions(10),
	}}
	builder := NewSnapshotBuilder(source)
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.SingleChoice, QuestionCount: 10, SecondsPerQuestion: 30,
		PositiveMarks: dec("1"), NegativeMarks: dec("0"), Shuffle: true,
	})

	first, _, err := builder.Build(context.Background(), assessment, 99)
	require.NoError(t, err)
	second, _, err := builder.Build(context.Background(), assessment, 99)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Prompt, second[i].Prompt)
	}
}

func TestBuild_DedupeAndShortfall(t *testing.T) {
	questions := choiceQuestions(5)
	// 两道题干归一化后相同，应只保留一道
	questions[3].Prompt = "  Choice   Question 0 "
	questions[3].Options = questions[0].Options
	questions[0].Prompt = "choice question 0"

	source := &fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{
		model.SingleChoice: questions,
	}}
	builder := NewSnapshotBuilder(source)
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.SingleChoice, QuestionCount: 5, SecondsPerQuestion: 30,
		PositiveMarks: dec("1"), NegativeMarks: dec("0"),
	})

	items, warning, err := builder.Build(context.Background(), assessment, 1)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.NotEmpty(t, warning)
}

func TestBuild_ZeroQuestions(t *testing.T) {
	builder := NewSnapshotBuilder(&fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{}})
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.SingleChoice, QuestionCount: 3, SecondsPerQuestion: 30,
		PositiveMarks: dec("1"), NegativeMarks: dec("0"),
	})

	_, _, err := builder.Build(context.Background(), assessment, 1)
	assert.ErrorIs(t, err, util.ErrNoQuestionsAvailable)
}

func TestBuild_SourceFailurePropagates(t *testing.T) {
	wrapped := fmt.Errorf("%w: boom", util.ErrUpstreamUnavailable)
	builder := NewSnapshotBuilder(&fakeSource{err: wrapped})
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.SingleChoice, QuestionCount: 3, SecondsPerQuestion: 30,
		PositiveMarks: dec("1"), NegativeMarks: dec("0"),
	})

	_, _, err := builder.Build(context.Background(), assessment, 1)
	assert.True(t, errors.Is(err, util.ErrUpstreamUnavailable))
}

func TestBuild_MatchingEncoding(t *testing.T) {
	source := &fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{
		model.Matching: {
			{
				Prompt: "match terms",
				Pairs: []MatchPair{
					{Left: "l1", Right: "r1"},
					{Left: "l2", Right: "r2"},
					{Left: "l3", Right: "r3"},
				},
			},
		},
	}}
	builder := NewSnapshotBuilder(source)
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.Matching, QuestionCount: 1, SecondsPerQuestion: 60,
		PairCount: 3, PositiveMarks: dec("3"), NegativeMarks: dec("1"),
	})

	items, _, err := builder.Build(context.Background(), assessment, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var opts model.MatchingOptions
	require.NoError(t, json.Unmarshal(items[0].Options, &opts))
	assert.Equal(t, []string{"l1", "l2", "l3"}, opts.Left)
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, opts.Right)

	var canonical []string
	require.NoError(t, json.Unmarshal([]byte(items[0].Answer), &canonical))
	assert.Equal(t, []string{"r1", "r2", "r3"}, canonical)
}

func TestBuild_TrueFalseOptions(t *testing.T) {
	source := &fakeSource{byType: map[model.QuestionType][]GeneratedQuestion{
		model.TrueFalse: {{Prompt: "sky is blue", Answer: "true"}},
	}}
	builder := NewSnapshotBuilder(source)
	assessment := testAssessment(model.QuestionBlock{
		QuestionType: model.TrueFalse, QuestionCount: 1, SecondsPerQuestion: 10,
		PositiveMarks: dec("1"), NegativeMarks: dec("0"),
	})

	items, _, err := builder.Build(context.Background(), assessment, 1)
	require.NoError(t, err)

	var opts []model.ChoiceOption
	require.NoError(t, json.Unmarshal(items[0].Options, &opts))
	require.Len(t, opts, 2)
	assert.Equal(t, "true", opts[0].Key)
	assert.Equal(t, "false", opts[1].Key)
}
