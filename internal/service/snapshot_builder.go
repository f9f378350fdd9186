package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/util"
	"assess_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// SnapshotBuilder 在开卷瞬间把各题块固化成一份不可变试卷。
// 任何失败都发生在开卷记录落库之前，不会留下半成品。
type SnapshotBuilder struct {
	source QuestionSource
}

func NewSnapshotBuilder(source QuestionSource) *SnapshotBuilder {
	return &SnapshotBuilder{source: source}
}

// Build 按块顺序生成题目快照。
//   - 块内按需乱序，绝不跨块混排
//   - 同块内题干归一化后去重
//   - 某块题量不足时继续组卷，返回保真度警告
//   - 全卷零题返回 ErrNoQuestionsAvailable
//
// seed 由调用方从 (学生, 测评, 第几次作答) 推导，同一次开卷可复现。
func (b *SnapshotBuilder) Build(ctx context.Context, assessment *model.Assessment, seed int64) ([]model.SnapshotItem, string, error) {
	var (
		items     []model.SnapshotItem
		shortfall []string
	)
	orderIndex := 0

	for blockIdx, block := range assessment.Blocks {
		generated, err := b.source.GenerateQuestions(ctx, &block, assessment.Title, assessment.Language)
		if err != nil {
			return nil, "", err
		}

		questions := dedupeByPrompt(generated)
		if len(questions) > block.QuestionCount {
			questions = questions[:block.QuestionCount]
		}
		if len(questions) < block.QuestionCount {
			shortfall = append(shortfall,
				fmt.Sprintf("第 %d 块(%s)应出 %d 题，实出 %d 题", blockIdx+1, block.QuestionType, block.QuestionCount, len(questions)))
		}

		rng := rand.New(rand.NewSource(seed + int64(blockIdx)))
		if block.Shuffle {
			rng.Shuffle(len(questions), func(i, j int) {
				questions[i], questions[j] = questions[j], questions[i]
			})
		}

		for _, q := range questions {
			item, err := buildItem(&block, &q, rng)
			if err != nil {
				return nil, "", err
			}
			item.OrderIndex = orderIndex
			orderIndex++
			items = append(items, *item)
		}
	}

	if len(items) == 0 {
		return nil, "", util.ErrNoQuestionsAvailable
	}

	warning := strings.Join(shortfall, "; ")
	if warning != "" {
		logger.Log.Warn("组卷题量不足",
			zap.Uint("assessmentID", assessment.ID),
			zap.String("detail", warning))
	}
	return items, warning, nil
}

// buildItem 将生成的题目编码为快照行：
// 单选/判断存选项列表，匹配题右列乱序后存两列，
// 标准答案统一编码为字符串（匹配题为按左列顺序的右值 JSON 数组）。
func buildItem(block *model.QuestionBlock, q *GeneratedQuestion, rng *rand.Rand) (*model.SnapshotItem, error) {
	item := &model.SnapshotItem{
		QuestionType:    block.QuestionType,
		Prompt:          strings.TrimSpace(q.Prompt),
		PositiveMarks:   block.PositiveMarks,
		NegativeMarks:   block.NegativeMarks,
		SecondsAllotted: block.SecondsPerQuestion,
	}

	switch block.QuestionType {
	case model.SingleChoice:
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		item.Options = opts
		item.Answer = q.Answer

	case model.TrueFalse:
		opts, err := json.Marshal([]model.ChoiceOption{
			{Key: "true", Text: "True"},
			{Key: "false", Text: "False"},
		})
		if err != nil {
			return nil, err
		}
		item.Options = opts
		item.Answer = q.Answer

	case model.Matching:
		left := make([]string, len(q.Pairs))
		canonical := make([]string, len(q.Pairs))
		for i, p := range q.Pairs {
			left[i] = p.Left
			canonical[i] = p.Right
		}
		right := append([]string(nil), canonical...)
		rng.Shuffle(len(right), func(i, j int) {
			right[i], right[j] = right[j], right[i]
		})
		opts, err := json.Marshal(model.MatchingOptions{Left: left, Right: right})
		if err != nil {
			return nil, err
		}
		answer, err := json.Marshal(canonical)
		if err != nil {
			return nil, err
		}
		item.Options = opts
		item.Answer = string(answer)

	case model.ShortAnswer:
		item.Answer = strings.TrimSpace(q.Answer)

	default:
		return nil, fmt.Errorf("unsupported question type: %s", block.QuestionType)
	}
	return item, nil
}

// dedupeByPrompt 题干去空白、折叠大小写后去重，保留先到者
func dedupeByPrompt(questions []GeneratedQuestion) []GeneratedQuestion {
	seen := make(map[string]bool, len(questions))
	out := make([]GeneratedQuestion, 0, len(questions))
	for _, q := range questions {
		key := normalizeText(q.Prompt)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// normalizeText 比较用归一化：去首尾空白、压缩连续空白、小写
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
