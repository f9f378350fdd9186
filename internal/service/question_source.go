package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"assess_edu_backend/internal/model"
	"assess_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// GeneratedQuestion 题目来源返回的原始题目，尚未快照化。
type GeneratedQuestion struct {
	Prompt  string               `json:"prompt"`
	Options []model.ChoiceOption `json:"options,omitempty"`
	Pairs   []MatchPair          `json:"pairs,omitempty"`
	Answer  string               `json:"answer,omitempty"`
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// QuestionSource 按块生成候选题目。
// 返回空切片表示来源正常但无题可出，与失败是两回事。
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, block *model.QuestionBlock, topic, language string) ([]GeneratedQuestion, error)
}

type AIQuestionSource struct {
	client *AIClient
}

func NewAIQuestionSource(client *AIClient) *AIQuestionSource {
	return &AIQuestionSource{client: client}
}

const questionSystemPrompt = "You are an assessment item writer. " +
	"Respond with a single JSON array and nothing else: no markdown fences, no commentary."

func (s *AIQuestionSource) GenerateQuestions(ctx context.Context, block *model.QuestionBlock, topic, language string) ([]GeneratedQuestion, error) {
	prompt, err := buildGenerationPrompt(block, topic, language)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Complete(ctx, questionSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	questions, err := parseGeneratedQuestions(raw, block)
	if err != nil {
		logger.Log.Warn("题目来源返回无法解析",
			zap.String("type", string(block.QuestionType)),
			zap.Error(err))
		return nil, err
	}
	return questions, nil
}

func buildGenerationPrompt(block *model.QuestionBlock, topic, language string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d assessment questions about %q in %s.\n", block.QuestionCount, topic, language)

	switch block.QuestionType {
	case model.SingleChoice:
		fmt.Fprintf(&b, "Each question is single choice with exactly %d options keyed A, B, C, ...\n", block.OptionCount)
		b.WriteString(`Each array element: {"prompt": "...", "options": [{"key": "A", "text": "..."}], "answer": "A"}` + "\n")
		b.WriteString("The answer field holds the key of the single correct option.")
	case model.TrueFalse:
		b.WriteString("Each question is a true/false statement.\n")
		b.WriteString(`Each array element: {"prompt": "...", "answer": "true"}` + "\n")
		b.WriteString(`The answer field is exactly "true" or "false".`)
	case model.Matching:
		fmt.Fprintf(&b, "Each question asks to match %d left-hand items to %d right-hand items.\n", block.PairCount, block.PairCount)
		b.WriteString(`Each array element: {"prompt": "...", "pairs": [{"left": "...", "right": "..."}]}` + "\n")
		b.WriteString("Every left item matches exactly one right item and rights are pairwise distinct.")
	case model.ShortAnswer:
		b.WriteString("Each question expects a short free-text answer of a few words.\n")
		b.WriteString(`Each array element: {"prompt": "...", "answer": "..."}`)
	default:
		return "", fmt.Errorf("unsupported question type: %s", block.QuestionType)
	}
	return b.String(), nil
}

// parseGeneratedQuestions 剥掉模型偶尔附带的代码块围栏后解析，
// 并丢弃不满足题型结构约束的条目而不是整体报错。
func parseGeneratedQuestions(raw string, block *model.QuestionBlock) ([]GeneratedQuestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("解析生成结果失败: %w", err)
	}

	valid := make([]GeneratedQuestion, 0, len(parsed))
	for _, q := range parsed {
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		if !validGenerated(&q, block) {
			continue
		}
		valid = append(valid, q)
	}
	return valid, nil
}

func validGenerated(q *GeneratedQuestion, block *model.QuestionBlock) bool {
	switch block.QuestionType {
	case model.SingleChoice:
		if len(q.Options) < 2 || q.Answer == "" {
			return false
		}
		for _, opt := range q.Options {
			if opt.Key == q.Answer {
				return true
			}
		}
		return false
	case model.TrueFalse:
		return q.Answer == "true" || q.Answer == "false"
	case model.Matching:
		if len(q.Pairs) < 2 {
			return false
		}
		seen := make(map[string]bool, len(q.Pairs))
		for _, p := range q.Pairs {
			if p.Left == "" || p.Right == "" || seen[p.Right] {
				return false
			}
			seen[p.Right] = true
		}
		return true
	case model.ShortAnswer:
		return strings.TrimSpace(q.Answer) != ""
	}
	return false
}
