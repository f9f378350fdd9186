package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"assess_edu_backend/internal/config"
	"assess_edu_backend/internal/model"
	"assess_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func newTestClient(url string, maxRetries int) *AIClient {
	return NewAIClient(config.AIConfig{
		BaseURL:        url,
		APIKey:         "test-key",
		Model:          "test-model",
		TimeoutSeconds: 5,
		MaxRetries:     maxRetries,
	})
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chatResponse("hello")))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	out, err := client.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 3, calls)
}

func TestComplete_GivesUpAfterRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.Complete(context.Background(), "sys", "prompt")
	assert.True(t, errors.Is(err, util.ErrUpstreamUnavailable))
	assert.Equal(t, 3, calls) // 首次 + 两次重试
}

func TestComplete_BadRequestNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Complete(context.Background(), "sys", "prompt")
	require.Error(t, err)
	assert.False(t, errors.Is(err, util.ErrUpstreamUnavailable))
	assert.Equal(t, 1, calls)
}

func TestGenerateQuestions_ParsesAndFilters(t *testing.T) {
	payload := `[
		{"prompt": "good one", "options": [{"key":"A","text":"a"},{"key":"B","text":"b"}], "answer": "A"},
		{"prompt": "answer not an option", "options": [{"key":"A","text":"a"},{"key":"B","text":"b"}], "answer": "Z"},
		{"prompt": "", "options": [{"key":"A","text":"a"},{"key":"B","text":"b"}], "answer": "A"}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(payload)))
	}))
	defer server.Close()

	source := NewAIQuestionSource(newTestClient(server.URL, 0))
	block := &model.QuestionBlock{QuestionType: model.SingleChoice, QuestionCount: 3, OptionCount: 2}

	questions, err := source.GenerateQuestions(context.Background(), block, "Biology", "en")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "good one", questions[0].Prompt)
}

func TestGenerateQuestions_StripsCodeFence(t *testing.T) {
	payload := "```json\n[{\"prompt\": \"tf\", \"answer\": \"true\"}]\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(payload)))
	}))
	defer server.Close()

	source := NewAIQuestionSource(newTestClient(server.URL, 0))
	block := &model.QuestionBlock{QuestionType: model.TrueFalse, QuestionCount: 1}

	questions, err := source.GenerateQuestions(context.Background(), block, "Biology", "en")
	require.NoError(t, err)
	require.Len(t, questions, 1)
}

func TestGenerateQuestions_EmptyArrayIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("[]")))
	}))
	defer server.Close()

	source := NewAIQuestionSource(newTestClient(server.URL, 0))
	block := &model.QuestionBlock{QuestionType: model.ShortAnswer, QuestionCount: 2}

	questions, err := source.GenerateQuestions(context.Background(), block, "Biology", "en")
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestValidGenerated_Matching(t *testing.T) {
	block := &model.QuestionBlock{QuestionType: model.Matching, PairCount: 2}

	assert.True(t, validGenerated(&GeneratedQuestion{
		Prompt: "m",
		Pairs:  []MatchPair{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}},
	}, block))

	// 右值重复不可判分
	assert.False(t, validGenerated(&GeneratedQuestion{
		Prompt: "m",
		Pairs:  []MatchPair{{Left: "a", Right: "1"}, {Left: "b", Right: "1"}},
	}, block))

	assert.False(t, validGenerated(&GeneratedQuestion{
		Prompt: "m",
		Pairs:  []MatchPair{{Left: "a", Right: "1"}},
	}, block))
}

func TestJudgeEquivalence(t *testing.T) {
	var lastBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		lastBody, _ = json.Marshal(r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(chatResponse("YES")))
	}))
	defer server.Close()

	oracle := NewAIEquivalenceOracle(newTestClient(server.URL, 0), config.OracleConfig{Enabled: true, CacheTTLMinutes: 60}, nil)
	verdict, err := oracle.JudgeEquivalence(context.Background(), "H2O", "water", "en")
	require.NoError(t, err)
	assert.True(t, verdict)
	assert.Contains(t, string(lastBody), "test-key")
}

// 缓存键按归一化形式取哈希：大小写、首尾空白、成对引号差异命中同一键
func TestOracleCacheKey_Normalized(t *testing.T) {
	oracle := NewAIEquivalenceOracle(newTestClient("http://unused", 0), config.OracleConfig{Enabled: true}, nil)

	base := oracle.cacheKey("paris", "capital of france", "en")
	assert.Equal(t, base, oracle.cacheKey("  PARIS ", "\"Capital of France\"", "en"))
	assert.NotEqual(t, base, oracle.cacheKey("london", "capital of france", "en"))
	assert.NotEqual(t, base, oracle.cacheKey("paris", "capital of france", "fr"))
}
