package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"assess_edu_backend/internal/config"
	"assess_edu_backend/internal/util"
	"assess_edu_backend/pkg/monitoring"

	"github.com/cenkalti/backoff/v4"
)

// AIClient 封装 OpenAI 兼容的 chat/completions 非流式调用。
// 出题与等价判定共用，带超时和指数退避重试。
// 配置可经由热加载回调替换。
type AIClient struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewAIClient(cfg config.AIConfig) *AIClient {
	// 超时走每次请求的 context（见 completeOnce），client 本身不再持有
	// 可变状态，热加载期间的并发调用才不会踩到同一个 Timeout 字段
	return &AIClient{
		config: cfg,
		client: &http.Client{},
	}
}

// UpdateConfig 配置文件热加载时替换上游参数
func (c *AIClient) UpdateConfig(cfg config.AIConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
}

func (c *AIClient) snapshot() config.AIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete 单轮补全。重试只针对网络错误、5xx 和 429；
// 其余 4xx 视为请求本身有问题，立即放弃。
// 重试耗尽后返回 util.ErrUpstreamUnavailable，调用方据此决定兜底。
func (c *AIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := c.snapshot()

	var (
		content   string
		transient bool
	)

	op := func() error {
		out, err := c.completeOnce(ctx, &cfg, system, prompt)
		if err != nil {
			_, permanent := err.(*backoff.PermanentError)
			transient = !permanent
			return err
		}
		content = out
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.MaxRetries)),
		ctx,
	)
	notify := func(err error, _ time.Duration) {
		monitoring.AIUpstreamRetries.Inc()
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		// 请求本身无效（4xx）原样返回，只有重试耗尽才算上游不可用
		if !transient {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", util.ErrUpstreamUnavailable, err)
	}
	return content, nil
}

func (c *AIClient) completeOnce(ctx context.Context, cfg *config.AIConfig, system, prompt string) (string, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", apiErr
		}
		return "", backoff.Permanent(apiErr)
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
