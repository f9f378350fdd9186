package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"assess_edu_backend/internal/config"
	"assess_edu_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EquivalenceOracle 判断学生主观题作答与标准答案是否语义等价。
// 出错时由评分引擎兜底到精确匹配，因此实现只需尽力而为。
type EquivalenceOracle interface {
	JudgeEquivalence(ctx context.Context, submitted, canonical, language string) (bool, error)
}

type AIEquivalenceOracle struct {
	client *AIClient
	cfg    config.OracleConfig
	rdb    *redis.Client // 可为 nil，缓存降级为直调
}

func NewAIEquivalenceOracle(client *AIClient, cfg config.OracleConfig, rdb *redis.Client) *AIEquivalenceOracle {
	return &AIEquivalenceOracle{client: client, cfg: cfg, rdb: rdb}
}

const oracleSystemPrompt = "You are a strict grader comparing a student's short answer to the reference answer. " +
	"Judge semantic equivalence only. Reply with exactly YES or NO."

func (o *AIEquivalenceOracle) JudgeEquivalence(ctx context.Context, submitted, canonical, language string) (bool, error) {
	key := o.cacheKey(submitted, canonical, language)

	if verdict, ok := o.cachedVerdict(ctx, key); ok {
		return verdict, nil
	}

	prompt := fmt.Sprintf("Language: %s\nReference answer: %s\nStudent answer: %s\nAre they semantically equivalent?",
		language, canonical, submitted)

	raw, err := o.client.Complete(ctx, oracleSystemPrompt, prompt)
	if err != nil {
		return false, err
	}

	verdict := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), "YES")
	o.storeVerdict(ctx, key, verdict)
	return verdict, nil
}

// 按归一化后的形式取哈希，大小写和引号差异命中同一键
func (o *AIEquivalenceOracle) cacheKey(submitted, canonical, language string) string {
	h := sha256.Sum256([]byte(language + "\x00" + normalizeAnswer(canonical) + "\x00" + normalizeAnswer(submitted)))
	return "oracle:verdict:" + hex.EncodeToString(h[:])
}

// 缓存读写失败只记日志，判定照常进行
func (o *AIEquivalenceOracle) cachedVerdict(ctx context.Context, key string) (bool, bool) {
	if o.rdb == nil {
		return false, false
	}
	val, err := o.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("判定缓存读取失败", zap.Error(err))
		}
		return false, false
	}
	return val == "1", true
}

func (o *AIEquivalenceOracle) storeVerdict(ctx context.Context, key string, verdict bool) {
	if o.rdb == nil {
		return
	}
	val := "0"
	if verdict {
		val = "1"
	}
	ttl := time.Duration(o.cfg.CacheTTLMinutes) * time.Minute
	if err := o.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		logger.Log.Warn("判定缓存写入失败", zap.Error(err))
	}
}
