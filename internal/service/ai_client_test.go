package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"assess_edu_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 配置热加载与进行中的补全调用并发，-race 下必须干净
func TestAIClient_UpdateConfigDuringCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("ok")))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Complete(context.Background(), "sys", "prompt")
		}(i)
		go func(i int) {
			defer wg.Done()
			client.UpdateConfig(config.AIConfig{
				BaseURL:        server.URL,
				APIKey:         fmt.Sprintf("key-%d", i),
				Model:          "test-model",
				TimeoutSeconds: 5 + i%3,
				MaxRetries:     0,
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

// 热加载后的新参数要体现在下一次调用上
func TestAIClient_UpdateConfigTakesEffect(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(chatResponse("ok")))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	client.UpdateConfig(config.AIConfig{
		BaseURL:        server.URL,
		APIKey:         "rotated-key",
		Model:          "test-model",
		TimeoutSeconds: 5,
		MaxRetries:     0,
	})

	_, err := client.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Bearer rotated-key", gotAuth)
}
