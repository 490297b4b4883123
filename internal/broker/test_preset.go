package broker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/faithleysath/aigmbot/internal/llmclient"
)

// defaultTestTimeout bounds a test_preset probe call (§4.3).
const defaultTestTimeout = 30 * time.Second

// TestPreset issues a minimal completion through client and maps
// common failure signatures to curated, provider-payload-free
// messages (§4.3). It never returns the raw provider error text.
func TestPreset(ctx context.Context, client *llmclient.Client, p Preset) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	messages := []llmclient.Message{
		{Role: "system", Content: "helpful"},
		{Role: "user", Content: "Hello"},
	}
	content, _, _, err := client.GetCompletion(ctx, messages, llmclient.Credentials{
		Model:   p.Model,
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
	})
	if err == nil {
		return content, nil
	}
	return "", errors.New(classifyTestFailure(err))
}

// classifyTestFailure maps a probe failure to a curated message,
// checking openai.Error status codes the way the teacher's
// pkg/aierrors classifiers do, before falling back to a generic class.
func classifyTestFailure(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return "API 密钥无效"
		case apiErr.StatusCode == 404:
			return "找不到该模型或接口地址"
		case apiErr.StatusCode == 429:
			return "请求过于频繁, 请稍后再试"
		case apiErr.StatusCode == 408:
			return "请求超时"
		case apiErr.StatusCode >= 500:
			return "服务提供方暂时不可用"
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "连接超时"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "连接超时"
	}

	return "预设测试失败: 未知错误"
}
