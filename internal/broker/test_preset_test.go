package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/openai/openai-go/v3"
)

func TestClassifyTestFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", &openai.Error{StatusCode: 401}, "API 密钥无效"},
		{"forbidden", &openai.Error{StatusCode: 403}, "API 密钥无效"},
		{"not found", &openai.Error{StatusCode: 404}, "找不到该模型或接口地址"},
		{"rate limited", &openai.Error{StatusCode: 429}, "请求过于频繁, 请稍后再试"},
		{"request timeout", &openai.Error{StatusCode: 408}, "请求超时"},
		{"server error", &openai.Error{StatusCode: 503}, "服务提供方暂时不可用"},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), "连接超时"},
		{"unclassified", errors.New("boom"), "预设测试失败: 未知错误"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyTestFailure(c.err); got != c.want {
				t.Errorf("classifyTestFailure(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}
