package platform

import (
	"os"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	LLMClient *openai.Client
)

// InitLLMClient 初始化 completion 服务客户端
// 瞬时错误（限流、5xx）由客户端自带的指数退避重试，最多 3 次
func InitLLMClient() {
	LLMClient = openai.NewClient(
		option.WithBaseURL(os.Getenv("LLM_BASE_URL")),
		option.WithAPIKey(os.Getenv("LLM_API_KEY")),
		option.WithMaxRetries(3),
	)
}

func LLMModel() string {
	if model := os.Getenv("LLM_MODEL"); model != "" {
		return model
	}
	return "gpt-4o-mini"
}

func LLMTemperature() float64 {
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			return t
		}
	}
	return 0.3
}

// LLMTimeout 单次 completion 调用的硬超时
func LLMTimeout() time.Duration {
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}
