package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/llm"
	"ai-recruiter-go/internal/logger"
)

// Stage 流水线阶段接口。
// Execute 原地修改状态并返回恰好一条执行追踪；
// 追踪日志的追加由编排器统一负责，阶段自身不写入。
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *WorkflowState) (*ExecutionTrace, error)
}

// BaseStage 所有阶段的公共基础：
// 阶段进出计时与日志、显式工具表、带退避重试的统一工具调用、
// 以及保证成败都会留下的调用记录。
type BaseStage struct {
	name        string
	tools       *ToolRegistry
	chatModel   model.ToolCallingChatModel
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      zerolog.Logger
}

// StageOption 定义BaseStage构造选项
type StageOption func(*BaseStage)

// WithRetryPolicy 覆盖默认的工具重试策略
func WithRetryPolicy(maxAttempts int, baseBackoff, maxBackoff time.Duration) StageOption {
	return func(b *BaseStage) {
		if maxAttempts > 0 {
			b.maxAttempts = maxAttempts
		}
		if baseBackoff > 0 {
			b.baseBackoff = baseBackoff
		}
		if maxBackoff > 0 {
			b.maxBackoff = maxBackoff
		}
	}
}

// NewBaseStage 创建阶段基础。tools为nil时使用空注册表。
func NewBaseStage(name string, chatModel model.ToolCallingChatModel, tools *ToolRegistry, opts ...StageOption) BaseStage {
	if tools == nil {
		tools = NewToolRegistry()
	}
	b := BaseStage{
		name:        name,
		tools:       tools,
		chatModel:   chatModel,
		maxAttempts: constants.ToolMaxAttempts,
		baseBackoff: constants.ToolBaseBackoff,
		maxBackoff:  constants.ToolMaxBackoff,
		logger:      logger.Logger.With().Str("stage", name).Logger(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Name 返回阶段名称
func (b *BaseStage) Name() string {
	return b.name
}

// newTrace 创建本次执行的追踪记录
func (b *BaseStage) newTrace() *ExecutionTrace {
	return &ExecutionTrace{
		Stage:     b.name,
		Timestamp: time.Now(),
	}
}

// finishTrace 定稿追踪记录的耗时
func (b *BaseStage) finishTrace(trace *ExecutionTrace) {
	trace.Duration = time.Since(trace.Timestamp)
}

// invokeTool 统一的工具调用入口。
// 未注册的工具立即失败；已注册的工具失败后按上限退避重试
// （尝试maxAttempts次，间隔 baseBackoff*2^n，封顶maxBackoff），
// 重试耗尽后向上抛出。无论成败，trace中都会留下一条ToolInvocation。
func (b *BaseStage) invokeTool(ctx context.Context, trace *ExecutionTrace, name string, args map[string]interface{}) (interface{}, error) {
	invocation := ToolInvocation{
		ToolName:  name,
		Arguments: args,
		StartedAt: time.Now(),
	}

	fn, err := b.tools.Get(name)
	if err != nil {
		invocation.Error = err.Error()
		invocation.Duration = time.Since(invocation.StartedAt)
		trace.ToolCalls = append(trace.ToolCalls, invocation)
		return nil, err
	}

	var result interface{}
	var lastErr error
	backoff := b.baseBackoff
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		result, lastErr = fn(ctx, args)
		if lastErr == nil {
			break
		}

		b.logger.Warn().
			Err(lastErr).
			Str("tool", name).
			Int("attempt", attempt).
			Int("max_attempts", b.maxAttempts).
			Msg("工具调用失败")

		if attempt == b.maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = b.maxAttempts // 上下文取消后不再重试
		}

		backoff *= 2
		if backoff > b.maxBackoff {
			backoff = b.maxBackoff
		}
	}

	invocation.Duration = time.Since(invocation.StartedAt)
	if lastErr != nil {
		invocation.Error = lastErr.Error()
		trace.ToolCalls = append(trace.ToolCalls, invocation)
		return nil, fmt.Errorf("工具 %s 在%d次尝试后仍然失败: %w", name, b.maxAttempts, lastErr)
	}

	invocation.Result = result
	trace.ToolCalls = append(trace.ToolCalls, invocation)
	return result, nil
}

// generateJSON 请求LLM并把响应解析为JSON结构。
// 响应可能被markdown代码块包裹，统一先提取再反序列化；
// 提取或反序列化失败视为硬性阶段失败。
func (b *BaseStage) generateJSON(ctx context.Context, systemPrompt, userPrompt string, dest interface{}) error {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	resp, err := b.chatModel.Generate(ctx, messages)
	if err != nil {
		return fmt.Errorf("LLM调用失败: %w", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return fmt.Errorf("%w: 响应中未找到JSON对象", llm.ErrMalformedResponse)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// 先尝试修复字符串内部未转义的引号，再反序列化一次
		if retryErr := json.Unmarshal([]byte(llm.SanitizeJSON(raw)), dest); retryErr != nil {
			return fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
		}
	}
	return nil
}
