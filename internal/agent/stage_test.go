package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChatModel 按脚本返回响应的测试模型。
// responses依次弹出，用尽后返回err（err为nil时返回最后一条）。
type scriptedChatModel struct {
	responses []string
	err       error
	calls     int
}

func (m *scriptedChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	if len(m.responses) == 0 {
		if m.err != nil {
			return nil, m.err
		}
		return nil, errors.New("脚本响应已用尽")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return schema.AssistantMessage(resp, nil), nil
}

func (m *scriptedChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("不支持流式生成")
}

func (m *scriptedChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*scriptedChatModel)(nil)

// fastRetry 测试用的快速重试策略，避免真实退避拖慢测试
func fastRetry() StageOption {
	return WithRetryPolicy(3, time.Millisecond, 5*time.Millisecond)
}

func TestInvokeToolUnknownToolFailsImmediately(t *testing.T) {
	base := NewBaseStage("test", &scriptedChatModel{}, NewToolRegistry(), fastRetry())
	trace := base.newTrace()

	_, err := base.invokeTool(context.Background(), trace, "no_such_tool", nil)
	require.Error(t, err, "未注册的工具应该立即失败")
	assert.ErrorIs(t, err, ErrUnknownTool)

	require.Len(t, trace.ToolCalls, 1, "失败的调用也必须留下记录")
	assert.Equal(t, "no_such_tool", trace.ToolCalls[0].ToolName)
	assert.NotEmpty(t, trace.ToolCalls[0].Error)
}

func TestInvokeToolRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	tools := NewToolRegistry()
	tools.Register("flaky", func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("暂时性失败")
		}
		return "ok", nil
	})

	base := NewBaseStage("test", &scriptedChatModel{}, tools, fastRetry())
	trace := base.newTrace()

	result, err := base.invokeTool(context.Background(), trace, "flaky", nil)
	require.NoError(t, err, "第三次尝试成功后不应返回错误")
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)

	require.Len(t, trace.ToolCalls, 1, "一次工具调用只记录一条，不按尝试展开")
	assert.Empty(t, trace.ToolCalls[0].Error)
	assert.Equal(t, "ok", trace.ToolCalls[0].Result)
}

func TestInvokeToolExhaustsRetries(t *testing.T) {
	attempts := 0
	tools := NewToolRegistry()
	tools.Register("broken", func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		attempts++
		return nil, fmt.Errorf("持续失败 #%d", attempts)
	})

	base := NewBaseStage("test", &scriptedChatModel{}, tools, fastRetry())
	trace := base.newTrace()

	_, err := base.invokeTool(context.Background(), trace, "broken", nil)
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "应该恰好尝试3次")
	assert.Contains(t, err.Error(), "3次尝试后仍然失败")

	require.Len(t, trace.ToolCalls, 1)
	assert.NotEmpty(t, trace.ToolCalls[0].Error)
}

func TestInvokeToolStopsOnContextCancel(t *testing.T) {
	tools := NewToolRegistry()
	tools.Register("slow", func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		return nil, errors.New("失败")
	})

	// 退避远长于上下文超时，取消后不应继续重试
	base := NewBaseStage("test", &scriptedChatModel{}, tools, WithRetryPolicy(3, time.Second, 2*time.Second))
	trace := base.newTrace()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := base.invokeTool(ctx, trace, "slow", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "上下文取消后不应等满退避时间")
}

func TestGenerateJSONExtractsFencedPayload(t *testing.T) {
	chatModel := &scriptedChatModel{
		responses: []string{"前置说明\n```json\n{\"value\": 42}\n```\n后置说明"},
	}
	base := NewBaseStage("test", chatModel, nil, fastRetry())

	var dest struct {
		Value int `json:"value"`
	}
	err := base.generateJSON(context.Background(), "system", "user", &dest)
	require.NoError(t, err)
	assert.Equal(t, 42, dest.Value)
}

func TestGenerateJSONFailsOnNonJSONResponse(t *testing.T) {
	chatModel := &scriptedChatModel{responses: []string{"抱歉，我无法处理这个请求。"}}
	base := NewBaseStage("test", chatModel, nil, fastRetry())

	var dest map[string]interface{}
	err := base.generateJSON(context.Background(), "system", "user", &dest)
	require.Error(t, err, "没有JSON对象的响应是硬性失败")
}
