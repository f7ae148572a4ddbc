package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingModel struct {
	id int
}

func (m *countingModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("ok", nil), nil
}

func (m *countingModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("不支持流式生成")
}

func (m *countingModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestPoolAcquireRelease(t *testing.T) {
	created := 0
	pool, err := NewPool(2, func() (model.ToolCallingChatModel, error) {
		created++
		return &countingModel{id: created}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, pool.Size())

	ctx := context.Background()
	m1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	m2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	// 池空时Acquire应阻塞直到上下文取消
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(m1)
	m3, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, m1, m3, "归还的实例应被复用")
	pool.Release(m2)
	pool.Release(m3)
}

func TestPoolFactoryError(t *testing.T) {
	_, err := NewPool(3, func() (model.ToolCallingChatModel, error) {
		return nil, errors.New("初始化失败")
	})
	require.Error(t, err)
}

func TestPooledChatModelSharesInstances(t *testing.T) {
	pool, err := NewPool(1, func() (model.ToolCallingChatModel, error) {
		return &countingModel{}, nil
	})
	require.NoError(t, err)

	pooled := NewPooledChatModel(pool)
	resp, err := pooled.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	// 调用结束后实例已归还，可以立即再次使用
	_, err = pooled.Generate(context.Background(), []*schema.Message{schema.UserMessage("again")})
	require.NoError(t, err)
}
