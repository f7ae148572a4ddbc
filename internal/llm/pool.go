package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Pool 有界的LLM客户端实例池。
// 并发后台任务通过 Acquire/Release 独占一个实例，避免共享可变客户端状态。
type Pool struct {
	instances chan model.ToolCallingChatModel
}

// NewPool 使用工厂函数创建固定大小的实例池
func NewPool(size int, factory func() (model.ToolCallingChatModel, error)) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		instances: make(chan model.ToolCallingChatModel, size),
	}
	for i := 0; i < size; i++ {
		m, err := factory()
		if err != nil {
			return nil, fmt.Errorf("创建第%d个LLM客户端实例失败: %w", i+1, err)
		}
		p.instances <- m
	}
	return p, nil
}

// Acquire 取出一个实例，池空时阻塞直到有实例归还或上下文取消
func (p *Pool) Acquire(ctx context.Context) (model.ToolCallingChatModel, error) {
	select {
	case m := <-p.instances:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release 归还实例。必须与 Acquire 配对调用。
func (p *Pool) Release(m model.ToolCallingChatModel) {
	if m == nil {
		return
	}
	select {
	case p.instances <- m:
	default:
		// 池已满说明归还了未被取出的实例，直接丢弃
	}
}

// Size 池容量
func (p *Pool) Size() int {
	return cap(p.instances)
}

// PooledChatModel 把实例池适配成单个聊天模型：
// 每次调用临时独占一个池内实例，调用结束即归还。
// 持有方可以像使用普通模型一样在多goroutine间共享它。
type PooledChatModel struct {
	pool *Pool
}

// NewPooledChatModel 创建池化聊天模型
func NewPooledChatModel(pool *Pool) *PooledChatModel {
	return &PooledChatModel{pool: pool}
}

// Generate 独占一个池内实例完成一次生成
func (p *PooledChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取LLM客户端实例失败: %w", err)
	}
	defer p.pool.Release(m)
	return m.Generate(ctx, messages, options...)
}

// Stream 独占一个池内实例发起流式生成
func (p *PooledChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取LLM客户端实例失败: %w", err)
	}
	defer p.pool.Release(m)
	return m.Stream(ctx, messages, options...)
}

// WithTools 取一个实例生成绑定工具后的副本，副本不再属于池
func (p *PooledChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取LLM客户端实例失败: %w", err)
	}
	defer p.pool.Release(m)
	return m.WithTools(tools)
}

var _ model.ToolCallingChatModel = (*PooledChatModel)(nil)
