package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// 流水线的哨兵错误
var (
	// ErrUnknownTool 阶段调用了未注册的工具
	ErrUnknownTool = errors.New("未注册的工具")
	// ErrMissingPrecondition 阶段前置条件不满足
	ErrMissingPrecondition = errors.New("阶段前置条件不满足")
)

// ToolFunc 工具能力：结果形状由具体工具定义，对阶段基类不透明
type ToolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolRegistry 显式的工具注册表。
// 构造一次后按引用注入各阶段，不使用任何全局状态。
type ToolRegistry struct {
	tools map[string]ToolFunc
}

// NewToolRegistry 创建空的工具注册表
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolFunc)}
}

// Register 注册一个工具，重名时覆盖
func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	r.tools[name] = fn
}

// Get 按名称获取工具，未注册时返回 ErrUnknownTool
func (r *ToolRegistry) Get(name string) (ToolFunc, error) {
	fn, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return fn, nil
}

// Names 返回已注册工具名，按字典序排列
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
