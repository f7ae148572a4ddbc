package agent

import (
	"context"
	"fmt"
	"time"

	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/types"
)

// 进度阶段标记
const (
	PhaseStarted   = "started"
	PhaseCompleted = "completed"
)

// ProgressFunc 阶段进度回调，由外层任务运行器用于推送进度事件。
// 调用必须是尽力而为的，不允许影响流水线正确性。
type ProgressFunc func(stage string, phase string)

// Orchestrator 状态机编排器。
// 状态：START → {RETRIEVE|ASSESS} → {END|ASSESS} → {END|QUESTIONS} → END。
// 只向前推进、无环，每条边都是当前状态的纯函数；
// 路由只检查前置条件是否成立，从不检查它为何不成立。
// 编排器从不重试整个阶段：阶段失败即本次调用终止。
type Orchestrator struct {
	retriever   Stage
	analyzer    Stage
	interviewer Stage
	progressFn  ProgressFunc
}

// OrchestratorOption 定义编排器构造选项
type OrchestratorOption func(*Orchestrator)

// WithProgressFunc 设置阶段进度回调
func WithProgressFunc(fn ProgressFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.progressFn = fn
	}
}

// NewOrchestrator 创建编排器。三个阶段在构造时注入并固定。
func NewOrchestrator(retriever, analyzer, interviewer Stage, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		retriever:   retriever,
		analyzer:    analyzer,
		interviewer: interviewer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run 驱动状态机直到END，并构建对外响应。
// 阶段失败被转换为 state.Error 并短路剩余阶段，
// 但仍返回可用的部分状态与完整追踪，从不抛出。
func (o *Orchestrator) Run(ctx context.Context, state *WorkflowState) *types.ScreeningResponse {
	for state.CurrentStage != StateEnd {
		switch state.CurrentStage {
		case StateStart:
			// 直接分析模式跳过检索
			if state.DirectAnalysis() {
				state.CurrentStage = StateAssess
			} else {
				state.CurrentStage = StateRetrieve
			}

		case StateRetrieve:
			o.runStage(ctx, o.retriever, state)
			if state.Error != "" || len(state.Candidates) == 0 {
				// 零候选人是终止性的"无结果"，不是错误
				state.CurrentStage = StateEnd
			} else {
				state.CurrentStage = StateAssess
			}

		case StateAssess:
			o.runStage(ctx, o.analyzer, state)
			if state.Error != "" || state.Assessment == nil {
				state.CurrentStage = StateEnd
			} else {
				state.CurrentStage = StateQuestions
			}

		case StateQuestions:
			o.runStage(ctx, o.interviewer, state)
			state.CurrentStage = StateEnd

		default:
			state.Error = fmt.Sprintf("orchestrator: 未知状态 %s", state.CurrentStage)
			state.CurrentStage = StateEnd
		}
	}

	return o.buildResponse(state)
}

// runStage 统一的阶段执行封装。
// 追踪日志仅在这里追加：阶段返回恰好一条追踪，成败都会入列；
// 阶段失败被转换为 "<stage>: <message>" 写入 state.Error。
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, state *WorkflowState) {
	o.reportProgress(stage.Name(), PhaseStarted)

	start := time.Now()
	trace, err := stage.Execute(ctx, state)
	if trace == nil {
		trace = &ExecutionTrace{
			Stage:     stage.Name(),
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}

	if err != nil {
		state.Error = fmt.Sprintf("%s: %v", stage.Name(), err)
		trace.Output = nil
		logger.Error().
			Str("stage", stage.Name()).
			Err(err).
			Dur("duration", trace.Duration).
			Msg("阶段执行失败")
	} else {
		logger.Info().
			Str("stage", stage.Name()).
			Dur("duration", trace.Duration).
			Msg("阶段执行完成")
	}

	state.Traces = append(state.Traces, *trace)
	o.reportProgress(stage.Name(), PhaseCompleted)
}

func (o *Orchestrator) reportProgress(stage, phase string) {
	if o.progressFn != nil {
		o.progressFn(stage, phase)
	}
}

// buildResponse 构建对外响应并定稿完成时间。
// 终止性阶段错误产出中性/零分评估与解释性摘要，而不是异常。
func (o *Orchestrator) buildResponse(state *WorkflowState) *types.ScreeningResponse {
	if state.CompletedAt.IsZero() {
		state.CompletedAt = time.Now()
	}

	resp := &types.ScreeningResponse{
		Candidates:  state.Candidates,
		Assessment:  state.Assessment,
		Questions:   state.Questions,
		NextAction:  state.NextAction,
		Error:       state.Error,
		StartedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
	}

	if state.Error != "" && resp.Assessment == nil {
		resp.Assessment = &types.FitAssessment{
			Summary:    fmt.Sprintf("筛选流程中止：%s", state.Error),
			Confidence: 0,
		}
	}

	return resp
}
