package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruiter-go/internal/types"
)

// stubStage 测试用阶段：记录是否被执行，并按注入的行为修改状态
type stubStage struct {
	name     string
	executed bool
	fn       func(state *WorkflowState) error
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Execute(_ context.Context, state *WorkflowState) (*ExecutionTrace, error) {
	s.executed = true
	trace := &ExecutionTrace{Stage: s.name}
	if s.fn != nil {
		return trace, s.fn(state)
	}
	return trace, nil
}

func newStubPipeline() (*stubStage, *stubStage, *stubStage) {
	retriever := &stubStage{name: "RetrieverAgent", fn: func(state *WorkflowState) error {
		state.Candidates = []types.CandidateMatch{{CandidateID: "c1", ResumeText: "简历"}}
		return nil
	}}
	analyzer := &stubStage{name: "AnalyzerAgent", fn: func(state *WorkflowState) error {
		state.Assessment = &types.FitAssessment{MatchScore: 80, Summary: "匹配良好", Confidence: 0.9}
		return nil
	}}
	interviewer := &stubStage{name: "InterviewerAgent", fn: func(state *WorkflowState) error {
		state.Questions = []types.InterviewQuestion{validQuestion("问题一")}
		return nil
	}}
	return retriever, analyzer, interviewer
}

func TestOrchestratorFullPipeline(t *testing.T) {
	retriever, analyzer, interviewer := newStubPipeline()
	o := NewOrchestrator(retriever, analyzer, interviewer)

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	resp := o.Run(context.Background(), state)

	assert.True(t, retriever.executed)
	assert.True(t, analyzer.executed)
	assert.True(t, interviewer.executed)

	assert.Equal(t, StateEnd, state.CurrentStage)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Assessment)
	assert.Len(t, resp.Questions, 1)
	assert.Len(t, state.Traces, 3, "每个执行过的阶段恰好一条追踪")
	assert.False(t, resp.CompletedAt.IsZero())
}

func TestOrchestratorDirectAnalysisSkipsRetrieve(t *testing.T) {
	// 输入自带简历文本时，检索阶段完全不执行
	retriever, analyzer, interviewer := newStubPipeline()
	o := NewOrchestrator(retriever, analyzer, interviewer)

	state := NewWorkflowState(types.ScreeningRequest{
		JobDescription: "招聘Go工程师",
		ResumeText:     "八年Go经验",
	})
	resp := o.Run(context.Background(), state)

	assert.False(t, retriever.executed, "直接分析模式不应进入检索阶段")
	assert.True(t, analyzer.executed)
	assert.Empty(t, resp.Error)
	assert.Len(t, state.Traces, 2)
}

func TestOrchestratorEmptyRetrievalEndsWithoutError(t *testing.T) {
	// 双通道均无结果：写入expand_search后正常终止，不是错误
	retriever := &stubStage{name: "RetrieverAgent", fn: func(state *WorkflowState) error {
		state.NextAction = NextActionExpandSearch
		return nil
	}}
	analyzer := &stubStage{name: "AnalyzerAgent"}
	interviewer := &stubStage{name: "InterviewerAgent"}
	o := NewOrchestrator(retriever, analyzer, interviewer)

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	resp := o.Run(context.Background(), state)

	assert.Empty(t, resp.Error, "零候选人是终止性的无结果，不是错误")
	assert.False(t, analyzer.executed)
	assert.False(t, interviewer.executed)
	assert.Equal(t, NextActionExpandSearch, resp.NextAction)
	assert.Empty(t, resp.Candidates)
}

func TestOrchestratorStageErrorShortCircuits(t *testing.T) {
	retriever, _, interviewer := newStubPipeline()
	analyzer := &stubStage{name: "AnalyzerAgent", fn: func(_ *WorkflowState) error {
		return errors.New("LLM调用失败")
	}}
	o := NewOrchestrator(retriever, analyzer, interviewer)

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	resp := o.Run(context.Background(), state)

	assert.False(t, interviewer.executed, "阶段失败后不再执行后续阶段")
	assert.Contains(t, resp.Error, "AnalyzerAgent")
	assert.Contains(t, resp.Error, "LLM调用失败")

	// 终止性错误产出中性/零分评估，而不是空响应
	require.NotNil(t, resp.Assessment)
	assert.Zero(t, resp.Assessment.MatchScore)
	assert.Zero(t, resp.Assessment.Confidence)
	assert.Contains(t, resp.Assessment.Summary, "筛选流程中止")
}

func TestOrchestratorQuestionFailureKeepsAssessment(t *testing.T) {
	retriever, analyzer, _ := newStubPipeline()
	interviewer := &stubStage{name: "InterviewerAgent", fn: func(_ *WorkflowState) error {
		return errors.New("没有结构合法的面试问题")
	}}
	o := NewOrchestrator(retriever, analyzer, interviewer)

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	resp := o.Run(context.Background(), state)

	assert.NotEmpty(t, resp.Error)
	require.NotNil(t, resp.Assessment, "问题生成失败不应丢弃已有评估")
	assert.Equal(t, 80, resp.Assessment.MatchScore)
	assert.Empty(t, resp.Questions)
}

func TestOrchestratorTracePerExecutionEvenOnFailure(t *testing.T) {
	retriever := &stubStage{name: "RetrieverAgent", fn: func(_ *WorkflowState) error {
		return errors.New("检索失败")
	}}
	o := NewOrchestrator(retriever, &stubStage{name: "AnalyzerAgent"}, &stubStage{name: "InterviewerAgent"})

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	o.Run(context.Background(), state)

	require.Len(t, state.Traces, 1, "失败的阶段执行也要留下追踪")
	assert.Equal(t, "RetrieverAgent", state.Traces[0].Stage)
}

func TestOrchestratorProgressCallbacks(t *testing.T) {
	retriever, analyzer, interviewer := newStubPipeline()

	var events []string
	o := NewOrchestrator(retriever, analyzer, interviewer, WithProgressFunc(func(stage, phase string) {
		events = append(events, stage+":"+phase)
	}))

	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "招聘Go工程师"})
	o.Run(context.Background(), state)

	assert.Equal(t, []string{
		"RetrieverAgent:started", "RetrieverAgent:completed",
		"AnalyzerAgent:started", "AnalyzerAgent:completed",
		"InterviewerAgent:started", "InterviewerAgent:completed",
	}, events)
}
