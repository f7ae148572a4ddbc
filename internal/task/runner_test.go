package task

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruiter-go/internal/agent"
	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/guardrails"
	"ai-recruiter-go/internal/session"
	"ai-recruiter-go/internal/storage"
	"ai-recruiter-go/internal/types"
)

// fakeStage 测试用阶段
type fakeStage struct {
	name  string
	fn    func(state *agent.WorkflowState) error
	block chan struct{} // 非nil时阻塞执行，用于测试并发上限
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Execute(ctx context.Context, state *agent.WorkflowState) (*agent.ExecutionTrace, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return &agent.ExecutionTrace{Stage: s.name}, ctx.Err()
		}
	}
	trace := &agent.ExecutionTrace{Stage: s.name}
	if s.fn != nil {
		return trace, s.fn(state)
	}
	return trace, nil
}

// capturingPublisher 记录收到的进度事件
type capturingPublisher struct {
	mu     sync.Mutex
	events []storage.ProgressEvent
}

func (p *capturingPublisher) PublishProgress(_ context.Context, event storage.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) snapshot() []storage.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]storage.ProgressEvent(nil), p.events...)
}

func testFactory(analyzerBlock chan struct{}) OrchestratorFactory {
	return func(progress agent.ProgressFunc) *agent.Orchestrator {
		retriever := &fakeStage{name: "RetrieverAgent", fn: func(state *agent.WorkflowState) error {
			state.Candidates = []types.CandidateMatch{{CandidateID: "c1", ResumeText: "五年Go开发经验，熟悉分布式系统。"}}
			return nil
		}}
		analyzer := &fakeStage{name: "AnalyzerAgent", block: analyzerBlock, fn: func(state *agent.WorkflowState) error {
			state.Assessment = &types.FitAssessment{
				MatchScore:      82,
				TechnicalScore:  85,
				ExperienceScore: 78,
				CultureScore:    75,
				Summary:         strings.Repeat("候选人具备扎实的Go后端开发经验，整体匹配度较高。", 3),
				Confidence:      0.9,
			}
			return nil
		}}
		interviewer := &fakeStage{name: "InterviewerAgent", fn: func(state *agent.WorkflowState) error {
			topics := []string{"GMP调度", "分布式锁", "消息幂等", "缓存穿透", "限流策略"}
			for _, topic := range topics {
				state.Questions = append(state.Questions, types.InterviewQuestion{
					Question:       "请深入讲讲" + topic + "的原理与实践。",
					Category:       types.QuestionCategoryTechnical,
					Difficulty:     types.QuestionDifficultyMedium,
					ExpectedPoints: []string{"原理", "实践经验"},
				})
			}
			return nil
		}}
		return agent.NewOrchestrator(retriever, analyzer, interviewer, agent.WithProgressFunc(progress))
	}
}

func testGate() *guardrails.Gate {
	return guardrails.NewGate(config.SafetyConfig{ToxicityThreshold: 0.7, PIIMode: "full"}, nil)
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ToolMaxAttempts:    3,
		TaskBudget:         "10s",
		MaxConcurrentTasks: 2,
	}
}

func TestRunSync(t *testing.T) {
	runner := NewRunner(testPipelineConfig(), testFactory(nil), testGate(), session.NewStore(nil))

	resp, safety, err := runner.RunSync(context.Background(), &types.ScreeningRequest{
		JobDescription: "招聘资深Go后端工程师",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.NotNil(t, safety)

	assert.Empty(t, resp.Error)
	assert.Len(t, resp.Candidates, 1)
	assert.Len(t, resp.Questions, 5)
	assert.True(t, safety.Validation.Valid)
	assert.False(t, safety.HasCriticalIssues)
}

func TestSubmitAndGet(t *testing.T) {
	publisher := &capturingPublisher{}
	runner := NewRunner(testPipelineConfig(), testFactory(nil), testGate(), session.NewStore(nil),
		WithProgressPublisher(publisher))

	taskID, err := runner.Submit(context.Background(), &types.ScreeningRequest{
		JobDescription: "招聘资深Go后端工程师",
	})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		result, err := runner.Get(context.Background(), taskID)
		return err == nil && result.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond, "任务应在预算内完成")

	result, err := runner.Get(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Progress)
	require.NotNil(t, result.Response)
	assert.Len(t, result.Response.Questions, 5)
	require.NotNil(t, result.Safety)

	events := publisher.snapshot()
	require.NotEmpty(t, events, "任务过程中应推送进度事件")
	var percents []int
	for _, e := range events {
		assert.Equal(t, taskID, e.TaskID)
		percents = append(percents, e.Progress)
	}
	assert.Contains(t, percents, 10, "检索开始对应10%")
	assert.Contains(t, percents, 95, "问题生成完成对应95%")
	assert.Equal(t, 100, percents[len(percents)-1], "最后一个事件是100%终态")
}

func TestGetUnknownTask(t *testing.T) {
	runner := NewRunner(testPipelineConfig(), testFactory(nil), testGate(), session.NewStore(nil))

	_, err := runner.Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSubmitRejectsWhenSlotsFull(t *testing.T) {
	block := make(chan struct{})
	cfg := testPipelineConfig()
	cfg.MaxConcurrentTasks = 1
	runner := NewRunner(cfg, testFactory(block), testGate(), session.NewStore(nil))

	req := &types.ScreeningRequest{JobDescription: "招聘资深Go后端工程师"}

	first, err := runner.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = runner.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrTooManyTasks, "并发上限占满时直接拒绝")

	close(block)
	require.Eventually(t, func() bool {
		result, err := runner.Get(context.Background(), first)
		return err == nil && result.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// 槽位释放后可以再次提交
	require.Eventually(t, func() bool {
		_, err := runner.Submit(context.Background(), req)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTaskFailureIsTerminalState(t *testing.T) {
	factory := func(progress agent.ProgressFunc) *agent.Orchestrator {
		retriever := &fakeStage{name: "RetrieverAgent", fn: func(state *agent.WorkflowState) error {
			return context.DeadlineExceeded
		}}
		return agent.NewOrchestrator(retriever,
			&fakeStage{name: "AnalyzerAgent"},
			&fakeStage{name: "InterviewerAgent"},
			agent.WithProgressFunc(progress))
	}

	runner := NewRunner(testPipelineConfig(), factory, testGate(), session.NewStore(nil))
	taskID, err := runner.Submit(context.Background(), &types.ScreeningRequest{
		JobDescription: "招聘资深Go后端工程师",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		result, err := runner.Get(context.Background(), taskID)
		return err == nil && result.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	result, err := runner.Get(context.Background(), taskID)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "RetrieverAgent")
	require.NotNil(t, result.Response, "失败任务仍返回部分响应与追踪")
}
