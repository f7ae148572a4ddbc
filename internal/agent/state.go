package agent

import (
	"time"

	"ai-recruiter-go/internal/types"
)

// 流水线状态机的各个状态
const (
	StateStart     = "START"
	StateRetrieve  = "RETRIEVE"
	StateAssess    = "ASSESS"
	StateQuestions = "QUESTIONS"
	StateEnd       = "END"
)

// NextActionExpandSearch 双通道均无结果时写入的下一步动作提示
const NextActionExpandSearch = "expand_search"

// ToolInvocation 一次工具调用的审计记录。
// 在调用前创建，调用结束后定稿，无论成功失败都会被保留。
type ToolInvocation struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    interface{}            `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	StartedAt time.Time              `json:"started_at"`
}

// ExecutionTrace 一个阶段执行的审计记录，创建后不再修改。
// 每次阶段执行（成功或失败）恰好产生一条。
type ExecutionTrace struct {
	Stage     string           `json:"stage"`
	Reasoning string           `json:"reasoning,omitempty"`
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	Output    interface{}      `json:"output,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Timestamp time.Time        `json:"timestamp"`
}

// WorkflowState 贯穿所有阶段的共享记录。
// 每次调用创建一个实例，响应构建完成后即丢弃，不做持久化。
// 追踪日志为仅追加，由编排器独占写入。
// 不变式：error一旦写入，后续阶段不再执行；CompletedAt只设置一次。
type WorkflowState struct {
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text,omitempty"`
	CandidateID    string `json:"candidate_id,omitempty"`
	JobID          string `json:"job_id,omitempty"`

	Candidates []types.CandidateMatch    `json:"candidates,omitempty"`
	Assessment *types.FitAssessment      `json:"assessment,omitempty"`
	Questions  []types.InterviewQuestion `json:"questions,omitempty"`

	Traces       []ExecutionTrace `json:"traces"`
	CurrentStage string           `json:"current_stage"`
	NextAction   string           `json:"next_action,omitempty"`
	Error        string           `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowState 从请求创建初始工作流状态
func NewWorkflowState(req types.ScreeningRequest) *WorkflowState {
	return &WorkflowState{
		JobDescription: req.JobDescription,
		ResumeText:     req.ResumeText,
		CandidateID:    req.CandidateID,
		JobID:          req.JobID,
		CurrentStage:   StateStart,
		StartedAt:      time.Now(),
	}
}

// DirectAnalysis 输入中已带简历文本或指定候选人时走直接分析模式，跳过检索
func (s *WorkflowState) DirectAnalysis() bool {
	return s.ResumeText != "" || s.CandidateID != ""
}
