package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"ai-recruiter-go/internal/agent"
	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/guardrails"
	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/session"
	"ai-recruiter-go/internal/storage"
	"ai-recruiter-go/internal/storage/models"
	"ai-recruiter-go/internal/types"
)

// 任务状态
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrTaskNotFound 任务不存在或结果已过期
var ErrTaskNotFound = errors.New("任务不存在或结果已过期")

// ErrTooManyTasks 并发任务数已达上限
var ErrTooManyTasks = errors.New("并发任务数已达上限")

// 各阶段事件对应的进度百分比
var progressPercent = map[string]int{
	constants.StageRetriever + "_" + agent.PhaseStarted:     10,
	constants.StageRetriever + "_" + agent.PhaseCompleted:   35,
	constants.StageAnalyzer + "_" + agent.PhaseStarted:      40,
	constants.StageAnalyzer + "_" + agent.PhaseCompleted:    70,
	constants.StageInterviewer + "_" + agent.PhaseStarted:   75,
	constants.StageInterviewer + "_" + agent.PhaseCompleted: 95,
}

// Result 一次筛选任务的完整结果
type Result struct {
	TaskID      string                   `json:"task_id"`
	Status      string                   `json:"status"`
	Progress    int                      `json:"progress"`
	Response    *types.ScreeningResponse `json:"response,omitempty"`
	Safety      *guardrails.SafetyReport `json:"safety,omitempty"`
	Error       string                   `json:"error,omitempty"`
	SubmittedAt time.Time                `json:"submitted_at"`
}

// OrchestratorFactory 按任务创建编排器，progress用于接收该任务的阶段事件
type OrchestratorFactory func(progress agent.ProgressFunc) *agent.Orchestrator

// Runner 后台任务运行器。
// 异步任务在独立goroutine中执行，受并发上限与任务预算约束；
// 结果写入TTL存储供查询，并持久化到MySQL，进度经RabbitMQ推送。
type Runner struct {
	newOrchestrator OrchestratorFactory
	gate            *guardrails.Gate
	results         *session.Store
	publisher       storage.ProgressPublisher
	db              *storage.MySQL
	budget          time.Duration
	slots           chan struct{}
}

// RunnerOption 定义运行器构造选项
type RunnerOption func(*Runner)

// WithProgressPublisher 设置进度事件发布器
func WithProgressPublisher(p storage.ProgressPublisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithResultDB 设置结果持久化数据库
func WithResultDB(db *storage.MySQL) RunnerOption {
	return func(r *Runner) {
		r.db = db
	}
}

// NewRunner 创建任务运行器
func NewRunner(cfg config.PipelineConfig, factory OrchestratorFactory, gate *guardrails.Gate, results *session.Store, opts ...RunnerOption) *Runner {
	maxTasks := cfg.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}
	r := &Runner{
		newOrchestrator: factory,
		gate:            gate,
		results:         results,
		budget:          cfg.TaskBudgetDuration(),
		slots:           make(chan struct{}, maxTasks),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSync 同步执行一次筛选：流水线跑到终止，随后安全门评估恰好一次。
func (r *Runner) RunSync(ctx context.Context, req *types.ScreeningRequest) (*types.ScreeningResponse, *guardrails.SafetyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	orchestrator := r.newOrchestrator(nil)
	state := agent.NewWorkflowState(*req)
	resp := orchestrator.Run(ctx, state)

	report := r.gate.Evaluate(ctx, guardrails.ScanInput{
		Assessment: resp.Assessment,
		Questions:  resp.Questions,
		ResumeText: resolveScannedResume(req, resp),
	})
	r.gate.RedactResponse(resp, report)

	return resp, report, nil
}

// Submit 提交一个异步筛选任务并立即返回任务ID。
// 并发上限占满时直接拒绝，而不是无界排队。
func (r *Runner) Submit(ctx context.Context, req *types.ScreeningRequest) (string, error) {
	select {
	case r.slots <- struct{}{}:
	default:
		return "", ErrTooManyTasks
	}

	taskID := uuid.NewString()
	result := &Result{
		TaskID:      taskID,
		Status:      StatusPending,
		SubmittedAt: time.Now(),
	}
	if err := r.results.Set(ctx, taskID, result); err != nil {
		<-r.slots
		return "", fmt.Errorf("登记任务失败: %w", err)
	}

	go r.execute(taskID, req)
	return taskID, nil
}

// Get 查询任务结果
func (r *Runner) Get(ctx context.Context, taskID string) (*Result, error) {
	var result Result
	if err := r.results.Get(ctx, taskID, &result); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &result, nil
}

// execute 在后台goroutine中驱动一次完整筛选。
// 任务上下文与提交方请求解耦，生命周期由任务预算决定。
func (r *Runner) execute(taskID string, req *types.ScreeningRequest) {
	defer func() { <-r.slots }()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Str("task_id", taskID).Interface("panic", rec).Msg("任务执行panic")
			r.finish(taskID, &Result{
				TaskID: taskID,
				Status: StatusFailed,
				Error:  fmt.Sprintf("任务执行panic: %v", rec),
			}, req)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.budget)
	defer cancel()

	r.update(ctx, taskID, StatusRunning, 5, nil)

	orchestrator := r.newOrchestrator(func(stage, phase string) {
		if percent, ok := progressPercent[stage+"_"+phase]; ok {
			r.update(ctx, taskID, StatusRunning, percent, nil)
		}
	})

	state := agent.NewWorkflowState(*req)
	resp := orchestrator.Run(ctx, state)

	report := r.gate.Evaluate(ctx, guardrails.ScanInput{
		Assessment: resp.Assessment,
		Questions:  resp.Questions,
		ResumeText: resolveScannedResume(req, resp),
	})
	r.gate.RedactResponse(resp, report)

	status := StatusCompleted
	if resp.Error != "" {
		status = StatusFailed
	}
	r.finish(taskID, &Result{
		TaskID:   taskID,
		Status:   status,
		Response: resp,
		Safety:   report,
		Error:    resp.Error,
	}, req)
}

// update 写入中间状态并推送进度事件。两者都是尽力而为。
func (r *Runner) update(ctx context.Context, taskID, status string, percent int, result *Result) {
	if result == nil {
		var existing Result
		if err := r.results.Get(ctx, taskID, &existing); err == nil {
			result = &existing
		} else {
			result = &Result{TaskID: taskID}
		}
	}
	result.Status = status
	result.Progress = percent

	if r.publisher != nil {
		r.publisher.PublishProgress(ctx, storage.ProgressEvent{
			TaskID:   taskID,
			Status:   status,
			Progress: percent,
			Error:    result.Error,
		})
	}

	if err := r.results.Set(ctx, taskID, result); err != nil {
		logger.Warn().Err(err).Str("task_id", taskID).Msg("任务状态写入失败")
	}
}

// finish 写入终态、推送100%进度并持久化
func (r *Runner) finish(taskID string, result *Result, req *types.ScreeningRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var existing Result
	if err := r.results.Get(ctx, taskID, &existing); err == nil {
		result.SubmittedAt = existing.SubmittedAt
	}

	percent := 100
	r.update(ctx, taskID, result.Status, percent, result)
	r.persist(ctx, result, req)
}

// persist 将终态结果持久化到MySQL，失败只记日志
func (r *Runner) persist(ctx context.Context, result *Result, req *types.ScreeningRequest) {
	if r.db == nil {
		return
	}

	respJSON, err := json.Marshal(result.Response)
	if err != nil {
		logger.Warn().Err(err).Str("task_id", result.TaskID).Msg("响应序列化失败，跳过持久化")
		return
	}
	safetyJSON, err := json.Marshal(result.Safety)
	if err != nil {
		logger.Warn().Err(err).Str("task_id", result.TaskID).Msg("安全报告序列化失败，跳过持久化")
		return
	}

	record := &models.ScreeningResult{
		TaskID:       result.TaskID,
		JobID:        req.JobID,
		CandidateID:  req.CandidateID,
		Status:       result.Status,
		Response:     datatypes.JSON(respJSON),
		SafetyReport: datatypes.JSON(safetyJSON),
	}
	if err := r.db.SaveScreeningResult(ctx, record); err != nil {
		logger.Warn().Err(err).Str("task_id", result.TaskID).Msg("筛选结果持久化失败")
	}
}

// resolveScannedResume 确定安全门扫描的简历文本：
// 直接分析模式用请求自带文本，检索模式用首位候选人的简历。
func resolveScannedResume(req *types.ScreeningRequest, resp *types.ScreeningResponse) string {
	if req.ResumeText != "" {
		return req.ResumeText
	}
	if len(resp.Candidates) > 0 {
		return resp.Candidates[0].ResumeText
	}
	return ""
}
