package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"

	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/task"
	"ai-recruiter-go/internal/types"
)

// ScreeningHandler 筛选接口处理器，负责请求解析与校验，业务委托给任务运行器
type ScreeningHandler struct {
	cfg      *config.Config
	runner   *task.Runner
	validate *validator.Validate
}

// NewScreeningHandler 创建筛选处理器
func NewScreeningHandler(cfg *config.Config, runner *task.Runner) *ScreeningHandler {
	return &ScreeningHandler{
		cfg:      cfg,
		runner:   runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// bindRequest 解析并校验筛选请求
func (h *ScreeningHandler) bindRequest(ctx *app.RequestContext) (*types.ScreeningRequest, bool) {
	var req types.ScreeningRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON: " + err.Error()})
		return nil, false
	}
	if err := h.validate.Struct(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求参数不合法: " + err.Error()})
		return nil, false
	}
	return &req, true
}

// Analyze 同步筛选：阻塞到流水线与安全评估全部完成
func (h *ScreeningHandler) Analyze(c context.Context, ctx *app.RequestContext) {
	req, ok := h.bindRequest(ctx)
	if !ok {
		return
	}

	resp, safety, err := h.runner.RunSync(c, req)
	if err != nil {
		logger.Error().Err(err).Msg("同步筛选执行失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"response": resp,
		"safety":   safety,
	})
}

// AnalyzeAsync 异步筛选：登记任务后立即返回任务ID
func (h *ScreeningHandler) AnalyzeAsync(c context.Context, ctx *app.RequestContext) {
	req, ok := h.bindRequest(ctx)
	if !ok {
		return
	}

	taskID, err := h.runner.Submit(c, req)
	if err != nil {
		if errors.Is(err, task.ErrTooManyTasks) {
			ctx.JSON(consts.StatusTooManyRequests, utils.H{"error": err.Error()})
			return
		}
		logger.Error().Err(err).Msg("提交筛选任务失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusAccepted, utils.H{
		"task_id": taskID,
		"status":  task.StatusPending,
	})
}

// GetTask 查询异步任务状态与结果
func (h *ScreeningHandler) GetTask(c context.Context, ctx *app.RequestContext) {
	taskID := ctx.Param("task_id")
	if taskID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少task_id"})
		return
	}

	result, err := h.runner.Get(c, taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
			return
		}
		logger.Error().Err(err).Str("task_id", taskID).Msg("查询任务失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, result)
}
