package constants

import "time"

const (
	// 流水线阶段名称，用于日志、追踪与进度上报
	StageRetriever   = "RetrieverAgent"
	StageAnalyzer    = "AnalyzerAgent"
	StageInterviewer = "InterviewerAgent"

	// 工具调用重试策略：3次尝试，指数退避，基础2秒，上限10秒
	ToolMaxAttempts = 3
	ToolBaseBackoff = 2 * time.Second
	ToolMaxBackoff  = 10 * time.Second

	// DefaultTaskBudget 单个后台筛选任务的默认时间预算
	DefaultTaskBudget = 5 * time.Minute

	// 融合排序权重：向量通道0.6，关键词通道0.4
	VectorFusionWeight  = 0.6
	KeywordFusionWeight = 0.4

	// MaxRetrievedMatches 融合排序后保留的候选人数上限
	MaxRetrievedMatches = 10
	// MaxKeywordSkills 关键词检索使用的技能数上限（主技能+次技能合并后取前5）
	MaxKeywordSkills = 5
	// KeywordDualChannelScore 双通道命中时关键词通道的占位分
	KeywordDualChannelScore = 0.8
	// KeywordOnlyChannelScore 仅关键词通道命中时的占位分
	KeywordOnlyChannelScore = 0.7

	// RequestedQuestionCount 面试问题生成数量：2道技术+2道行为+1道情景
	RequestedQuestionCount = 5

	// 安全门默认参数
	DefaultToxicityThreshold = 0.7
	BiasContextRadius        = 50

	// 摘要与问题列表的结构校验边界
	MinSummaryLength = 50
	MaxSummaryLength = 1000
	MinQuestionCount = 3
	MaxQuestionCount = 10
	MaxMissingSkills = 15
)
