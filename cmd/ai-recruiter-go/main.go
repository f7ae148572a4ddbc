package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"ai-recruiter-go/internal/agent"
	"ai-recruiter-go/internal/api/handler"
	"ai-recruiter-go/internal/api/router"
	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/guardrails"
	"ai-recruiter-go/internal/llm"
	appLogger "ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/parser"
	"ai-recruiter-go/internal/session"
	"ai-recruiter-go/internal/storage"
	"ai-recruiter-go/internal/task"
	"ai-recruiter-go/internal/tracing"
)

// @title AI Recruiter API
// @version 1.0
// @description 候选人筛选决策流水线服务
// @BasePath /api/v1
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	appLogger.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化分布式追踪（OTEL_ENABLED开启时）
	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		appLogger.Warn().Err(err).Msg("初始化追踪失败，继续以无追踪模式运行")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	appLogger.Info().Msg("存储服务初始化成功")

	runner, err := buildRunner(cfg, storageManager)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("初始化任务运行器失败")
	}
	appLogger.Info().Msg("筛选流水线初始化成功")

	screeningHandler := handler.NewScreeningHandler(cfg, runner)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, screeningHandler, cfg.Server.APIKey)
	appLogger.Info().Str("address", cfg.Server.Address).Msg("HTTP路由注册成功，服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			appLogger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("服务器关闭失败")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLogger.Warn().Err(err).Msg("追踪退出失败")
		}
	}
	appLogger.Info().Msg("优雅退出完成")
}

// initLogger 初始化应用日志并把Hertz日志桥接到zerolog
func initLogger(cfg *config.Config) {
	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	appLogger.Logger = appLogger.Logger.With().
		Str("app", "ai-recruiter-go").
		Logger()

	glog.SetLogger(hertzadapter.From(appLogger.Logger))
}

// buildRunner 组装筛选流水线：LLM实例池、三个阶段的工具表、编排器工厂、
// 安全门与任务运行器。存储组件缺失时对应工具不注册，由阶段在运行时报未知工具。
func buildRunner(cfg *config.Config, storageManager *storage.Storage) (*task.Runner, error) {
	pool, err := llm.NewPool(cfg.Aliyun.PoolSize, func() (model.ToolCallingChatModel, error) {
		return llm.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
	})
	if err != nil {
		return nil, err
	}
	chatModel := llm.NewPooledChatModel(pool)

	retrieverTools := agent.NewToolRegistry()
	if storageManager.Qdrant != nil {
		embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
		if err != nil {
			return nil, err
		}
		retrieverTools.Register(agent.ToolVectorSearch, agent.NewVectorSearchTool(
			embedder,
			storageManager.Qdrant,
			cfg.Qdrant.DefaultSearchLimit,
			cfg.Qdrant.ScoreThreshold,
		))
	}
	if storageManager.MySQL != nil {
		retrieverTools.Register(agent.ToolKeywordSearch, agent.NewKeywordSearchTool(
			storageManager.MySQL,
			cfg.Qdrant.DefaultSearchLimit,
		))
	}

	analyzerTools := agent.NewToolRegistry()
	if storageManager.MySQL != nil {
		analyzerTools.Register(agent.ToolFetchCandidate, agent.NewFetchCandidateTool(storageManager.MySQL))
	}

	retryPolicy := agent.WithRetryPolicy(
		cfg.Pipeline.ToolMaxAttempts,
		cfg.Pipeline.ToolBaseBackoff(),
		cfg.Pipeline.ToolMaxBackoff(),
	)

	retriever := agent.NewRetrieverStage(chatModel, retrieverTools, retryPolicy)
	analyzer := agent.NewAnalyzerStage(chatModel, analyzerTools, retryPolicy)
	interviewer := agent.NewInterviewerStage(chatModel, agent.NewToolRegistry(), retryPolicy)

	factory := func(progress agent.ProgressFunc) *agent.Orchestrator {
		return agent.NewOrchestrator(retriever, analyzer, interviewer, agent.WithProgressFunc(progress))
	}

	gate := guardrails.NewGate(cfg.Safety, chatModel)

	taskStore := session.NewStore(storageManager.Redis, session.WithKeyPrefix(constants.TaskKeyPrefix))

	opts := []task.RunnerOption{}
	if storageManager.RabbitMQ != nil {
		opts = append(opts, task.WithProgressPublisher(storageManager.RabbitMQ))
	}
	if storageManager.MySQL != nil {
		opts = append(opts, task.WithResultDB(storageManager.MySQL))
	}

	return task.NewRunner(cfg.Pipeline, factory, gate, taskStore, opts...), nil
}
