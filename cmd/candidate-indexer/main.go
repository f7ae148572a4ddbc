package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/guardrails"
	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/parser"
	"ai-recruiter-go/internal/storage"
	"ai-recruiter-go/internal/storage/models"
)

// candidate-indexer 批量索引工具：
// 遍历MinIO简历桶中的PDF，抽取文本并向量化，
// 写入Qdrant向量库与MySQL候选人表，供检索阶段使用。
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: time.RFC3339,
	})

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	if storageManager.MinIO == nil || storageManager.Qdrant == nil || storageManager.MySQL == nil {
		logger.Fatal().Msg("索引需要MinIO、Qdrant与MySQL全部可用")
	}

	extractor, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建PDF提取器失败")
	}

	embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建Embedder失败")
	}

	objects, err := storageManager.MinIO.ListResumeObjects(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("列举简历对象失败")
	}
	logger.Info().Int("count", len(objects)).Msg("开始索引简历")

	piiDetector := guardrails.NewPIIDetector(guardrails.PIIModeFull)

	indexed, failed := 0, 0
	for _, objectName := range objects {
		if err := indexOne(ctx, storageManager, extractor, embedder, piiDetector, objectName); err != nil {
			logger.Error().Err(err).Str("object", objectName).Msg("索引简历失败")
			failed++
			continue
		}
		indexed++
	}

	logger.Info().Int("indexed", indexed).Int("failed", failed).Msg("索引完成")
	if failed > 0 {
		os.Exit(1)
	}
}

// indexOne 处理单个简历对象：抽取、向量化、写库
func indexOne(
	ctx context.Context,
	storageManager *storage.Storage,
	extractor *parser.EinoPDFTextExtractor,
	embedder *parser.AliyunEmbedder,
	piiDetector *guardrails.PIIDetector,
	objectName string,
) error {
	data, err := storageManager.MinIO.GetResumeObject(ctx, objectName)
	if err != nil {
		return err
	}

	text, err := extractor.ExtractTextFromBytes(ctx, data, objectName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn().Str("object", objectName).Msg("简历文本为空，跳过")
		return nil
	}

	candidateID := strings.TrimSuffix(filepath.Base(objectName), filepath.Ext(objectName))
	email := firstEmail(piiDetector, text)

	vectors, err := embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"candidate_id": candidateID,
		"email":        email,
	}
	if _, err := storageManager.Qdrant.UpsertCandidateVector(ctx, candidateID, vectors[0], payload); err != nil {
		return err
	}

	return storageManager.MySQL.UpsertCandidate(ctx, &models.Candidate{
		CandidateID: candidateID,
		Email:       email,
		ResumeText:  text,
	})
}

// firstEmail 从简历文本中提取第一个邮箱，用于候选人联系方式
func firstEmail(detector *guardrails.PIIDetector, text string) string {
	for _, f := range detector.Detect(text, "resume_text") {
		if f.EntityType == guardrails.EntityEmailAddress {
			return f.Text
		}
	}
	return ""
}
