package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"ai-recruiter-go/internal/storage"
	"ai-recruiter-go/internal/storage/models"
	"ai-recruiter-go/internal/types"
)

// 各阶段工具表中使用的工具名
const (
	ToolVectorSearch   = "vector_search"
	ToolKeywordSearch  = "keyword_search"
	ToolFetchCandidate = "fetch_candidate"
)

// CandidateFetcher 按ID获取候选人的能力
type CandidateFetcher interface {
	GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error)
}

// NewVectorSearchTool 构建向量检索工具：
// 将查询文本向量化后做相似度检索，返回带向量分的候选人列表。
func NewVectorSearchTool(embedder embedding.Embedder, searcher storage.VectorSearcher, limit int, scoreThreshold float64) ToolFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("向量检索查询不能为空")
		}

		vectors, err := embedder.EmbedStrings(ctx, []string{query})
		if err != nil {
			return nil, fmt.Errorf("查询向量化失败: %w", err)
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("查询向量化返回空结果")
		}

		results, err := searcher.SearchSimilarCandidates(ctx, vectors[0], limit, scoreThreshold)
		if err != nil {
			return nil, err
		}

		matches := make([]types.CandidateMatch, 0, len(results))
		for _, r := range results {
			match := types.CandidateMatch{
				VectorScore: float64(r.Score),
			}
			if v, ok := r.Payload["candidate_id"].(string); ok {
				match.CandidateID = v
			}
			if v, ok := r.Payload["name"].(string); ok {
				match.Name = v
			}
			if v, ok := r.Payload["email"].(string); ok {
				match.Email = v
			}
			if v, ok := r.Payload["resume_text"].(string); ok {
				match.ResumeText = v
			}
			if match.CandidateID == "" {
				match.CandidateID = r.ID
			}
			matches = append(matches, match)
		}
		return matches, nil
	}
}

// NewKeywordSearchTool 构建关键词检索工具：
// 按技能关键词在简历全文与技能标签上模糊匹配。
func NewKeywordSearchTool(searcher storage.KeywordSearcher, limit int) ToolFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		skills, _ := args["skills"].([]string)
		if len(skills) == 0 {
			return []types.CandidateMatch{}, nil
		}

		candidates, err := searcher.SearchCandidatesByKeywords(ctx, skills, limit)
		if err != nil {
			return nil, err
		}

		matches := make([]types.CandidateMatch, 0, len(candidates))
		for _, c := range candidates {
			matches = append(matches, types.CandidateMatch{
				CandidateID: c.CandidateID,
				Name:        c.Name,
				Email:       c.Email,
				ResumeText:  c.ResumeText,
			})
		}
		return matches, nil
	}
}

// NewFetchCandidateTool 构建候选人读取工具，用于仅携带candidate_id的直接分析模式
func NewFetchCandidateTool(fetcher CandidateFetcher) ToolFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		candidateID, _ := args["candidate_id"].(string)
		if candidateID == "" {
			return nil, fmt.Errorf("candidate_id不能为空")
		}

		candidate, err := fetcher.GetCandidateByID(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			return nil, fmt.Errorf("候选人 %s 不存在", candidateID)
		}

		return types.CandidateMatch{
			CandidateID: candidate.CandidateID,
			Name:        candidate.Name,
			Email:       candidate.Email,
			ResumeText:  candidate.ResumeText,
		}, nil
	}
}
