package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/types"
)

// 检索策略
const (
	StrategyVector  = "vector"
	StrategyKeyword = "keyword"
	StrategyHybrid  = "hybrid"
)

const retrieverSystemPrompt = `你是招聘检索策略专家。根据职位描述提取检索要素，只输出JSON对象，格式：
{
  "primary_skills": ["..."],
  "secondary_skills": ["..."],
  "experience_keywords": ["..."],
  "strategy": "vector|keyword|hybrid"
}
不要输出任何其他内容。`

// queryExpansion LLM对职位描述的检索要素扩展结果
type queryExpansion struct {
	PrimarySkills      []string `json:"primary_skills"`
	SecondarySkills    []string `json:"secondary_skills"`
	ExperienceKeywords []string `json:"experience_keywords"`
	Strategy           string   `json:"strategy"`
}

// RetrieverStage 混合检索阶段：LLM查询扩展 + 向量/关键词双通道 + 融合排序。
// 工具表：vector_search, keyword_search。
type RetrieverStage struct {
	BaseStage
}

// NewRetrieverStage 创建检索阶段
func NewRetrieverStage(chatModel model.ToolCallingChatModel, tools *ToolRegistry, opts ...StageOption) *RetrieverStage {
	return &RetrieverStage{
		BaseStage: NewBaseStage(constants.StageRetriever, chatModel, tools, opts...),
	}
}

// Execute 执行混合检索。
// 双通道均无结果时不报错，写入expand_search动作提示后正常返回。
func (r *RetrieverStage) Execute(ctx context.Context, state *WorkflowState) (*ExecutionTrace, error) {
	trace := r.newTrace()
	defer r.finishTrace(trace)

	if strings.TrimSpace(state.JobDescription) == "" {
		return trace, fmt.Errorf("%w: 职位描述为空", ErrMissingPrecondition)
	}

	// 1. LLM查询扩展
	var expansion queryExpansion
	if err := r.generateJSON(ctx, retrieverSystemPrompt, state.JobDescription, &expansion); err != nil {
		return trace, fmt.Errorf("查询扩展失败: %w", err)
	}
	expansion.Strategy = normalizeStrategy(expansion.Strategy)
	trace.Reasoning = fmt.Sprintf("检索策略=%s, 主技能=%v, 次技能=%v",
		expansion.Strategy, expansion.PrimarySkills, expansion.SecondarySkills)

	// 2. 按策略执行检索通道
	var vectorMatches, keywordMatches []types.CandidateMatch

	if expansion.Strategy == StrategyVector || expansion.Strategy == StrategyHybrid {
		result, err := r.invokeTool(ctx, trace, ToolVectorSearch, map[string]interface{}{
			"query": state.JobDescription,
		})
		if err != nil {
			return trace, err
		}
		vectorMatches, _ = result.([]types.CandidateMatch)
	}

	if expansion.Strategy == StrategyKeyword || expansion.Strategy == StrategyHybrid {
		skills := topSkills(expansion.PrimarySkills, expansion.SecondarySkills, constants.MaxKeywordSkills)
		result, err := r.invokeTool(ctx, trace, ToolKeywordSearch, map[string]interface{}{
			"skills": skills,
		})
		if err != nil {
			return trace, err
		}
		keywordMatches, _ = result.([]types.CandidateMatch)
	}

	// 3. 融合排序
	fused := FuseMatches(vectorMatches, keywordMatches)
	state.Candidates = fused

	if len(fused) == 0 {
		state.NextAction = NextActionExpandSearch
		trace.Output = map[string]interface{}{"candidates": 0, "next_action": NextActionExpandSearch}
		return trace, nil
	}

	trace.Output = map[string]interface{}{
		"candidates": len(fused),
		"top_score":  fused[0].Score,
	}
	return trace, nil
}

// normalizeStrategy 规范化策略取值，未知取值回退为hybrid
func normalizeStrategy(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case StrategyVector:
		return StrategyVector
	case StrategyKeyword:
		return StrategyKeyword
	default:
		return StrategyHybrid
	}
}

// topSkills 合并主次技能并去重，取前n个
func topSkills(primary, secondary []string, n int) []string {
	seen := make(map[string]bool)
	var combined []string
	for _, s := range append(append([]string{}, primary...), secondary...) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		combined = append(combined, s)
		if len(combined) >= n {
			break
		}
	}
	return combined
}

// FuseMatches 按候选人ID融合双通道结果。
// 向量通道保留原始相似度分；关键词通道使用占位分：
// 双通道命中0.8，仅关键词命中0.7；缺失通道计0。
// 排序键 = 0.6*向量分 + 0.4*关键词分，降序排列，截断到前10。
// 权重设计使双信号确认的候选人压过单通道的强匹配。
func FuseMatches(vectorMatches, keywordMatches []types.CandidateMatch) []types.CandidateMatch {
	byID := make(map[string]*types.CandidateMatch)
	var order []string

	for _, m := range vectorMatches {
		if m.CandidateID == "" {
			continue
		}
		if _, exists := byID[m.CandidateID]; exists {
			continue // 每个候选人ID至多保留一条
		}
		copied := m
		byID[m.CandidateID] = &copied
		order = append(order, m.CandidateID)
	}

	for _, m := range keywordMatches {
		if m.CandidateID == "" {
			continue
		}
		if existing, ok := byID[m.CandidateID]; ok {
			// 双通道命中：保留向量分，关键词通道给占位分
			if existing.KeywordScore == 0 {
				existing.KeywordScore = constants.KeywordDualChannelScore
			}
			continue
		}
		copied := m
		copied.KeywordScore = constants.KeywordOnlyChannelScore
		byID[m.CandidateID] = &copied
		order = append(order, m.CandidateID)
	}

	fused := make([]types.CandidateMatch, 0, len(order))
	for _, id := range order {
		m := byID[id]
		m.Score = constants.VectorFusionWeight*m.VectorScore + constants.KeywordFusionWeight*m.KeywordScore
		fused = append(fused, *m)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].CandidateID < fused[j].CandidateID
	})

	if len(fused) > constants.MaxRetrievedMatches {
		fused = fused[:constants.MaxRetrievedMatches]
	}
	return fused
}

var _ Stage = (*RetrieverStage)(nil)
