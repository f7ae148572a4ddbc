package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/types"
)

const analyzerSystemPrompt = `你是资深招聘评估专家。对比职位描述与候选人简历，输出一个结构化评估JSON对象，格式：
{
  "match_score": 0-100的整数,
  "technical_score": 0-100的整数,
  "experience_score": 0-100的整数,
  "culture_score": 0-100的整数,
  "summary": "匹配情况摘要",
  "missing_skills": ["缺失技能"],
  "strengths": ["优势"],
  "confidence": 0.0-1.0的小数,
  "rationale": "评分理由"
}
不要输出任何其他内容。`

// rawAssessment LLM返回的原始评估，分数用浮点接收以容忍越界值
type rawAssessment struct {
	MatchScore      float64  `json:"match_score"`
	TechnicalScore  float64  `json:"technical_score"`
	ExperienceScore float64  `json:"experience_score"`
	CultureScore    float64  `json:"culture_score"`
	Summary         string   `json:"summary"`
	MissingSkills   []string `json:"missing_skills"`
	Strengths       []string `json:"strengths"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale"`
}

// AnalyzerStage 评估阶段：产出一个多维度匹配评估。
// 所有子分数在写入前钳制到[0,100]，置信度钳制到[0.0,1.0]——
// 越界值被纠正，而不是拒绝。
// 工具表：fetch_candidate（仅携带candidate_id的直接分析模式使用）。
type AnalyzerStage struct {
	BaseStage
}

// NewAnalyzerStage 创建评估阶段
func NewAnalyzerStage(chatModel model.ToolCallingChatModel, tools *ToolRegistry, opts ...StageOption) *AnalyzerStage {
	return &AnalyzerStage{
		BaseStage: NewBaseStage(constants.StageAnalyzer, chatModel, tools, opts...),
	}
}

// Execute 执行匹配评估
func (a *AnalyzerStage) Execute(ctx context.Context, state *WorkflowState) (*ExecutionTrace, error) {
	trace := a.newTrace()
	defer a.finishTrace(trace)

	resumeText, err := a.resolveResumeText(ctx, trace, state)
	if err != nil {
		return trace, err
	}

	userPrompt := fmt.Sprintf("职位描述：\n%s\n\n候选人简历：\n%s", state.JobDescription, resumeText)

	var raw rawAssessment
	if err := a.generateJSON(ctx, analyzerSystemPrompt, userPrompt, &raw); err != nil {
		return trace, fmt.Errorf("生成评估失败: %w", err)
	}

	assessment := &types.FitAssessment{
		MatchScore:      ClampScore(raw.MatchScore),
		TechnicalScore:  ClampScore(raw.TechnicalScore),
		ExperienceScore: ClampScore(raw.ExperienceScore),
		CultureScore:    ClampScore(raw.CultureScore),
		Summary:         raw.Summary,
		MissingSkills:   raw.MissingSkills,
		Strengths:       raw.Strengths,
		Confidence:      ClampConfidence(raw.Confidence),
		Rationale:       raw.Rationale,
	}
	state.Assessment = assessment

	trace.Reasoning = raw.Rationale
	trace.Output = assessment
	return trace, nil
}

// resolveResumeText 解析待评估的简历文本：
// 优先输入自带的简历文本，其次按candidate_id取库，最后取检索结果的首位候选人。
func (a *AnalyzerStage) resolveResumeText(ctx context.Context, trace *ExecutionTrace, state *WorkflowState) (string, error) {
	if state.ResumeText != "" {
		return state.ResumeText, nil
	}

	if state.CandidateID != "" {
		result, err := a.invokeTool(ctx, trace, ToolFetchCandidate, map[string]interface{}{
			"candidate_id": state.CandidateID,
		})
		if err != nil {
			return "", err
		}
		match, ok := result.(types.CandidateMatch)
		if !ok || match.ResumeText == "" {
			return "", fmt.Errorf("候选人 %s 没有可用的简历文本", state.CandidateID)
		}
		return match.ResumeText, nil
	}

	if len(state.Candidates) > 0 && state.Candidates[0].ResumeText != "" {
		return state.Candidates[0].ResumeText, nil
	}

	return "", fmt.Errorf("%w: 没有可评估的简历文本", ErrMissingPrecondition)
}

// ClampScore 将分数钳制到[0,100]的整数
func ClampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

// ClampConfidence 将置信度钳制到[0.0,1.0]
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Stage = (*AnalyzerStage)(nil)
