package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/types"
)

const interviewerSystemPrompt = `你是资深面试官。根据职位描述与候选人评估结果生成恰好5道面试问题：
2道技术问题（优先覆盖评估中的缺失技能）、2道行为问题、1道情景问题。
只输出JSON对象，格式：
{
  "questions": [
    {
      "question": "问题文本",
      "category": "technical|behavioral|scenario",
      "difficulty": "easy|medium|hard",
      "expected_points": ["期望回答要点，2到4条"]
    }
  ]
}
不要输出任何其他内容。`

// rawQuestionSet LLM返回的原始问题列表
type rawQuestionSet struct {
	Questions []types.InterviewQuestion `json:"questions"`
}

// InterviewerStage 问题生成阶段。
// 要求存在前置评估，否则以前置条件错误失败；
// 单个结构不合法的问题被丢弃而非致命，仅在一道可用问题都不剩时失败。
type InterviewerStage struct {
	BaseStage
}

// NewInterviewerStage 创建问题生成阶段
func NewInterviewerStage(chatModel model.ToolCallingChatModel, tools *ToolRegistry, opts ...StageOption) *InterviewerStage {
	return &InterviewerStage{
		BaseStage: NewBaseStage(constants.StageInterviewer, chatModel, tools, opts...),
	}
}

// Execute 生成面试问题
func (i *InterviewerStage) Execute(ctx context.Context, state *WorkflowState) (*ExecutionTrace, error) {
	trace := i.newTrace()
	defer i.finishTrace(trace)

	if state.Assessment == nil {
		return trace, fmt.Errorf("%w: 缺少前置评估结果", ErrMissingPrecondition)
	}

	userPrompt := fmt.Sprintf(
		"职位描述：\n%s\n\n评估摘要：%s\n缺失技能：%s\n优势：%s",
		state.JobDescription,
		state.Assessment.Summary,
		strings.Join(state.Assessment.MissingSkills, "、"),
		strings.Join(state.Assessment.Strengths, "、"),
	)

	var raw rawQuestionSet
	if err := i.generateJSON(ctx, interviewerSystemPrompt, userPrompt, &raw); err != nil {
		return trace, fmt.Errorf("生成面试问题失败: %w", err)
	}

	questions := FilterQuestions(raw.Questions)
	if len(questions) == 0 {
		return trace, fmt.Errorf("没有结构合法的面试问题")
	}

	state.Questions = questions
	trace.Output = map[string]interface{}{
		"requested": constants.RequestedQuestionCount,
		"generated": len(raw.Questions),
		"usable":    len(questions),
	}
	return trace, nil
}

// FilterQuestions 规范化并过滤问题列表：
// 类别与难度统一为小写，结构不合法的问题单独丢弃，结果截断到5道。
func FilterQuestions(raw []types.InterviewQuestion) []types.InterviewQuestion {
	usable := make([]types.InterviewQuestion, 0, len(raw))
	for _, q := range raw {
		q.Category = strings.ToLower(strings.TrimSpace(q.Category))
		q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
		q.Question = strings.TrimSpace(q.Question)
		if !q.Valid() {
			continue
		}
		usable = append(usable, q)
		if len(usable) >= constants.RequestedQuestionCount {
			break
		}
	}
	return usable
}

var _ Stage = (*InterviewerStage)(nil)
