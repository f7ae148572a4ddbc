package guardrails

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruiter-go/internal/types"
)

func validAssessment() *types.FitAssessment {
	return &types.FitAssessment{
		MatchScore:      80,
		TechnicalScore:  85,
		ExperienceScore: 75,
		CultureScore:    70,
		Summary:         strings.Repeat("候选人具备扎实的Go后端开发经验，整体匹配度较高。", 3),
		MissingSkills:   []string{"Kubernetes"},
		Strengths:       []string{"Go", "分布式系统"},
		Confidence:      0.9,
		Rationale:       "技能与职位要求高度吻合",
	}
}

func validQuestions(n int) []types.InterviewQuestion {
	questions := make([]types.InterviewQuestion, 0, n)
	topics := []string{"GMP调度", "内存逃逸分析", "分布式锁", "消息幂等", "限流策略", "灰度发布", "索引优化", "缓存穿透", "链路追踪", "故障演练"}
	for i := 0; i < n; i++ {
		questions = append(questions, types.InterviewQuestion{
			Question:       "请深入讲讲" + topics[i%len(topics)] + "的原理与实践。",
			Category:       types.QuestionCategoryTechnical,
			Difficulty:     types.QuestionDifficultyMedium,
			ExpectedPoints: []string{"原理", "实践经验"},
		})
	}
	return questions
}

func TestValidatePassesWellFormedOutput(t *testing.T) {
	v := NewOutputValidator()
	result := v.Validate(validAssessment(), validQuestions(5))
	assert.True(t, result.Valid, "合规输出应通过校验: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidateNilAssessment(t *testing.T) {
	v := NewOutputValidator()
	result := v.Validate(nil, validQuestions(5))
	assert.False(t, result.Valid)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := NewOutputValidator()
	bad := validAssessment()
	bad.MatchScore = 150
	bad.Summary = "太短"
	bad.Confidence = 2.0

	result := v.Validate(bad, validQuestions(1))
	assert.False(t, result.Valid)
	assert.GreaterOrEqual(t, len(result.Errors), 4, "应返回完整错误清单而非首个错误: %v", result.Errors)
}

func TestValidateRejectsPlaceholderText(t *testing.T) {
	v := NewOutputValidator()
	bad := validAssessment()
	bad.Summary = strings.Repeat("x", 30) + " TODO: 补充评估内容 " + strings.Repeat("y", 30)

	result := v.Validate(bad, validQuestions(5))
	assert.False(t, result.Valid)
}

func TestValidateRejectsDuplicateQuestions(t *testing.T) {
	v := NewOutputValidator()
	questions := validQuestions(4)
	questions = append(questions, questions[0])

	result := v.Validate(validAssessment(), questions)
	assert.False(t, result.Valid)
}

func TestValidateRejectsGenericQuestions(t *testing.T) {
	v := NewOutputValidator()
	questions := validQuestions(4)
	questions = append(questions, types.InterviewQuestion{
		Question:       "请做一下自我介绍。",
		Category:       types.QuestionCategoryBehavioral,
		Difficulty:     types.QuestionDifficultyEasy,
		ExpectedPoints: []string{"背景", "亮点"},
	})

	result := v.Validate(validAssessment(), questions)
	assert.False(t, result.Valid)
}

func TestValidateRejectsTooManyMissingSkills(t *testing.T) {
	v := NewOutputValidator()
	bad := validAssessment()
	bad.MissingSkills = make([]string, 16)

	result := v.Validate(bad, validQuestions(5))
	assert.False(t, result.Valid)
}

func TestValidateAndFixClampsAndPads(t *testing.T) {
	v := NewOutputValidator()
	bad := validAssessment()
	bad.MatchScore = 150
	bad.Confidence = -0.5
	bad.Summary = "太短"

	fixed, questions, result := v.ValidateAndFix(bad, validQuestions(5))
	assert.True(t, result.Valid, "修复后应通过校验: %v", result.Errors)
	assert.True(t, result.Fixed)

	assert.Equal(t, 100, fixed.MatchScore)
	assert.Equal(t, 0.0, fixed.Confidence)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(fixed.Summary), 50)
	assert.Len(t, questions, 5)
}

func TestValidateAndFixTruncatesLongSummary(t *testing.T) {
	v := NewOutputValidator()
	bad := validAssessment()
	bad.Summary = strings.Repeat("匹配度很高。", 400)

	fixed, _, result := v.ValidateAndFix(bad, validQuestions(5))
	assert.True(t, result.Valid)
	assert.LessOrEqual(t, utf8.RuneCountInString(fixed.Summary), 1000)
}

func TestValidateAndFixPadsQuestionCount(t *testing.T) {
	v := NewOutputValidator()

	fixed, questions, result := v.ValidateAndFix(validAssessment(), validQuestions(1))
	require.NotNil(t, fixed)
	assert.True(t, result.Valid, "补齐后应通过校验: %v", result.Errors)
	assert.GreaterOrEqual(t, len(questions), 3)
}

func TestValidateAndFixTruncatesQuestionCount(t *testing.T) {
	v := NewOutputValidator()

	_, questions, result := v.ValidateAndFix(validAssessment(), validQuestions(12))
	assert.True(t, result.Valid, "截断后应通过校验: %v", result.Errors)
	assert.LessOrEqual(t, len(questions), 10)
}

func TestValidateAndFixAlreadyValidIsUntouched(t *testing.T) {
	v := NewOutputValidator()
	assessment := validAssessment()
	questions := validQuestions(5)

	fixed, fixedQuestions, result := v.ValidateAndFix(assessment, questions)
	assert.True(t, result.Valid)
	assert.False(t, result.Fixed, "本来就合规的输出不标记为已修复")
	assert.Equal(t, assessment, fixed)
	assert.Equal(t, questions, fixedQuestions)
}
