package guardrails

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/types"
)

// outputPayload 对外输出的可校验视图，结构约束由validator标签表达
type outputPayload struct {
	MatchScore      int      `validate:"min=0,max=100"`
	TechnicalScore  int      `validate:"min=0,max=100"`
	ExperienceScore int      `validate:"min=0,max=100"`
	CultureScore    int      `validate:"min=0,max=100"`
	Confidence      float64  `validate:"min=0,max=1"`
	Summary         string   `validate:"required,min=50,max=1000"`
	MissingSkills   []string `validate:"max=15"`
	QuestionCount   int      `validate:"min=3,max=10"`
}

// 占位文本片段，命中即视为低质量输出
var placeholderMarkers = []string{
	"lorem ipsum", "placeholder", "todo", "tbd", "xxx", "[insert", "待填写", "此处填写",
}

// 通用模板问题，对任何职位都成立，没有信息量
var genericQuestions = []string{
	"tell me about yourself",
	"what are your strengths",
	"what are your weaknesses",
	"请做一下自我介绍",
	"你的优点是什么",
	"你的缺点是什么",
}

// 补齐问题数下限时使用的后备问题
var fallbackQuestions = []types.InterviewQuestion{
	{
		Question:       "请结合该职位的核心要求，介绍一段你最相关的项目经历，并说明你承担的职责与产出。",
		Category:       types.QuestionCategoryBehavioral,
		Difficulty:     types.QuestionDifficultyMedium,
		ExpectedPoints: []string{"项目与职位要求的关联", "个人职责边界", "可量化的产出"},
	},
	{
		Question:       "该职位涉及的技术栈中，你认为自己最薄弱的一项是什么？你计划如何补齐？",
		Category:       types.QuestionCategoryTechnical,
		Difficulty:     types.QuestionDifficultyMedium,
		ExpectedPoints: []string{"自我认知的准确性", "具体的学习计划"},
	},
	{
		Question:       "假设你入职后第一个月发现现有系统与职位描述中的架构差异很大，你会如何着手？",
		Category:       types.QuestionCategoryScenario,
		Difficulty:     types.QuestionDifficultyMedium,
		ExpectedPoints: []string{"信息收集的方法", "与团队的沟通方式", "渐进式改进思路"},
	},
}

// OutputValidator 输出校验器：validator标签负责结构约束，
// 启发式规则负责内容质量（占位文本、复读、重复与模板化问题）。
type OutputValidator struct {
	validate *validator.Validate
}

// NewOutputValidator 创建输出校验器
func NewOutputValidator() *OutputValidator {
	return &OutputValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate 校验评估与问题列表，返回完整的错误清单而非首个错误
func (v *OutputValidator) Validate(assessment *types.FitAssessment, questions []types.InterviewQuestion) ValidationResult {
	if assessment == nil {
		return ValidationResult{Valid: false, Errors: []string{"缺少评估结果"}}
	}

	var errs []string

	payload := outputPayload{
		MatchScore:      assessment.MatchScore,
		TechnicalScore:  assessment.TechnicalScore,
		ExperienceScore: assessment.ExperienceScore,
		CultureScore:    assessment.CultureScore,
		Confidence:      assessment.Confidence,
		Summary:         assessment.Summary,
		MissingSkills:   assessment.MissingSkills,
		QuestionCount:   len(questions),
	}
	if err := v.validate.Struct(payload); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			for _, fe := range invalid {
				errs = append(errs, structuralError(fe))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, contentErrors(assessment, questions)...)

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateAndFix 校验并尝试自动修复：
// 钳制分数、截断/补齐摘要与问题列表、去重问题，然后重新校验恰好一次。
// 修复后仍不通过的按原样返回，由安全报告而不是错误来承载。
func (v *OutputValidator) ValidateAndFix(assessment *types.FitAssessment, questions []types.InterviewQuestion) (*types.FitAssessment, []types.InterviewQuestion, ValidationResult) {
	result := v.Validate(assessment, questions)
	if result.Valid || assessment == nil {
		return assessment, questions, result
	}

	fixed := *assessment
	fixed.MatchScore = clampInt(fixed.MatchScore, 0, 100)
	fixed.TechnicalScore = clampInt(fixed.TechnicalScore, 0, 100)
	fixed.ExperienceScore = clampInt(fixed.ExperienceScore, 0, 100)
	fixed.CultureScore = clampInt(fixed.CultureScore, 0, 100)
	if fixed.Confidence < 0 {
		fixed.Confidence = 0
	}
	if fixed.Confidence > 1 {
		fixed.Confidence = 1
	}
	fixed.Summary = fixSummary(fixed.Summary, fixed.Rationale)
	if len(fixed.MissingSkills) > constants.MaxMissingSkills {
		fixed.MissingSkills = fixed.MissingSkills[:constants.MaxMissingSkills]
	}

	fixedQuestions := fixQuestions(questions)

	revalidated := v.Validate(&fixed, fixedQuestions)
	revalidated.Fixed = revalidated.Valid
	if !revalidated.Valid {
		// 保留初次与复验的全部错误，便于排查修复盲区
		revalidated.Errors = append(result.Errors, revalidated.Errors...)
	}
	return &fixed, fixedQuestions, revalidated
}

// contentErrors 内容质量启发式检查
func contentErrors(assessment *types.FitAssessment, questions []types.InterviewQuestion) []string {
	var errs []string

	lowerSummary := strings.ToLower(assessment.Summary)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lowerSummary, marker) {
			errs = append(errs, fmt.Sprintf("摘要包含占位文本 %q", marker))
			break
		}
	}
	if repeated := dominantToken(assessment.Summary); repeated != "" {
		errs = append(errs, fmt.Sprintf("摘要存在过度复读：%q", repeated))
	}

	seen := make(map[string]bool)
	for _, q := range questions {
		key := normalizeQuestion(q.Question)
		if key == "" {
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Sprintf("问题重复：%q", q.Question))
		}
		seen[key] = true
		for _, g := range genericQuestions {
			if strings.Contains(key, g) {
				errs = append(errs, fmt.Sprintf("问题过于模板化：%q", q.Question))
				break
			}
		}
	}
	return errs
}

// dominantToken 检测单一词元占比异常的复读文本，返回复读词元
func dominantToken(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) < 10 {
		return ""
	}
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[strings.ToLower(t)]++
	}
	for token, n := range counts {
		if n*2 > len(tokens) {
			return token
		}
	}
	return ""
}

func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	return strings.Trim(q, "?？。！!")
}

// fixSummary 将摘要修复到[50,1000]字符区间：
// 过短时优先拼接评分理由，过长时按字符截断。
func fixSummary(summary, rationale string) string {
	summary = strings.TrimSpace(summary)
	if utf8.RuneCountInString(summary) < constants.MinSummaryLength && rationale != "" {
		summary = strings.TrimSpace(summary + " " + rationale)
	}
	for utf8.RuneCountInString(summary) < constants.MinSummaryLength {
		summary += "（评估信息有限，建议结合面试进一步确认匹配情况。）"
	}
	if utf8.RuneCountInString(summary) > constants.MaxSummaryLength {
		runes := []rune(summary)
		summary = string(runes[:constants.MaxSummaryLength])
	}
	return summary
}

// fixQuestions 去重并把问题数修复到[3,10]区间
func fixQuestions(questions []types.InterviewQuestion) []types.InterviewQuestion {
	seen := make(map[string]bool)
	fixed := make([]types.InterviewQuestion, 0, len(questions))
	for _, q := range questions {
		key := normalizeQuestion(q.Question)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		fixed = append(fixed, q)
	}

	for _, fb := range fallbackQuestions {
		if len(fixed) >= constants.MinQuestionCount {
			break
		}
		if seen[normalizeQuestion(fb.Question)] {
			continue
		}
		seen[normalizeQuestion(fb.Question)] = true
		fixed = append(fixed, fb)
	}

	if len(fixed) > constants.MaxQuestionCount {
		fixed = fixed[:constants.MaxQuestionCount]
	}
	return fixed
}

func structuralError(fe validator.FieldError) string {
	return fmt.Sprintf("字段 %s 不满足约束 %s=%s（实际值 %v）", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
