package guardrails

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/errgroup"

	"ai-recruiter-go/internal/config"
	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/types"
)

// 扫描字段名
const (
	FieldSummary    = "summary"
	FieldSkills     = "missing_skills"
	FieldQuestions  = "questions"
	FieldResumeText = "resume_text"
)

// ScanInput 安全门的扫描输入：流水线终止后已组装的对外输出，
// 外加本次调用携带的简历文本。
type ScanInput struct {
	Assessment *types.FitAssessment
	Questions  []types.InterviewQuestion
	ResumeText string
}

// Gate 安全门。在编排器终止后对组装输出执行恰好一次评估：
// PII、偏见、毒性、输出校验四类扫描并发运行。
// 所有发现都是报告中的数据，安全门本身从不拦截或修改流水线结果；
// 唯一的例外是显式开启的PII脱敏。
type Gate struct {
	pii       *PIIDetector
	bias      *BiasScanner
	toxicity  ToxicityScorer
	validator *OutputValidator
	redactPII bool
}

// GateOption 定义安全门构造选项
type GateOption func(*Gate)

// WithToxicityScorer 替换默认的词典毒性评分器
func WithToxicityScorer(scorer ToxicityScorer) GateOption {
	return func(g *Gate) {
		g.toxicity = scorer
	}
}

// NewGate 创建安全门。chatModel仅用于可选的LLM隐性偏见复查，可以为nil。
func NewGate(cfg config.SafetyConfig, chatModel model.ToolCallingChatModel, opts ...GateOption) *Gate {
	g := &Gate{
		pii:       NewPIIDetector(cfg.PIIMode),
		bias:      NewBiasScanner(chatModel, cfg.EnableLLMBiasScan),
		toxicity:  NewLexiconScorer(cfg.ToxicityThreshold),
		validator: NewOutputValidator(),
		redactPII: cfg.RedactPII,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate 对输入执行一次完整的安全评估并返回报告。
// 四类扫描写入报告中互不重叠的字段，可以安全并发。
// 毒性评分器失败只降级为零分并记日志，不使整次评估失败。
func (g *Gate) Evaluate(ctx context.Context, input ScanInput) *SafetyReport {
	start := time.Now()
	report := &SafetyReport{}

	summary := ""
	var skills []string
	if input.Assessment != nil {
		summary = input.Assessment.Summary
		skills = input.Assessment.MissingSkills
	}
	questionText := joinQuestions(input.Questions)
	skillText := strings.Join(skills, "\n")

	var eg errgroup.Group

	eg.Go(func() error {
		var findings []PIIFinding
		findings = append(findings, g.pii.Detect(summary, FieldSummary)...)
		findings = append(findings, g.pii.Detect(skillText, FieldSkills)...)
		findings = append(findings, g.pii.Detect(questionText, FieldQuestions)...)
		findings = append(findings, g.pii.Detect(input.ResumeText, FieldResumeText)...)
		report.PIIFindings = findings
		return nil
	})

	eg.Go(func() error {
		var findings []BiasFinding
		findings = append(findings, g.bias.Scan(ctx, summary, FieldSummary)...)
		findings = append(findings, g.bias.Scan(ctx, questionText, FieldQuestions)...)
		report.BiasFindings = findings
		return nil
	})

	eg.Go(func() error {
		score, err := g.toxicity.ScoreToxicity(ctx, summary+"\n"+questionText)
		if err != nil {
			logger.Warn().Err(err).Msg("毒性评分失败，按零分降级")
			return nil
		}
		report.Toxicity = score
		return nil
	})

	eg.Go(func() error {
		report.Validation = g.validator.Validate(input.Assessment, input.Questions)
		return nil
	})

	_ = eg.Wait()
	report.Finalize()

	logger.Info().
		Int("pii_findings", len(report.PIIFindings)).
		Int("bias_findings", len(report.BiasFindings)).
		Bool("is_toxic", report.Toxicity.IsToxic).
		Bool("validation_valid", report.Validation.Valid).
		Bool("has_critical_issues", report.HasCriticalIssues).
		Dur("duration", time.Since(start)).
		Msg("安全评估完成")
	return report
}

// RedactResponse 按报告中的PII发现对响应做类型化占位符脱敏。
// 仅在配置显式开启时由调用方调用，候选人简历文本一并脱敏。
func (g *Gate) RedactResponse(resp *types.ScreeningResponse, report *SafetyReport) {
	if !g.redactPII || resp == nil || report == nil {
		return
	}

	byField := make(map[string][]PIIFinding)
	for _, f := range report.PIIFindings {
		byField[f.Field] = append(byField[f.Field], f)
	}

	if resp.Assessment != nil {
		resp.Assessment.Summary = g.pii.Redact(resp.Assessment.Summary, byField[FieldSummary])
	}
	for i := range resp.Candidates {
		if resp.Candidates[i].ResumeText != "" {
			findings := g.pii.Detect(resp.Candidates[i].ResumeText, FieldResumeText)
			resp.Candidates[i].ResumeText = g.pii.Redact(resp.Candidates[i].ResumeText, findings)
		}
		if resp.Candidates[i].Email != "" {
			resp.Candidates[i].Email = "<" + EntityEmailAddress + ">"
		}
	}
}

// RedactEnabled 返回是否开启PII脱敏
func (g *Gate) RedactEnabled() bool {
	return g.redactPII
}

func joinQuestions(questions []types.InterviewQuestion) string {
	if len(questions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(questions))
	for _, q := range questions {
		parts = append(parts, q.Question)
	}
	return strings.Join(parts, "\n")
}
