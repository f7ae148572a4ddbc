package guardrails

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/llm"
	"ai-recruiter-go/internal/logger"
)

// 偏见类别
const (
	BiasCategoryAge        = "age"
	BiasCategoryGender     = "gender"
	BiasCategoryDisability = "disability"
	BiasCategoryReligion   = "religion"
	BiasCategoryAppearance = "appearance"
	BiasCategoryImplicit   = "implicit"
)

// biasTerm 一条受保护属性词表项
type biasTerm struct {
	category string
	term     string
	severity string
}

// 受保护属性词表。年龄类为medium，其余类别为high。
// 词表是唯一的显式偏见判定来源，命中即记录，不做上下文消歧。
var biasTerms = []biasTerm{
	{BiasCategoryAge, "年轻", SeverityMedium},
	{BiasCategoryAge, "年龄太大", SeverityMedium},
	{BiasCategoryAge, "35岁以下", SeverityMedium},
	{BiasCategoryAge, "应届", SeverityMedium},
	{BiasCategoryAge, "too old", SeverityMedium},
	{BiasCategoryAge, "young and energetic", SeverityMedium},
	{BiasCategoryAge, "digital native", SeverityMedium},

	{BiasCategoryGender, "限男性", SeverityHigh},
	{BiasCategoryGender, "限女性", SeverityHigh},
	{BiasCategoryGender, "男性优先", SeverityHigh},
	{BiasCategoryGender, "女性优先", SeverityHigh},
	{BiasCategoryGender, "已婚已育", SeverityHigh},
	{BiasCategoryGender, "male candidate", SeverityHigh},
	{BiasCategoryGender, "female candidate", SeverityHigh},

	{BiasCategoryDisability, "残疾", SeverityHigh},
	{BiasCategoryDisability, "身体健全", SeverityHigh},
	{BiasCategoryDisability, "disability", SeverityHigh},
	{BiasCategoryDisability, "able-bodied", SeverityHigh},

	{BiasCategoryReligion, "宗教信仰", SeverityHigh},
	{BiasCategoryReligion, "religion", SeverityHigh},
	{BiasCategoryReligion, "religious", SeverityHigh},

	{BiasCategoryAppearance, "形象气质佳", SeverityHigh},
	{BiasCategoryAppearance, "相貌", SeverityHigh},
	{BiasCategoryAppearance, "身高", SeverityHigh},
	{BiasCategoryAppearance, "attractive", SeverityHigh},
	{BiasCategoryAppearance, "good-looking", SeverityHigh},
}

const implicitBiasPrompt = `你是招聘合规审查员。判断下面的评估文本是否存在隐性偏见（非词表可捕捉的暗示性歧视倾向）。
只输出JSON对象，格式：
{"found": true或false, "term": "命中的表述", "context": "命中表述所在的句子"}
未发现时 found 为 false，其余字段为空。不要输出任何其他内容。`

type implicitBiasResult struct {
	Found   bool   `json:"found"`
	Term    string `json:"term"`
	Context string `json:"context"`
}

// BiasScanner 偏见扫描器：词表显式扫描 + 可选的LLM隐性偏见复查。
// LLM复查最多产出一条implicit类发现，且失败只降级为跳过，从不影响词表结果。
type BiasScanner struct {
	chatModel model.ToolCallingChatModel
	enableLLM bool
}

// NewBiasScanner 创建偏见扫描器。chatModel为nil时自动关闭LLM复查。
func NewBiasScanner(chatModel model.ToolCallingChatModel, enableLLM bool) *BiasScanner {
	return &BiasScanner{
		chatModel: chatModel,
		enableLLM: enableLLM && chatModel != nil,
	}
}

// Scan 扫描文本中的偏见表述。
// 词表命中大小写不敏感，每条命中携带前后各50字符的上下文片段。
func (s *BiasScanner) Scan(ctx context.Context, text, field string) []BiasFinding {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	var findings []BiasFinding
	for _, t := range biasTerms {
		idx := strings.Index(lower, strings.ToLower(t.term))
		for idx >= 0 {
			findings = append(findings, BiasFinding{
				Category: t.category,
				Term:     t.term,
				Severity: t.severity,
				Context:  contextWindow(text, idx, idx+len(t.term)),
				Field:    field,
			})
			next := strings.Index(lower[idx+len(t.term):], strings.ToLower(t.term))
			if next < 0 {
				break
			}
			idx = idx + len(t.term) + next
		}
	}

	if s.enableLLM {
		if f := s.scanImplicit(ctx, text, field); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// scanImplicit LLM隐性偏见复查，任何失败都只记日志并返回nil
func (s *BiasScanner) scanImplicit(ctx context.Context, text, field string) *BiasFinding {
	resp, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(implicitBiasPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("隐性偏见复查失败，已跳过")
		return nil
	}

	payload := llm.ExtractJSON(resp.Content)
	if payload == "" {
		logger.Warn().Msg("隐性偏见复查返回中没有JSON对象，已跳过")
		return nil
	}

	var result implicitBiasResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		logger.Warn().Err(err).Msg("隐性偏见复查结果反序列化失败，已跳过")
		return nil
	}
	if !result.Found || strings.TrimSpace(result.Term) == "" {
		return nil
	}

	return &BiasFinding{
		Category: BiasCategoryImplicit,
		Term:     result.Term,
		Severity: SeverityMedium,
		Context:  result.Context,
		Field:    field,
	}
}

// contextWindow 取命中区间前后各50字符，按字节截断后对齐到合法UTF-8边界
func contextWindow(text string, start, end int) string {
	lo := start - constants.BiasContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + constants.BiasContextRadius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && lo < len(text) && !utf8RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
