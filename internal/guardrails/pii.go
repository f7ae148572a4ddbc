package guardrails

import (
	"fmt"
	"regexp"
	"sort"
)

// PII检测模式
const (
	PIIModeFull  = "full"
	PIIModeBasic = "basic"
)

// piiPattern 一种PII实体的正则检测规则
type piiPattern struct {
	entityType string
	re         *regexp.Regexp
	confidence float64
}

// 全量实体表。basic模式只启用邮箱与电话两项，
// 两种模式走同一条扫描路径，区别仅在启用的实体集合。
var piiPatterns = []piiPattern{
	{
		entityType: EntityEmailAddress,
		re:         regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		confidence: 0.95,
	},
	{
		entityType: EntityPhoneNumber,
		re:         regexp.MustCompile(`(?:\+?86[\s\-]?)?1[3-9]\d{9}|\+?\d{1,3}[\s\-]?\(?\d{2,4}\)?[\s\-]?\d{3,4}[\s\-]?\d{4}`),
		confidence: 0.80,
	},
	{
		entityType: EntityCreditCard,
		re:         regexp.MustCompile(`\b(?:\d[ \-]?){13,18}\d\b`),
		confidence: 0.70,
	},
	{
		entityType: EntityIPAddress,
		re:         regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		confidence: 0.85,
	},
	{
		entityType: EntityURL,
		re:         regexp.MustCompile(`https?://[^\s<>"'，。；、）]+`),
		confidence: 0.90,
	},
	{
		entityType: EntityDateTime,
		re:         regexp.MustCompile(`\b\d{4}[年/\-]\d{1,2}[月/\-]\d{1,2}日?\b`),
		confidence: 0.60,
	},
	{
		entityType: EntityPerson,
		re:         regexp.MustCompile(`(?:姓名|联系人)[:：]\s*[\p{Han}A-Za-z·]{2,20}`),
		confidence: 0.65,
	},
	{
		entityType: EntityLocation,
		re:         regexp.MustCompile(`(?:地址|住址|现居)[:：]\s*[^\s，。；,;]{4,60}`),
		confidence: 0.60,
	},
}

// basic模式启用的实体
var basicEntities = map[string]bool{
	EntityEmailAddress: true,
	EntityPhoneNumber:  true,
}

// PIIDetector 基于正则实体表的PII检测器。
// 全量与基础两种模式共享同一实体表与扫描逻辑，
// basic只是一个配置降级开关，不是第二条代码路径。
type PIIDetector struct {
	mode string
}

// NewPIIDetector 创建PII检测器，未知模式回退为full
func NewPIIDetector(mode string) *PIIDetector {
	if mode != PIIModeBasic {
		mode = PIIModeFull
	}
	return &PIIDetector{mode: mode}
}

// Mode 返回当前检测模式
func (d *PIIDetector) Mode() string {
	return d.mode
}

// Detect 扫描文本并返回所有命中的PII实体，按起始位置排序。
// 不同实体的区间允许重叠，同一实体内重叠的命中取先出现者。
func (d *PIIDetector) Detect(text, field string) []PIIFinding {
	if text == "" {
		return nil
	}

	var findings []PIIFinding
	for _, p := range piiPatterns {
		if d.mode == PIIModeBasic && !basicEntities[p.entityType] {
			continue
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			findings = append(findings, PIIFinding{
				EntityType: p.entityType,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: p.confidence,
				Field:      field,
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].End > findings[j].End
	})
	return findings
}

// Redact 用类型化占位符替换文本中的PII命中，如 <EMAIL_ADDRESS>。
// 按区间从后向前替换以保持前方偏移有效。
func (d *PIIDetector) Redact(text string, findings []PIIFinding) string {
	if len(findings) == 0 {
		return text
	}

	sorted := make([]PIIFinding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	result := text
	lastStart := len(text)
	for _, f := range sorted {
		if f.Start < 0 || f.End > len(result) || f.End > lastStart {
			continue // 跳过越界或与已替换区间重叠的命中
		}
		result = result[:f.Start] + fmt.Sprintf("<%s>", f.EntityType) + result[f.End:]
		lastStart = f.Start
	}
	return result
}
