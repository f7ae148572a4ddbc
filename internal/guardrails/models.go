package guardrails

// PII实体类型
const (
	EntityEmailAddress = "EMAIL_ADDRESS"
	EntityPhoneNumber  = "PHONE_NUMBER"
	EntityPerson       = "PERSON"
	EntityLocation     = "LOCATION"
	EntityCreditCard   = "CREDIT_CARD"
	EntityIBANCode     = "IBAN_CODE"
	EntityIPAddress    = "IP_ADDRESS"
	EntityDateTime     = "DATE_TIME"
	EntityURL          = "URL"
)

// 偏见严重程度
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// PIIFinding 一处个人敏感信息命中：实体类型、文本区间与置信度
type PIIFinding struct {
	EntityType string  `json:"entity_type"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Field      string  `json:"field,omitempty"` // 命中的输出字段
}

// BiasFinding 一处受保护属性词命中
type BiasFinding struct {
	Category string `json:"category"` // age / gender / disability / religion / appearance
	Term     string `json:"term"`
	Severity string `json:"severity"`
	Context  string `json:"context"` // 命中词前后各50字符
	Field    string `json:"field,omitempty"`
}

// ToxicityScore 多轴毒性评分。
// IsToxic 在主毒性分超过配置阈值（默认0.7）时为真。
type ToxicityScore struct {
	Toxicity       float64 `json:"toxicity"`
	SevereToxicity float64 `json:"severe_toxicity"`
	Obscene        float64 `json:"obscene"`
	Threat         float64 `json:"threat"`
	Insult         float64 `json:"insult"`
	IdentityAttack float64 `json:"identity_attack"`
	IsToxic        bool    `json:"is_toxic"`
}

// ValidationResult 结构/内容校验结果
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	Fixed  bool     `json:"fixed"` // 自动修复后重新校验通过
}

// SafetyReport 一次调用的安全报告，在编排器终止后创建一次并随响应返回。
// 安全发现是数据而不是错误：默认从不静默拦截响应，由调用方决定脱敏或扣留。
type SafetyReport struct {
	PIIFindings  []PIIFinding     `json:"pii_findings,omitempty"`
	BiasFindings []BiasFinding    `json:"bias_findings,omitempty"`
	Toxicity     ToxicityScore    `json:"toxicity"`
	Validation   ValidationResult `json:"validation"`

	HasIssues         bool `json:"has_issues"`
	HasCriticalIssues bool `json:"has_critical_issues"`
}

// Finalize 推导两个汇总布尔值。
// has_issues：存在任何发现；
// has_critical_issues：当且仅当 存在high级偏见 ∨ 毒性标记 ∨ 校验失败。
func (r *SafetyReport) Finalize() {
	highBias := false
	for _, b := range r.BiasFindings {
		if b.Severity == SeverityHigh {
			highBias = true
			break
		}
	}

	failedValidation := !r.Validation.Valid

	r.HasCriticalIssues = highBias || r.Toxicity.IsToxic || failedValidation
	r.HasIssues = len(r.PIIFindings) > 0 || len(r.BiasFindings) > 0 ||
		r.Toxicity.IsToxic || failedValidation
}
