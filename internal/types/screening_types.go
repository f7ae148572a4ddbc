package types

import "time"

// CandidateMatch 融合排序后的单个候选人匹配结果。
// 同一次检索中每个候选人ID至多出现一次。
type CandidateMatch struct {
	CandidateID  string  `json:"candidate_id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	ResumeText   string  `json:"resume_text,omitempty"`
	Score        float64 `json:"score"`                   // 融合分：0.6*向量 + 0.4*关键词
	VectorScore  float64 `json:"vector_score,omitempty"`  // 向量通道原始分，未命中为0
	KeywordScore float64 `json:"keyword_score,omitempty"` // 关键词通道占位分，未命中为0
}

// FitAssessment 多维度匹配评估结果。
// 所有子分数在写入前被钳制到[0,100]，置信度钳制到[0.0,1.0]。
type FitAssessment struct {
	MatchScore      int      `json:"match_score"`      // 总体匹配分 0-100
	TechnicalScore  int      `json:"technical_score"`  // 技术匹配分 0-100
	ExperienceScore int      `json:"experience_score"` // 经验匹配分 0-100
	CultureScore    int      `json:"culture_score"`    // 文化匹配分 0-100
	Summary         string   `json:"summary"`
	MissingSkills   []string `json:"missing_skills"`
	Strengths       []string `json:"strengths"`
	Confidence      float64  `json:"confidence"` // 0.0-1.0
	Rationale       string   `json:"rationale"`
}

// 面试问题类别
const (
	QuestionCategoryTechnical  = "technical"
	QuestionCategoryBehavioral = "behavioral"
	QuestionCategoryScenario   = "scenario"
)

// 面试问题难度
const (
	QuestionDifficultyEasy   = "easy"
	QuestionDifficultyMedium = "medium"
	QuestionDifficultyHard   = "hard"
)

// InterviewQuestion 一道生成的面试问题
type InterviewQuestion struct {
	Question       string   `json:"question"`
	Category       string   `json:"category"`   // technical / behavioral / scenario
	Difficulty     string   `json:"difficulty"` // easy / medium / hard
	ExpectedPoints []string `json:"expected_points"` // 2-4个期望回答要点
}

// Valid 校验问题结构是否可用，结构不合法的问题被单独丢弃
func (q InterviewQuestion) Valid() bool {
	if q.Question == "" {
		return false
	}
	switch q.Category {
	case QuestionCategoryTechnical, QuestionCategoryBehavioral, QuestionCategoryScenario:
	default:
		return false
	}
	switch q.Difficulty {
	case QuestionDifficultyEasy, QuestionDifficultyMedium, QuestionDifficultyHard:
	default:
		return false
	}
	return len(q.ExpectedPoints) >= 2 && len(q.ExpectedPoints) <= 4
}

// ScreeningRequest 一次筛选流水线的输入
type ScreeningRequest struct {
	JobDescription string `json:"job_description" validate:"required,min=10"`
	ResumeText     string `json:"resume_text,omitempty"`
	CandidateID    string `json:"candidate_id,omitempty"`
	JobID          string `json:"job_id,omitempty"`
}

// ScreeningResponse 流水线终态构建的对外响应。
// 阶段出错时返回中性/零分结果与解释性摘要，而非异常。
type ScreeningResponse struct {
	Candidates  []CandidateMatch    `json:"candidates,omitempty"`
	Assessment  *FitAssessment      `json:"assessment,omitempty"`
	Questions   []InterviewQuestion `json:"questions,omitempty"`
	NextAction  string              `json:"next_action,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
}
