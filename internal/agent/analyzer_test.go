package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruiter-go/internal/types"
)

func TestClampScore(t *testing.T) {
	cases := []struct {
		name  string
		input float64
		want  int
	}{
		{"越上界", 130, 100},
		{"越下界", -5, 0},
		{"边界值上", 100, 100},
		{"边界值下", 0, 0},
		{"区间内", 87, 87},
		{"小数截断", 66.9, 66},
		{"极端越界", 1e9, 100},
		{"极端负值", -1e9, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampScore(tc.input))
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.3))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.85, ClampConfidence(0.85))
	assert.Equal(t, 0.0, ClampConfidence(0))
	assert.Equal(t, 1.0, ClampConfidence(1))
}

func TestAnalyzerClampsOutOfRangeScores(t *testing.T) {
	// LLM返回130分与1.5置信度，写入前必须被纠正而不是拒绝
	chatModel := &scriptedChatModel{
		responses: []string{`{
			"match_score": 130,
			"technical_score": -10,
			"experience_score": 75,
			"culture_score": 101,
			"summary": "候选人整体匹配良好",
			"missing_skills": ["Kubernetes"],
			"strengths": ["Go", "分布式系统"],
			"confidence": 1.5,
			"rationale": "技能高度吻合"
		}`},
	}

	stage := NewAnalyzerStage(chatModel, NewToolRegistry(), fastRetry())
	state := NewWorkflowState(types.ScreeningRequest{
		JobDescription: "资深Go工程师",
		ResumeText:     "八年Go开发经验，熟悉分布式系统。",
	})

	trace, err := stage.Execute(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, state.Assessment)

	assert.Equal(t, 100, state.Assessment.MatchScore)
	assert.Equal(t, 0, state.Assessment.TechnicalScore)
	assert.Equal(t, 75, state.Assessment.ExperienceScore)
	assert.Equal(t, 100, state.Assessment.CultureScore)
	assert.Equal(t, 1.0, state.Assessment.Confidence)
	assert.Equal(t, "技能高度吻合", trace.Reasoning)
}

func TestAnalyzerPrefersRequestResumeText(t *testing.T) {
	chatModel := &scriptedChatModel{
		responses: []string{`{"match_score":80,"technical_score":80,"experience_score":80,"culture_score":80,"summary":"匹配","missing_skills":[],"strengths":[],"confidence":0.9,"rationale":"r"}`},
	}

	fetchCalled := false
	tools := NewToolRegistry()
	tools.Register(ToolFetchCandidate, func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		fetchCalled = true
		return types.CandidateMatch{}, nil
	})

	stage := NewAnalyzerStage(chatModel, tools, fastRetry())
	state := NewWorkflowState(types.ScreeningRequest{
		JobDescription: "Go工程师",
		ResumeText:     "简历文本",
		CandidateID:    "c-123",
	})

	_, err := stage.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, fetchCalled, "请求已带简历文本时不应回源取库")
}

func TestAnalyzerFetchesByCandidateID(t *testing.T) {
	chatModel := &scriptedChatModel{
		responses: []string{`{"match_score":70,"technical_score":70,"experience_score":70,"culture_score":70,"summary":"匹配","missing_skills":[],"strengths":[],"confidence":0.8,"rationale":"r"}`},
	}

	tools := NewToolRegistry()
	tools.Register(ToolFetchCandidate, func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		assert.Equal(t, "c-456", args["candidate_id"])
		return types.CandidateMatch{CandidateID: "c-456", ResumeText: "五年Go经验"}, nil
	})

	stage := NewAnalyzerStage(chatModel, tools, fastRetry())
	state := NewWorkflowState(types.ScreeningRequest{
		JobDescription: "Go工程师",
		CandidateID:    "c-456",
	})

	trace, err := stage.Execute(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, trace.ToolCalls, 1)
	assert.Equal(t, ToolFetchCandidate, trace.ToolCalls[0].ToolName)
}

func TestAnalyzerFailsWithoutResumeSource(t *testing.T) {
	stage := NewAnalyzerStage(&scriptedChatModel{}, NewToolRegistry(), fastRetry())
	state := NewWorkflowState(types.ScreeningRequest{JobDescription: "Go工程师"})

	_, err := stage.Execute(context.Background(), state)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPrecondition)
}
