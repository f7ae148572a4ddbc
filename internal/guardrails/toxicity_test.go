package guardrails

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconScorerCleanText(t *testing.T) {
	s := NewLexiconScorer(0.7)
	score, err := s.ScoreToxicity(context.Background(), "候选人技术扎实，沟通良好，推荐进入面试。")
	require.NoError(t, err)

	assert.Zero(t, score.Toxicity)
	assert.False(t, score.IsToxic)
}

func TestLexiconScorerSingleHitBelowThreshold(t *testing.T) {
	s := NewLexiconScorer(0.7)
	score, err := s.ScoreToxicity(context.Background(), "这段代码写得像垃圾人一样。")
	require.NoError(t, err)

	assert.InDelta(t, 0.4, score.Insult, 1e-9)
	assert.False(t, score.IsToxic, "单次命中0.4不超过阈值0.7")
}

func TestLexiconScorerRepeatedHitsCrossThreshold(t *testing.T) {
	s := NewLexiconScorer(0.7)
	score, err := s.ScoreToxicity(context.Background(), "废物，真是废物，彻底的废物。")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, score.Insult, 1e-9, "三次命中封顶1.0")
	assert.InDelta(t, 1.0, score.Toxicity, 1e-9)
	assert.True(t, score.IsToxic)
}

func TestLexiconScorerSevereRequiresMultipleAxes(t *testing.T) {
	s := NewLexiconScorer(0.7)

	single, err := s.ScoreToxicity(context.Background(), "废物废物废物")
	require.NoError(t, err)
	assert.Zero(t, single.SevereToxicity, "单轴高分不算严重毒性")

	multi, err := s.ScoreToxicity(context.Background(), "废物白痴蠢货，等着瞧，弄死你打死你")
	require.NoError(t, err)
	assert.Greater(t, multi.SevereToxicity, 0.0, "侮辱与威胁两轴同时高分视为严重毒性")
}

func TestLexiconScorerInvalidThresholdDefaults(t *testing.T) {
	s := NewLexiconScorer(0)
	score, err := s.ScoreToxicity(context.Background(), "废物废物")
	require.NoError(t, err)
	assert.True(t, score.IsToxic, "0.8超过默认阈值0.7")
}
