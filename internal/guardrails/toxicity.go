package guardrails

import (
	"context"
	"strings"
)

// ToxicityScorer 毒性评分能力。
// 默认实现为本地词典评分器，可替换为外部审核服务的适配器。
type ToxicityScorer interface {
	ScoreToxicity(ctx context.Context, text string) (ToxicityScore, error)
}

// 词典评分器的轴别词表。每次命中为对应轴累加一档分值。
var toxicityLexicon = map[string][]string{
	"obscene":         {"操", "妈的", "fuck", "shit", "bitch"},
	"threat":          {"弄死你", "打死你", "等着瞧", "kill you", "hurt you"},
	"insult":          {"废物", "蠢货", "垃圾人", "白痴", "idiot", "stupid", "loser", "worthless"},
	"identity_attack": {"你们这种人", "低等", "劣等", "those people", "subhuman"},
}

const lexiconHitWeight = 0.4

// LexiconScorer 本地词典毒性评分器。
// 每个轴的分数 = min(1.0, 命中数*0.4)，主毒性分取各轴最大值。
type LexiconScorer struct {
	threshold float64
}

// NewLexiconScorer 创建词典评分器，threshold为主毒性判定阈值
func NewLexiconScorer(threshold float64) *LexiconScorer {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &LexiconScorer{threshold: threshold}
}

// ScoreToxicity 对文本进行多轴毒性评分
func (s *LexiconScorer) ScoreToxicity(_ context.Context, text string) (ToxicityScore, error) {
	lower := strings.ToLower(text)

	axisScore := func(axis string) float64 {
		hits := 0
		for _, term := range toxicityLexicon[axis] {
			hits += strings.Count(lower, strings.ToLower(term))
		}
		score := float64(hits) * lexiconHitWeight
		if score > 1 {
			score = 1
		}
		return score
	}

	score := ToxicityScore{
		Obscene:        axisScore("obscene"),
		Threat:         axisScore("threat"),
		Insult:         axisScore("insult"),
		IdentityAttack: axisScore("identity_attack"),
	}

	for _, v := range []float64{score.Obscene, score.Threat, score.Insult, score.IdentityAttack} {
		if v > score.Toxicity {
			score.Toxicity = v
		}
	}
	// 两个及以上轴同时高分视为严重毒性
	high := 0
	for _, v := range []float64{score.Obscene, score.Threat, score.Insult, score.IdentityAttack} {
		if v >= s.threshold {
			high++
		}
	}
	if high >= 2 {
		score.SevereToxicity = score.Toxicity
	}

	score.IsToxic = score.Toxicity > s.threshold
	return score, nil
}

var _ ToxicityScorer = (*LexiconScorer)(nil)
