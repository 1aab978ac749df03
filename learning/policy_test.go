package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAction_InitializesUniform(t *testing.T) {
	p := NewPolicyGradient(func(o *PolicyGradientOptions) { o.Seed = 1 })
	state := map[string]any{"phase": "plan"}

	got := p.SelectAction(state, []string{"a", "b", "c", "d"})
	assert.Contains(t, []string{"a", "b", "c", "d"}, got)

	dist := p.ActionProbabilities(state)
	require.Len(t, dist, 4)
	for _, prob := range dist {
		assert.InDelta(t, 0.25, prob, 1e-9)
	}
}

func TestEndEpisode_ReinforcesRewardedAction(t *testing.T) {
	p := NewPolicyGradient(func(o *PolicyGradientOptions) { o.Seed = 1 })
	state := map[string]any{"phase": "plan"}

	p.SelectAction(state, []string{"good", "bad"})
	p.RecordStep(state, "good", 10)
	p.EndEpisode()

	dist := p.ActionProbabilities(state)
	assert.Greater(t, dist["good"], dist["bad"])
	assert.InDelta(t, 1.0, dist["good"]+dist["bad"], 1e-9, "distribution stays normalized")

	assert.Greater(t, p.Baseline(state), 0.0, "baseline tracks observed return")
	assert.Empty(t, p.ActionProbabilities(map[string]any{"phase": "other"}), "episode cleared")
}

func TestEndEpisode_DiscountsReturns(t *testing.T) {
	p := NewPolicyGradient(func(o *PolicyGradientOptions) {
		o.DiscountFactor = 0.5
		o.BaselineRate = 1.0
	})
	s1 := map[string]any{"step": 1}
	s2 := map[string]any{"step": 2}

	p.SelectAction(s1, []string{"x", "y"})
	p.SelectAction(s2, []string{"x", "y"})
	p.RecordStep(s1, "x", 0)
	p.RecordStep(s2, "x", 8)
	p.EndEpisode()

	// G(s2)=8, G(s1)=0+0.5*8=4; baseline rate 1.0 snaps baselines to returns.
	assert.InDelta(t, 4.0, p.Baseline(s1), 1e-9)
	assert.InDelta(t, 8.0, p.Baseline(s2), 1e-9)
}

func TestEndEpisode_NegativeAdvantageSuppresses(t *testing.T) {
	p := NewPolicyGradient()
	state := map[string]any{"phase": "plan"}

	p.SelectAction(state, []string{"a", "b"})
	p.RecordStep(state, "a", -10)
	p.EndEpisode()

	dist := p.ActionProbabilities(state)
	assert.Less(t, dist["a"], dist["b"])
	for _, prob := range dist {
		assert.GreaterOrEqual(t, prob, minProbability/2, "clamped, then renormalized")
	}
}

func TestApplyPreference_UsesSameUpdateForm(t *testing.T) {
	p := NewPolicyGradient()
	state := map[string]any{"phase": "review"}

	p.SelectAction(state, []string{"a", "b"})
	p.ApplyPreference(state, "b", 5.0)

	dist := p.ActionProbabilities(state)
	assert.Greater(t, dist["b"], dist["a"])
	assert.InDelta(t, 1.0, dist["a"]+dist["b"], 1e-9)
}

func TestEndEpisode_EmptyIsNoOp(t *testing.T) {
	p := NewPolicyGradient()
	p.EndEpisode()
	assert.Empty(t, p.ActionProbabilities(map[string]any{"s": 1}))
}

func TestPolicyExportImport_RoundTrip(t *testing.T) {
	p := NewPolicyGradient()
	state := map[string]any{"s": 1}
	p.SelectAction(state, []string{"a", "b"})
	p.ApplyPreference(state, "a", 3.0)
	p.RecordStep(state, "a", 2.0)
	p.EndEpisode()

	restored := NewPolicyGradient()
	restored.Import(p.Export(), p.ExportBaselines())

	assert.Equal(t, p.ActionProbabilities(state), restored.ActionProbabilities(state))
	assert.Equal(t, p.Baseline(state), restored.Baseline(state))
}
