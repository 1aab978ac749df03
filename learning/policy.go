package learning

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/logging"
)

// PolicyGradientOptions holds configuration overrides passed to
// NewPolicyGradient.
type PolicyGradientOptions struct {
	// LearningRate scales the probability nudges.
	LearningRate float64
	// DiscountFactor is the gamma applied to episode returns.
	DiscountFactor float64
	// BaselineRate is the TD rate at which state value baselines track
	// observed returns.
	BaselineRate float64
	// Seed fixes randomness for deterministic tests. Zero seeds from the clock.
	Seed int64
	// Logger receives update diagnostics.
	Logger logging.Logger
}

// minProbability keeps every action reachable; renormalization restores a
// proper distribution after clamping.
const minProbability = 0.01

type episodeStep struct {
	stateKey string
	action   string
	reward   float64
}

// PolicyGradient maintains per-state action-probability distributions and a
// per-state value baseline. Steps accumulate during an episode; EndEpisode
// computes discounted returns and nudges the chosen actions' probabilities
// by their advantage over the baseline. Safe for concurrent use.
type PolicyGradient struct {
	mu        sync.Mutex
	policies  map[string]map[string]float64
	baselines map[string]float64
	episode   []episodeStep
	rng       *rand.Rand

	alpha        float64
	gamma        float64
	baselineRate float64
	logger       logging.Logger
}

// NewPolicyGradient constructs an engine with optional overrides.
func NewPolicyGradient(optFns ...func(o *PolicyGradientOptions)) *PolicyGradient {
	opts := PolicyGradientOptions{
		LearningRate:   0.1,
		DiscountFactor: 0.95,
		BaselineRate:   0.1,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PolicyGradient{
		policies:     make(map[string]map[string]float64),
		baselines:    make(map[string]float64),
		rng:          rand.New(rand.NewSource(seed)),
		alpha:        opts.LearningRate,
		gamma:        opts.DiscountFactor,
		baselineRate: opts.BaselineRate,
		logger:       opts.Logger,
	}
}

// SelectAction samples from the state's action distribution, initializing it
// uniformly over the given actions on first sight of the state. Actions not
// yet in the distribution are added with the minimum probability.
func (p *PolicyGradient) SelectAction(state map[string]any, actions []string) string {
	if len(actions) == 0 {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dist := p.distLocked(StateKey(state), actions)

	draw := p.rng.Float64()
	var cum float64
	for _, a := range actions {
		cum += dist[a]
		if draw < cum {
			return a
		}
	}
	return actions[len(actions)-1]
}

// RecordStep appends one (state, action, reward) step to the open episode.
func (p *PolicyGradient) RecordStep(state map[string]any, action string, reward float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.episode = append(p.episode, episodeStep{stateKey: StateKey(state), action: action, reward: reward})
}

// EndEpisode closes the open episode: discounted returns are computed
// backwards, each state's baseline moves toward its return by the baseline
// rate, and each chosen action's probability is nudged by
// alpha * advantage * (1 - p) before the distribution is renormalized.
func (p *PolicyGradient) EndEpisode() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.episode) == 0 {
		return
	}

	returns := make([]float64, len(p.episode))
	var g float64
	for i := len(p.episode) - 1; i >= 0; i-- {
		g = p.episode[i].reward + p.gamma*g
		returns[i] = g
	}

	for i, step := range p.episode {
		baseline := p.baselines[step.stateKey]
		advantage := returns[i] - baseline
		p.baselines[step.stateKey] = baseline + p.baselineRate*advantage

		p.nudgeLocked(step.stateKey, step.action, advantage)
	}

	p.episode = nil
}

// ApplyPreference nudges an action's probability directly from human
// feedback, using the same update form with the preference standing in for
// the advantage. Positive preference reinforces, negative suppresses.
func (p *PolicyGradient) ApplyPreference(state map[string]any, action string, preference float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nudgeLocked(StateKey(state), action, preference)
}

// ActionProbabilities returns a copy of the state's current distribution.
func (p *PolicyGradient) ActionProbabilities(state map[string]any) map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dist, ok := p.policies[StateKey(state)]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(dist))
	for a, v := range dist {
		out[a] = v
	}
	return out
}

// Baseline returns the state's current value baseline.
func (p *PolicyGradient) Baseline(state map[string]any) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baselines[StateKey(state)]
}

// distLocked returns the state's distribution, initializing missing actions.
func (p *PolicyGradient) distLocked(stateKey string, actions []string) map[string]float64 {
	dist, ok := p.policies[stateKey]
	if !ok {
		dist = make(map[string]float64, len(actions))
		uniform := 1.0 / float64(len(actions))
		for _, a := range actions {
			dist[a] = uniform
		}
		p.policies[stateKey] = dist
		return dist
	}

	added := false
	for _, a := range actions {
		if _, known := dist[a]; !known {
			dist[a] = minProbability
			added = true
		}
	}
	if added {
		normalize(dist)
	}
	return dist
}

func (p *PolicyGradient) nudgeLocked(stateKey, action string, advantage float64) {
	dist, ok := p.policies[stateKey]
	if !ok {
		dist = map[string]float64{action: 1.0}
		p.policies[stateKey] = dist
	}
	if _, known := dist[action]; !known {
		dist[action] = minProbability
	}

	prob := dist[action]
	prob += p.alpha * advantage * (1 - prob)
	if prob < minProbability {
		prob = minProbability
	}
	dist[action] = prob
	normalize(dist)
}

func normalize(dist map[string]float64) {
	var total float64
	for _, v := range dist {
		total += v
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(dist))
		for a := range dist {
			dist[a] = uniform
		}
		return
	}
	for a := range dist {
		dist[a] /= total
	}
}

// Export returns a deep copy of the policy distributions for snapshotting.
func (p *PolicyGradient) Export() map[string]map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]map[string]float64, len(p.policies))
	for state, dist := range p.policies {
		cp := make(map[string]float64, len(dist))
		for a, v := range dist {
			cp[a] = v
		}
		out[state] = cp
	}
	return out
}

// ExportBaselines returns a copy of the per-state value baselines.
func (p *PolicyGradient) ExportBaselines() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.baselines))
	for state, v := range p.baselines {
		out[state] = v
	}
	return out
}

// Import replaces distributions and baselines with a previous snapshot.
// A nil baselines map leaves the current baselines untouched.
func (p *PolicyGradient) Import(policies map[string]map[string]float64, baselines map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies = make(map[string]map[string]float64, len(policies))
	for state, dist := range policies {
		cp := make(map[string]float64, len(dist))
		for a, v := range dist {
			cp[a] = v
		}
		p.policies[state] = cp
	}
	if baselines != nil {
		p.baselines = make(map[string]float64, len(baselines))
		for state, v := range baselines {
			p.baselines[state] = v
		}
	}
}
