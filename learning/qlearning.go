package learning

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/logging"
)

// QLearningOptions holds configuration overrides passed to NewQLearning.
type QLearningOptions struct {
	// LearningRate is the alpha in the Bellman update.
	LearningRate float64
	// DiscountFactor is the gamma weighting future rewards.
	DiscountFactor float64
	// ExplorationRate is the initial epsilon for epsilon-greedy selection.
	ExplorationRate float64
	// ExplorationDecay multiplies epsilon after each episode.
	ExplorationDecay float64
	// ExplorationFloor bounds how low epsilon decays.
	ExplorationFloor float64
	// ReplayCapacity bounds the experience replay buffer.
	ReplayCapacity int
	// Seed fixes randomness for deterministic tests. Zero seeds from the clock.
	Seed int64
	// Logger receives update diagnostics.
	Logger logging.Logger
}

// QLearning maintains a per-state-action value table updated from observed
// experience. Safe for concurrent use.
type QLearning struct {
	mu     sync.Mutex
	table  map[string]map[string]float64
	replay []Experience
	rng    *rand.Rand

	alpha   float64
	gamma   float64
	epsilon float64
	decay   float64
	floor   float64
	cap     int
	logger  logging.Logger
}

// NewQLearning constructs an engine with optional overrides.
func NewQLearning(optFns ...func(o *QLearningOptions)) *QLearning {
	opts := QLearningOptions{
		LearningRate:     0.1,
		DiscountFactor:   0.9,
		ExplorationRate:  0.3,
		ExplorationDecay: 0.995,
		ExplorationFloor: 0.01,
		ReplayCapacity:   1000,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &QLearning{
		table:   make(map[string]map[string]float64),
		rng:     rand.New(rand.NewSource(seed)),
		alpha:   opts.LearningRate,
		gamma:   opts.DiscountFactor,
		epsilon: opts.ExplorationRate,
		decay:   opts.ExplorationDecay,
		floor:   opts.ExplorationFloor,
		cap:     opts.ReplayCapacity,
		logger:  opts.Logger,
	}
}

// SelectAction picks epsilon-greedily from the given actions: with
// probability epsilon a uniformly random action, otherwise the one with the
// highest Q value (first listed wins ties).
func (q *QLearning) SelectAction(state map[string]any, actions []string) string {
	if len(actions) == 0 {
		return ""
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.rng.Float64() < q.epsilon {
		return actions[q.rng.Intn(len(actions))]
	}

	values := q.table[StateKey(state)]
	best := actions[0]
	bestVal := values[best]
	for _, a := range actions[1:] {
		if v := values[a]; v > bestVal {
			best, bestVal = a, v
		}
	}
	return best
}

// Update applies the Bellman update for one experience:
//
//	Q(s,a) += alpha * (r + gamma*max_a' Q(s',a') - Q(s,a))
//
// with max_a' Q(s',a') = 0 for terminal transitions. The table initializes
// every untried action at zero, so the next-state max is taken over the full
// action space and never drops below zero even when every stored value is
// negative. The experience is also appended to the replay buffer.
func (q *QLearning) Update(exp Experience) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateLocked(exp)
	q.recordLocked(exp)
}

func (q *QLearning) updateLocked(exp Experience) {
	key := StateKey(exp.State)
	values, ok := q.table[key]
	if !ok {
		values = make(map[string]float64)
		q.table[key] = values
	}

	var maxNext float64
	if !exp.Terminal {
		for _, v := range q.table[StateKey(exp.NextState)] {
			if v > maxNext {
				maxNext = v
			}
		}
	}

	old := values[exp.Action]
	values[exp.Action] = old + q.alpha*(exp.Reward+q.gamma*maxNext-old)
}

func (q *QLearning) recordLocked(exp Experience) {
	if q.cap <= 0 {
		return
	}
	if len(q.replay) >= q.cap {
		q.replay = q.replay[1:]
	}
	q.replay = append(q.replay, exp)
}

// Replay re-trains on a random batch from the replay buffer. Batches larger
// than the buffer train on everything retained.
func (q *QLearning) Replay(batchSize int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.replay)
	if n == 0 || batchSize <= 0 {
		return
	}
	if batchSize > n {
		batchSize = n
	}
	for _, idx := range q.rng.Perm(n)[:batchSize] {
		q.updateLocked(q.replay[idx])
	}
}

// DecayExploration multiplies epsilon by the decay factor, bounded below by
// the floor. Call once per finished episode.
func (q *QLearning) DecayExploration() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.epsilon *= q.decay
	if q.epsilon < q.floor {
		q.epsilon = q.floor
	}
}

// ExplorationRate returns the current epsilon.
func (q *QLearning) ExplorationRate() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epsilon
}

// QValue returns the learned value for a state/action pair (zero if never
// visited).
func (q *QLearning) QValue(state map[string]any, action string) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.table[StateKey(state)][action]
}

// ReplayLen returns the number of buffered experiences.
func (q *QLearning) ReplayLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.replay)
}

// Export returns a deep copy of the value table for snapshotting.
func (q *QLearning) Export() map[string]map[string]float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]map[string]float64, len(q.table))
	for state, actions := range q.table {
		cp := make(map[string]float64, len(actions))
		for a, v := range actions {
			cp[a] = v
		}
		out[state] = cp
	}
	return out
}

// Import replaces the value table with a previously exported snapshot.
func (q *QLearning) Import(values map[string]map[string]float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.table = make(map[string]map[string]float64, len(values))
	for state, actions := range values {
		cp := make(map[string]float64, len(actions))
		for a, v := range actions {
			cp[a] = v
		}
		q.table[state] = cp
	}
}
