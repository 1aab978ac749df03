// Package learning provides per-agent adaptive action selection: a Q-learning
// engine with epsilon-greedy exploration and experience replay, and a policy
// gradient engine with per-state action distributions, value baselines and
// human-preference nudges. Both rely on a deterministic state encoding so
// state comparison is stable across runs, and can persist their tables
// through a versioned sqlite snapshot schema.
package learning
