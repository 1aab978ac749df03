// Package fallback wraps an unreliable operation with ordered, parallel,
// weighted or adaptively scored alternative handlers. Chains track per-option
// success rates and latencies; a Registry holds named chains so workers can
// share one chain per operation without a hidden global.
package fallback
