// Package core defines the shared data model of the AgentSwarm framework:
// tasks, results, messages, agent capabilities and the Agent interface that
// every worker and orchestrator implements. It also hosts the narrow seams
// (TaskStore, CallLimiter) through which the core talks to excluded
// subsystems such as persistence and domain tooling.
//
// Types in this package are deliberately free of behavior beyond small
// helpers; coordination logic lives in the bus, fallback, scaling and agent
// packages.
package core
