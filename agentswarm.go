// Package agentswarm provides a high-level façade over the orchestration
// core (message bus, fallback registry, load balancer, orchestrator, memory
// and learning services) enabling rapid construction of multi-agent systems.
// Most applications interact with this package by:
//  1. Creating a Swarm via New() (optionally overriding default in-memory services)
//  2. Registering one or more workers (research, code, test, data analysis, general, custom)
//  3. Submitting tasks asynchronously (SubmitTask + WaitResult) or synchronously (SubmitTaskSync)
//
// The façade delegates coordination to agent.Orchestrator while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable task store
// and a structured logger.
package agentswarm

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/bus"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/fallback"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/memory"
	"github.com/hupe1980/agentswarm/scaling"
)

// Options configures the Swarm instance.
type Options struct {
	// QueueCapacity bounds each agent's bus mailbox.
	QueueCapacity int

	// Store persists tasks and results (defaults to none; supply
	// store.NewInMemoryStore() or store.NewSQLiteStore for durability).
	Store core.TaskStore

	// ResultRetention bounds how long a completed task's result is held for
	// WaitResult pickup. Unclaimed results are dropped after this window and
	// WaitResult then reports core.ErrNotFound. Defaults to five minutes.
	ResultRetention time.Duration

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Swarm is the high-level façade aggregating the orchestrator and the
// supporting services it coordinates through.
type Swarm struct {
	opts         Options
	bus          *bus.MessageBus
	fallbacks    *fallback.Registry
	balancer     *scaling.LoadBalancer
	orchestrator *agent.Orchestrator
	memory       *memory.Manager
	contexts     *memory.ContextProtocol

	mu      sync.Mutex
	pending map[string]*pendingTask
}

type pendingTask struct {
	done   chan struct{}
	result *core.Result
}

// New creates a Swarm with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Swarm {
	opts := Options{
		QueueCapacity:   1000,
		ResultRetention: 5 * time.Minute,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.ResultRetention <= 0 {
		opts.ResultRetention = 5 * time.Minute
	}

	mb := bus.New(func(o *bus.Options) {
		o.QueueCapacity = opts.QueueCapacity
		o.Logger = opts.Logger
	})

	balancer := scaling.NewLoadBalancer()

	orchestrator := agent.NewOrchestrator(func(o *agent.OrchestratorOptions) {
		o.Balancer = balancer
		o.Bus = mb
		o.Store = opts.Store
		o.Logger = opts.Logger
	})

	return &Swarm{
		opts:         opts,
		bus:          mb,
		fallbacks:    fallback.NewRegistry(func(o *fallback.RegistryOptions) { o.Logger = opts.Logger }),
		balancer:     balancer,
		orchestrator: orchestrator,
		memory:       memory.NewManager(func(o *memory.ManagerOptions) { o.Logger = opts.Logger }),
		contexts:     memory.NewContextProtocol(func(o *memory.ContextProtocolOptions) { o.Logger = opts.Logger }),
		pending:      make(map[string]*pendingTask),
	}
}

// RegisterWorker adds a worker to the orchestrator's delegation pool.
func (s *Swarm) RegisterWorker(w core.Agent) { s.orchestrator.RegisterWorker(w) }

// SubmitTask accepts a task for asynchronous processing and returns its id.
// The caller retrieves the outcome via WaitResult within the configured
// ResultRetention window; unclaimed results are reaped once it elapses.
func (s *Swarm) SubmitTask(description string, requirements []string, priority int, taskContext map[string]any) string {
	task := core.NewTask(description, requirements, priority, taskContext)

	p := &pendingTask{done: make(chan struct{})}

	s.mu.Lock()
	s.pending[task.ID] = p
	s.mu.Unlock()

	go func() {
		p.result = s.orchestrator.ProcessTask(context.Background(), task)
		close(p.done)

		time.AfterFunc(s.opts.ResultRetention, func() {
			s.mu.Lock()
			delete(s.pending, task.ID)
			s.mu.Unlock()
		})
	}()

	return task.ID
}

// SubmitTaskSync runs the full pipeline inline and returns the synthesized
// result.
func (s *Swarm) SubmitTaskSync(ctx context.Context, description string, requirements []string, priority int, taskContext map[string]any) *core.Result {
	task := core.NewTask(description, requirements, priority, taskContext)
	return s.orchestrator.ProcessTask(ctx, task)
}

// WaitResult blocks until the submitted task completes or the timeout
// elapses. An unknown task id yields core.ErrNotFound, as does a result
// already reaped after ResultRetention; a timeout yields core.ErrTimeout
// with the task left running (there is no cancellation for in-flight tasks).
func (s *Swarm) WaitResult(taskID string, timeout time.Duration) (*core.Result, error) {
	s.mu.Lock()
	p, ok := s.pending[taskID]
	s.mu.Unlock()

	if !ok {
		return nil, core.ErrNotFound
	}

	if timeout <= 0 {
		<-p.done
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-p.done:
		case <-timer.C:
			return nil, core.ErrTimeout
		}
	}

	s.mu.Lock()
	delete(s.pending, taskID)
	s.mu.Unlock()

	return p.result, nil
}

// ShareContext stores content under the shared scope and broadcasts a
// context_share notification so other agents can pick the entry up. Returns
// the entry id.
func (s *Swarm) ShareContext(agentID, entryType string, content any, importance float64) string {
	id := s.contexts.Store(agentID, entryType, memory.ScopeShared, content, importance, 0)

	msg := core.NewMessage(agentID, core.Broadcast, core.MessageTypeContextShare, map[string]any{
		"context_id": id,
		"type":       entryType,
	})
	if err := s.bus.Send(msg); err != nil {
		s.opts.Logger.Warn("context share broadcast failed", "context_id", id, "error", err)
	}

	return id
}

// Bus exposes the message bus for direct agent-to-agent messaging.
func (s *Swarm) Bus() *bus.MessageBus { return s.bus }

// Fallbacks exposes the fallback chain registry.
func (s *Swarm) Fallbacks() *fallback.Registry { return s.fallbacks }

// Balancer exposes the load balancer shared with the orchestrator.
func (s *Swarm) Balancer() *scaling.LoadBalancer { return s.balancer }

// Orchestrator exposes the underlying orchestrator.
func (s *Swarm) Orchestrator() *agent.Orchestrator { return s.orchestrator }

// Memory exposes the short/long-term memory manager.
func (s *Swarm) Memory() *memory.Manager { return s.memory }

// Contexts exposes the scoped context protocol.
func (s *Swarm) Contexts() *memory.ContextProtocol { return s.contexts }
