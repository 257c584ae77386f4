package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/types"
)

// Observer receives engine events. Implementations must be safe for
// concurrent use; one Observer is typically shared by every run.
type Observer interface {
	PhaseCompleted(graph string, phase PhaseID, kind NodeKind, outcome Outcome, elapsed time.Duration)
	Routed(graph string, from, to PhaseID)
	RunCompleted(graph string, status ExecutionStatus, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) PhaseCompleted(string, PhaseID, NodeKind, Outcome, time.Duration) {}
func (nopObserver) Routed(string, PhaseID, PhaseID)                                   {}
func (nopObserver) RunCompleted(string, ExecutionStatus, time.Duration)              {}

type multiObserver []Observer

// JoinObservers fans every event out to each non-nil observer in order.
func JoinObservers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return nopObserver{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiObserver) PhaseCompleted(graph string, phase PhaseID, kind NodeKind, outcome Outcome, elapsed time.Duration) {
	for _, o := range m {
		o.PhaseCompleted(graph, phase, kind, outcome, elapsed)
	}
}

func (m multiObserver) Routed(graph string, from, to PhaseID) {
	for _, o := range m {
		o.Routed(graph, from, to)
	}
}

func (m multiObserver) RunCompleted(graph string, status ExecutionStatus, elapsed time.Duration) {
	for _, o := range m {
		o.RunCompleted(graph, status, elapsed)
	}
}

// RunResult is the outcome of Engine.Run.
type RunResult struct {
	State   State
	Visited []PhaseID
	History *ExecutionHistory
}

// Engine drives a Graph from its entry node to a terminal state. It owns the
// run's State: every phase gets a snapshot, and deltas are merged here only.
type Engine struct {
	graph    *Graph
	groups   *GroupCoordinator
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	history  *ExecutionHistoryStore
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver installs an event observer (e.g. the metrics collector).
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithHistoryStore saves every finished run's history into store.
func WithHistoryStore(store *ExecutionHistoryStore) EngineOption {
	return func(e *Engine) { e.history = store }
}

// NewEngine creates an engine for graph. Group nodes run on coordinator.
func NewEngine(graph *Graph, coordinator *GroupCoordinator, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		graph:    graph,
		groups:   coordinator,
		logger:   logger.With(zap.String("component", "engine"), zap.String("graph", graph.Name())),
		tracer:   otel.Tracer("tailorflow/workflow"),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine drives.
func (e *Engine) Graph() *Graph { return e.graph }

// Run executes the graph starting from initial. It returns the final State
// in every case; the error is non-nil when the run reached the error
// terminal and then equals the State's Err.
//
// ctx is passed to phases and collaborators. The engine itself does not
// abort between phases when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, initial State) (*RunResult, error) {
	name := e.graph.Name()
	runID := initial.Inputs.RunID

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.graph", name),
		attribute.String("workflow.run_id", runID),
	))
	defer span.End()

	start := time.Now()
	history := NewExecutionHistory(runID, name)
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("starting run", zap.String("entry", string(e.graph.Entry())))

	state := initial.Snapshot()
	if state.types == nil {
		state.types = e.graph.types
	}
	current := e.graph.Entry()
	maxSteps := e.graph.Len() + 1
	var visited []PhaseID

	for steps := 0; !current.IsTerminal(); steps++ {
		if steps >= maxSteps {
			state.Err = routingError(
				fmt.Sprintf("run exceeded %d steps without reaching a terminal", maxSteps), ErrStepLimit)
			current = ErrorTerminal
			break
		}
		node, ok := e.graph.Node(current)
		if !ok {
			state.Err = routingError(fmt.Sprintf("no node %s in graph", current), ErrNoRoute)
			current = ErrorTerminal
			break
		}

		state.CurrentPhase = current
		visited = append(visited, current)

		next := e.step(ctx, node, &state, history, logger)
		e.observer.Routed(name, current, next)
		current = next
	}

	state.CurrentPhase = current
	elapsed := time.Since(start)
	result := &RunResult{State: state, Visited: visited, History: history}

	var runErr error
	if state.Err != nil {
		runErr = state.Err
	}
	history.Complete(runErr)
	if e.history != nil {
		e.history.Save(history)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, string(state.Err.Code))
		e.observer.RunCompleted(name, ExecutionStatusFailed, elapsed)
		logger.Warn("run failed",
			zap.Strings("visited", phaseStrings(visited)),
			zap.Duration("duration", elapsed),
			zap.Error(runErr),
		)
		return result, runErr
	}

	e.observer.RunCompleted(name, ExecutionStatusCompleted, elapsed)
	logger.Info("run completed",
		zap.Strings("visited", phaseStrings(visited)),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

// step executes one node, merges its deltas into state and returns the next
// node id. Failures route to the error terminal before any rule is read.
func (e *Engine) step(ctx context.Context, node *Node, state *State, history *ExecutionHistory, logger *zap.Logger) PhaseID {
	ctx, span := e.tracer.Start(ctx, "workflow.phase "+string(node.ID), trace.WithAttributes(
		attribute.String("workflow.phase", string(node.ID)),
		attribute.String("workflow.node_kind", string(node.Kind)),
	))
	defer span.End()

	rec := history.RecordPhaseStart(node.ID, node.Kind)
	start := time.Now()
	snapshot := state.Snapshot()

	var deltas []Delta
	if node.Kind == NodeGroup {
		res := e.groups.Run(ctx, node.Group, snapshot)
		deltas = res.Deltas
		span.SetAttributes(attribute.StringSlice("workflow.branch_completion", res.Completion))
	} else {
		deltas = []Delta{runPhase(ctx, node.Phase, snapshot)}
	}

	var writes []Slot
	for _, d := range deltas {
		merged, err := Merge(*state, d)
		if err != nil {
			te, _ := types.AsError(err)
			merged, _ = Merge(*state, Failed(d.Phase, te))
		}
		*state = merged
		writes = append(writes, d.Written()...)
		if state.Err != nil {
			break
		}
	}

	next := ErrorTerminal
	if state.Err == nil {
		resolved, err := node.Rule.Resolve(*state)
		if err != nil {
			te, _ := types.AsError(err)
			state.Err = te.WithPhase(string(node.ID))
			state.Messages = append(state.Messages, Message{Phase: node.ID, Text: "routing failed: " + te.Message})
		} else {
			next = resolved
		}
	}

	elapsed := time.Since(start)
	outcome := OutcomeNext
	var stepErr error
	if state.Err != nil {
		outcome = OutcomeError
		stepErr = state.Err
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, string(state.Err.Code))
	}
	history.RecordPhaseEnd(rec, writes, next, stepErr)
	e.observer.PhaseCompleted(e.graph.Name(), node.ID, node.Kind, outcome, elapsed)

	logger.Debug("phase finished",
		zap.String("phase", string(node.ID)),
		zap.String("outcome", outcome.String()),
		zap.String("next", string(next)),
		zap.Duration("duration", elapsed),
	)
	return next
}

func phaseStrings(ids []PhaseID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
