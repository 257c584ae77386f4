package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/tailorflow/internal/pool"
	"github.com/BaSui01/tailorflow/types"
)

// GroupResult is what a parallel group hands back to the engine.
type GroupResult struct {
	// Deltas to merge, in order. On success these are all branch deltas in
	// branch completion order; on failure only the failed branch's deltas.
	Deltas []Delta
	// Completion lists branch names in the order they finished.
	Completion []string
	Err        *types.Error
}

// branchError carries the index of the branch whose phase failed.
type branchError struct {
	branch int
	err    *types.Error
}

func (e *branchError) Error() string { return e.err.Error() }
func (e *branchError) Unwrap() error { return e.err }

type branchOutcome struct {
	branch int
	deltas []Delta
}

// GroupCoordinator runs the branches of a Group concurrently on a bounded
// pool and joins them. Workers never touch the engine's State.
type GroupCoordinator struct {
	pool   *pool.GoroutinePool
	logger *zap.Logger
}

// NewGroupCoordinator creates a coordinator backed by p.
func NewGroupCoordinator(p *pool.GoroutinePool, logger *zap.Logger) *GroupCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupCoordinator{
		pool:   p,
		logger: logger.With(zap.String("component", "group_coordinator")),
	}
}

// Run executes every branch of g against snapshot and blocks until all of
// them return. The first branch failure wins; the other branches' deltas
// are discarded.
func (c *GroupCoordinator) Run(ctx context.Context, g *Group, snapshot State) GroupResult {
	var (
		mu       sync.Mutex
		finished []branchOutcome
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, br := range g.Branches {
		eg.Go(func() error {
			err := c.pool.SubmitWait(egCtx, func(taskCtx context.Context) error {
				out, failed := runBranch(taskCtx, i, br, snapshot)
				mu.Lock()
				finished = append(finished, out)
				mu.Unlock()
				if failed != nil {
					return &branchError{branch: i, err: failed}
				}
				return nil
			})
			if err == nil {
				return nil
			}
			var be *branchError
			if errors.As(err, &be) {
				return be
			}
			return &branchError{
				branch: i,
				err: types.NewError(types.ErrCollaboratorFailure, "branch did not complete").
					WithPhase(br.Name).
					WithCause(err),
			}
		})
	}

	result := GroupResult{}
	err := eg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, out := range finished {
		result.Completion = append(result.Completion, g.Branches[out.branch].Name)
	}

	if err != nil {
		var be *branchError
		errors.As(err, &be)
		result.Err = be.err
		for _, out := range finished {
			if out.branch == be.branch {
				result.Deltas = out.deltas
			}
		}
		if n := len(result.Deltas); n == 0 || !result.Deltas[n-1].IsFailed() {
			result.Deltas = append(result.Deltas, Failed(g.ID, be.err))
		}
		c.logger.Warn("parallel group failed",
			zap.String("group", string(g.ID)),
			zap.String("branch", g.Branches[be.branch].Name),
			zap.Error(be.err),
		)
		return result
	}

	for _, out := range finished {
		result.Deltas = append(result.Deltas, out.deltas...)
	}
	c.logger.Debug("parallel group joined",
		zap.String("group", string(g.ID)),
		zap.Strings("completion", result.Completion),
	)
	return result
}

// runBranch executes the branch's phases in order on a private copy of the
// snapshot so later phases observe earlier branch output.
func runBranch(ctx context.Context, index int, br Branch, snapshot State) (branchOutcome, *types.Error) {
	out := branchOutcome{branch: index}
	local := snapshot.Snapshot()

	for _, p := range br.Phases {
		d := runPhase(ctx, p, local)
		out.deltas = append(out.deltas, d)
		if d.IsFailed() {
			return out, d.Err
		}
		merged, err := Merge(local, d)
		if err != nil {
			te, _ := types.AsError(err)
			out.deltas[len(out.deltas)-1] = Failed(p.ID(), te)
			return out, te
		}
		local = merged
	}
	return out, nil
}

// runPhase invokes a phase, converting panics and contract violations into
// failed deltas.
func runPhase(ctx context.Context, p Phase, snapshot State) (d Delta) {
	defer func() {
		if r := recover(); r != nil {
			d = Failed(p.ID(), types.Errorf(types.ErrInternalError, "phase panicked: %v", r))
		}
	}()

	d = p.Run(ctx, snapshot).normalize(p.ID())
	if d.IsFailed() {
		return d
	}

	allowed := make(map[Slot]bool, len(p.Writes()))
	for _, s := range p.Writes() {
		allowed[s] = true
	}
	for _, s := range d.Written() {
		if !allowed[s] {
			return Failed(p.ID(), configError(
				fmt.Sprintf("phase %s wrote undeclared slot %q", p.ID(), s), ErrUnknownSlot))
		}
	}
	return d
}
