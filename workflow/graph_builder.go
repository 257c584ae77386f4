package workflow

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type nodeDecl struct {
	id       PhaseID
	rule     RoutingRule
	branches [][]PhaseID // non-nil for groups
}

// GraphBuilder provides a fluent API for declaring a phase graph in
// configuration order. Build validates the declaration against a Registry.
type GraphBuilder struct {
	name     string
	registry *Registry
	decls    []nodeDecl
	disabled map[PhaseID]bool
	logger   *zap.Logger
}

// NewGraphBuilder creates a builder resolving phase ids through registry.
func NewGraphBuilder(name string, registry *Registry) *GraphBuilder {
	return &GraphBuilder{
		name:     name,
		registry: registry,
		disabled: make(map[PhaseID]bool),
		logger:   zap.NewNop(),
	}
}

// WithLogger sets a custom logger
func (b *GraphBuilder) WithLogger(logger *zap.Logger) *GraphBuilder {
	if logger != nil {
		b.logger = logger.With(zap.String("component", "graph_builder"))
	}
	return b
}

// AddPhase declares a registered phase and its routing rule.
func (b *GraphBuilder) AddPhase(id PhaseID, rule RoutingRule) *GraphBuilder {
	b.decls = append(b.decls, nodeDecl{id: id, rule: rule})
	return b
}

// AddGroup declares a parallel group. Each branch lists registered phase
// ids run in order on one worker.
func (b *GraphBuilder) AddGroup(id PhaseID, rule RoutingRule, branches ...[]PhaseID) *GraphBuilder {
	copied := make([][]PhaseID, len(branches))
	for i, br := range branches {
		copied[i] = append([]PhaseID(nil), br...)
	}
	b.decls = append(b.decls, nodeDecl{id: id, rule: rule, branches: copied})
	return b
}

// Disable removes phases (or whole groups) from the graph. Predecessors are
// re-linked to the next enabled phase.
func (b *GraphBuilder) Disable(ids ...PhaseID) *GraphBuilder {
	for _, id := range ids {
		b.disabled[id] = true
	}
	return b
}

// Build validates the declaration and produces a Graph.
func (b *GraphBuilder) Build() (*Graph, error) {
	graph, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("graph %s validation failed: %w", b.name, err)
	}

	b.logger.Info("graph built",
		zap.String("name", b.name),
		zap.Int("nodes", graph.Len()),
		zap.String("entry", string(graph.entry)),
		zap.Any("disabled", graph.disabled),
	)
	return graph, nil
}

func (b *GraphBuilder) build() (*Graph, error) {
	if len(b.decls) == 0 {
		return nil, configError("graph has no nodes", ErrEmptyGraph)
	}
	if b.registry == nil {
		return nil, configError("graph has no phase registry", ErrUnknownPhase)
	}

	declared, err := b.validateDeclarations()
	if err != nil {
		return nil, err
	}

	enabled, groups := b.resolveEnabled()

	g := &Graph{
		name:  b.name,
		nodes: make(map[PhaseID]*Node),
		types: b.registry.SlotTypes(),
	}
	for id := range b.disabled {
		g.disabled = append(g.disabled, id)
	}
	sort.Slice(g.disabled, func(i, j int) bool { return g.disabled[i] < g.disabled[j] })

	for _, d := range b.decls {
		if !enabled[d.id] {
			continue
		}
		var resolveErr error
		rule := d.rule.relink(func(target PhaseID) PhaseID {
			next, err := b.nextEnabled(target, declared, enabled, map[PhaseID]bool{})
			if err != nil && resolveErr == nil {
				resolveErr = err
			}
			return next
		})
		if resolveErr != nil {
			return nil, resolveErr
		}

		node := &Node{ID: d.id, Rule: rule}
		if d.branches != nil {
			node.Kind = NodeGroup
			node.Group = groups[d.id]
		} else {
			node.Kind = NodePhase
			node.Phase, _ = b.registry.Get(d.id)
		}
		g.nodes[d.id] = node
		g.order = append(g.order, d.id)
	}

	// The first declared node is the entry; if it is disabled the run starts
	// wherever its rule leads.
	entry, err := b.nextEnabled(b.decls[0].id, declared, enabled, map[PhaseID]bool{})
	if err != nil {
		return nil, err
	}
	if entry == End || len(g.order) == 0 {
		return nil, configError("no enabled phase is reachable from the entry", ErrEmptyGraph)
	}
	g.entry = entry
	if err := detectCycles(g); err != nil {
		return nil, err
	}
	b.pruneUnreachable(g)
	if err := validateSlots(g); err != nil {
		return nil, err
	}
	return g, nil
}

// validateDeclarations checks ids, registry membership and rule targets.
func (b *GraphBuilder) validateDeclarations() (map[PhaseID]nodeDecl, error) {
	declared := make(map[PhaseID]nodeDecl, len(b.decls))
	inGraph := make(map[PhaseID]bool)

	claim := func(id PhaseID) error {
		if id.IsTerminal() {
			return configError(fmt.Sprintf("node id %q is reserved", id), ErrReservedPhase)
		}
		if inGraph[id] {
			return configError(fmt.Sprintf("phase %s declared more than once", id), ErrDuplicatePhase)
		}
		inGraph[id] = true
		return nil
	}

	for _, d := range b.decls {
		if err := claim(d.id); err != nil {
			return nil, err
		}
		declared[d.id] = d

		if d.branches == nil {
			if _, ok := b.registry.Get(d.id); !ok {
				return nil, configError(fmt.Sprintf("phase %s is not registered", d.id), ErrUnknownPhase)
			}
		} else {
			if _, ok := b.registry.Get(d.id); ok {
				return nil, configError(fmt.Sprintf("group id %s collides with a registered phase", d.id), ErrDuplicatePhase)
			}
			if len(d.branches) != 2 {
				return nil, configError(fmt.Sprintf("group %s must have exactly two branches, got %d", d.id, len(d.branches)), ErrInvalidRule)
			}
			for _, br := range d.branches {
				if len(br) == 0 {
					return nil, configError(fmt.Sprintf("group %s has an empty branch", d.id), ErrInvalidRule)
				}
				for _, pid := range br {
					if err := claim(pid); err != nil {
						return nil, err
					}
					if _, ok := b.registry.Get(pid); !ok {
						return nil, configError(fmt.Sprintf("phase %s in group %s is not registered", pid, d.id), ErrUnknownPhase)
					}
				}
			}
		}

		if err := d.rule.validate(); err != nil {
			return nil, configError(fmt.Sprintf("node %s has an invalid rule", d.id), err)
		}
	}

	// Rule targets must name top-level nodes; branch phases are not
	// addressable from outside their group.
	for _, d := range b.decls {
		for _, t := range d.rule.Targets() {
			if t == End {
				continue
			}
			if _, ok := declared[t]; !ok {
				return nil, configError(fmt.Sprintf("node %s routes to undeclared node %s", d.id, t), ErrUnknownPhase)
			}
		}
	}

	for id := range b.disabled {
		if !inGraph[id] {
			return nil, configError(fmt.Sprintf("cannot disable undeclared phase %s", id), ErrUnknownPhase)
		}
	}
	return declared, nil
}

// resolveEnabled decides which top-level nodes survive and filters disabled
// phases out of group branches.
func (b *GraphBuilder) resolveEnabled() (map[PhaseID]bool, map[PhaseID]*Group) {
	enabled := make(map[PhaseID]bool, len(b.decls))
	groups := make(map[PhaseID]*Group)

	for _, d := range b.decls {
		if b.disabled[d.id] {
			continue
		}
		if d.branches == nil {
			enabled[d.id] = true
			continue
		}

		group := &Group{ID: d.id}
		for i, br := range d.branches {
			branch := Branch{Name: fmt.Sprintf("%s[%d]", d.id, i)}
			for _, pid := range br {
				if b.disabled[pid] {
					continue
				}
				p, _ := b.registry.Get(pid)
				branch.Phases = append(branch.Phases, p)
			}
			if len(branch.Phases) > 0 {
				group.Branches = append(group.Branches, branch)
			}
		}
		if len(group.Branches) > 0 {
			enabled[d.id] = true
			groups[d.id] = group
		}
	}
	return enabled, groups
}

// nextEnabled follows disabled nodes until it reaches an enabled one or End.
// A disabled thresholded node passes through its onMeet target.
func (b *GraphBuilder) nextEnabled(target PhaseID, declared map[PhaseID]nodeDecl, enabled map[PhaseID]bool, seen map[PhaseID]bool) (PhaseID, error) {
	if target == End || enabled[target] {
		return target, nil
	}
	if seen[target] {
		return "", configError(fmt.Sprintf("disabled phases form a loop through %s", target), ErrCycle)
	}
	seen[target] = true

	d := declared[target]
	switch d.rule.Kind {
	case RuleUnconditional:
		return b.nextEnabled(d.rule.Next, declared, enabled, seen)
	case RuleThresholded:
		return b.nextEnabled(d.rule.OnMeet, declared, enabled, seen)
	default:
		return End, nil
	}
}

// validateSlots enforces one writer per slot and independence of the two
// branches of every group.
func validateSlots(g *Graph) error {
	writer := make(map[Slot]PhaseID)
	claim := func(p Phase) error {
		for _, s := range p.Writes() {
			if prev, ok := writer[s]; ok {
				return configError(fmt.Sprintf("slot %s is written by both %s and %s", s, prev, p.ID()), ErrSlotConflict)
			}
			writer[s] = p.ID()
		}
		return nil
	}

	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind == NodePhase {
			if err := claim(n.Phase); err != nil {
				return err
			}
			continue
		}

		for i, a := range n.Group.Branches {
			for j, other := range n.Group.Branches {
				if i == j {
					continue
				}
				if overlap := intersect(a.Writes(), other.Writes()); len(overlap) > 0 && i < j {
					return configError(fmt.Sprintf("group %s branches both write %s", n.ID, joinSlots(overlap)), ErrSlotConflict)
				}
				if overlap := intersect(a.Reads(), other.Writes()); len(overlap) > 0 {
					return configError(fmt.Sprintf("group %s branch %s reads %s written by %s", n.ID, a.Name, joinSlots(overlap), other.Name), ErrSlotConflict)
				}
			}
			for _, p := range a.Phases {
				if err := claim(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// detectCycles detects cycles in the graph using DFS
func detectCycles(g *Graph) error {
	visited := make(map[PhaseID]bool)
	recStack := make(map[PhaseID]bool)

	var visit func(id PhaseID) bool
	visit = func(id PhaseID) bool {
		visited[id] = true
		recStack[id] = true
		for _, next := range g.Edges(id) {
			if !visited[next] {
				if visit(next) {
					return true
				}
			} else if recStack[next] {
				return true
			}
		}
		recStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && visit(id) {
			return configError(fmt.Sprintf("cycle detected in graph involving node: %s", id), ErrCycle)
		}
	}
	return nil
}

// pruneUnreachable drops nodes that relinking made unreachable from the
// entry, e.g. the miss branch of a disabled threshold gate.
func (b *GraphBuilder) pruneUnreachable(g *Graph) {
	reachable := make(map[PhaseID]bool)
	var mark func(id PhaseID)
	mark = func(id PhaseID) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, next := range g.Edges(id) {
			mark(next)
		}
	}
	mark(g.entry)

	kept := g.order[:0]
	for _, id := range g.order {
		if reachable[id] {
			kept = append(kept, id)
			continue
		}
		delete(g.nodes, id)
		b.logger.Warn("dropping unreachable node", zap.String("node_id", string(id)))
	}
	g.order = kept
}

func intersect(a, b []Slot) []Slot {
	set := make(map[Slot]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []Slot
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func joinSlots(slots []Slot) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
