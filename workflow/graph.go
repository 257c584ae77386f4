package workflow

import "reflect"

// NodeKind distinguishes single phases from parallel groups.
type NodeKind string

const (
	NodePhase NodeKind = "phase"
	NodeGroup NodeKind = "group"
)

// Branch is one sequential pipeline inside a parallel group.
type Branch struct {
	Name   string
	Phases []Phase
}

// Reads returns the union of the branch's declared reads.
func (b Branch) Reads() []Slot { return collectSlots(b.Phases, Phase.Reads) }

// Writes returns the union of the branch's declared writes.
func (b Branch) Writes() []Slot { return collectSlots(b.Phases, Phase.Writes) }

// IDs returns the branch's phase ids in execution order.
func (b Branch) IDs() []PhaseID {
	ids := make([]PhaseID, len(b.Phases))
	for i, p := range b.Phases {
		ids[i] = p.ID()
	}
	return ids
}

// Group is a set of branches that run concurrently and join before the
// engine advances.
type Group struct {
	ID       PhaseID
	Branches []Branch
}

// Node is one state of the engine's state machine.
type Node struct {
	ID    PhaseID
	Kind  NodeKind
	Phase Phase
	Group *Group
	Rule  RoutingRule
}

// Writes returns the slots the node may set.
func (n *Node) Writes() []Slot {
	if n.Kind == NodeGroup {
		var out []Slot
		for _, b := range n.Group.Branches {
			out = append(out, b.Writes()...)
		}
		return out
	}
	return n.Phase.Writes()
}

// Graph is an immutable, validated phase graph produced by GraphBuilder.
type Graph struct {
	name     string
	nodes    map[PhaseID]*Node
	order    []PhaseID
	entry    PhaseID
	disabled []PhaseID
	types    map[Slot]reflect.Type
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Entry returns the first enabled node.
func (g *Graph) Entry() PhaseID { return g.entry }

// Node looks up a node by id.
func (g *Graph) Node(id PhaseID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// SlotTypes returns the slot type declarations taken from the registry.
func (g *Graph) SlotTypes() map[Slot]reflect.Type {
	out := make(map[Slot]reflect.Type, len(g.types))
	for k, v := range g.types {
		out[k] = v
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Order returns node ids in configuration order.
func (g *Graph) Order() []PhaseID {
	out := make([]PhaseID, len(g.order))
	copy(out, g.order)
	return out
}

// Disabled returns the ids removed from the graph by configuration.
func (g *Graph) Disabled() []PhaseID {
	out := make([]PhaseID, len(g.disabled))
	copy(out, g.disabled)
	return out
}

// Edges returns the successors of a node, excluding terminals.
func (g *Graph) Edges(id PhaseID) []PhaseID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var out []PhaseID
	for _, t := range n.Rule.Targets() {
		if !t.IsTerminal() {
			out = append(out, t)
		}
	}
	return out
}

func collectSlots(phases []Phase, fn func(Phase) []Slot) []Slot {
	seen := make(map[Slot]bool)
	var out []Slot
	for _, p := range phases {
		for _, s := range fn(p) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
