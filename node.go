// node.go — the Sea-of-Nodes node layer.
//
// Control, data, and memory are all nodes connected by use-def edges; there
// is no instruction order. A node's inputs (defs) are an ordered slice — for
// most kinds slot 0 is reserved for control and may be nil. Outputs (uses)
// are unordered bookkeeping so dead nodes can be collected eagerly.
//
// The parser pins nodes it needs to survive peephole-triggered collection
// with keep/unkeep; the Scope pins every binding the same way. A node with
// no uses and no pins is dead and is recursively killed.
//
// peep is the construction-time peephole driver: it computes the node's
// type, replaces constant-typed nodes with ConstantNodes, and applies the
// node's local idealize rewrite, collecting anything orphaned on the way.
package simple

// Node is one vertex in the sea of nodes.
type Node interface {
	ID() int
	In(i int) Node
	NIns() int
	Out(i int) Node
	NOuts() int
	Type() Type
	IsCFG() bool

	// label renders the node kind for graphs and debugging.
	label() string
	// compute evaluates the node's type from its input types.
	compute() Type
	// idealize returns a better replacement node, or nil for no change.
	idealize() Node

	base() *nodeBase
}

type nodeBase struct {
	id   int
	sea  *Sea
	self Node
	ins  []Node
	outs []Node
	typ  Type
	pins int
	dead bool
}

func (b *nodeBase) ID() int    { return b.id }
func (b *nodeBase) NIns() int  { return len(b.ins) }
func (b *nodeBase) NOuts() int { return len(b.outs) }
func (b *nodeBase) In(i int) Node {
	return b.ins[i]
}
func (b *nodeBase) Out(i int) Node  { return b.outs[i] }
func (b *nodeBase) Type() Type      { return b.typ }
func (b *nodeBase) base() *nodeBase { return b }

// Defaults; concrete kinds override as needed.
func (b *nodeBase) IsCFG() bool    { return false }
func (b *nodeBase) idealize() Node { return nil }
func (b *nodeBase) compute() Type  { return TypeBot }

// keep pins the node against dead-code collection; unkeep releases one pin.
func (b *nodeBase) keep()   { b.pins++ }
func (b *nodeBase) unkeep() { b.pins-- }

func (b *nodeBase) unused() bool { return len(b.outs) == 0 && b.pins <= 0 }
func (b *nodeBase) isDead() bool { return b.dead }

// init wires a freshly allocated node into the graph: assigns its id and
// adds it as a use of each non-nil input.
func (s *Sea) init(self Node, ins ...Node) {
	b := self.base()
	s.nodeID++
	b.id = s.nodeID
	b.sea = s
	b.self = self
	b.ins = ins
	for _, d := range ins {
		if d != nil {
			d.base().outs = append(d.base().outs, self)
		}
	}
}

// delOut removes one use entry of u from b's output list.
func (b *nodeBase) delOut(u Node) {
	for i, o := range b.outs {
		if o == u {
			b.outs[i] = b.outs[len(b.outs)-1]
			b.outs = b.outs[:len(b.outs)-1]
			return
		}
	}
}

// setDef rebinds input i, maintaining use lists and collecting the old def
// if it became unused.
func (b *nodeBase) setDef(i int, n Node) {
	old := b.ins[i]
	if old == n {
		return
	}
	b.ins[i] = n
	if n != nil {
		n.base().outs = append(n.base().outs, b.self)
	}
	if old != nil {
		ob := old.base()
		ob.delOut(b.self)
		if ob.unused() {
			ob.kill()
		}
	}
}

// addDef appends a new input slot bound to n.
func (b *nodeBase) addDef(n Node) {
	b.ins = append(b.ins, n)
	if n != nil {
		n.base().outs = append(n.base().outs, b.self)
	}
}

// kill removes a node with no remaining uses, recursively collecting inputs
// that become unused.
func (b *nodeBase) kill() {
	if b.dead {
		return
	}
	b.dead = true
	for i := range b.ins {
		b.setDef(i, nil)
	}
	b.ins = nil
	b.typ = nil
}

// maybeKill collects the node if nothing holds it.
func (b *nodeBase) maybeKill() {
	if !b.dead && b.unused() {
		b.kill()
	}
}

// subsume redirects every use of old to repl, then collects old. Callers
// must first release any scope pins on old and rebind them to repl.
func subsume(old, repl Node) {
	ob := old.base()
	for len(ob.outs) > 0 {
		u := ob.outs[len(ob.outs)-1]
		ub := u.base()
		for i, d := range ub.ins {
			if d == old {
				ub.ins[i] = repl
				repl.base().outs = append(repl.base().outs, u)
				ob.delOut(u)
			}
		}
	}
	ob.maybeKill()
}

// peep runs the construction-time peephole on a node and returns its
// canonical replacement (possibly the node itself).
func peep(n Node) Node {
	b := n.base()
	t := n.compute()
	b.typ = t
	if b.sea.noPeeps {
		return n
	}
	if _, isCon := n.(*ConstantNode); !isCon && t.isConstant() {
		c := peep(newConstantNode(b.sea, t))
		return deadCodeElim(n, c)
	}
	if m := n.idealize(); m != nil {
		return deadCodeElim(n, peep(m))
	}
	return n
}

// deadCodeElim collects n after it was replaced by m, protecting m while the
// kill cascade runs (m may be one of n's own inputs).
func deadCodeElim(n, m Node) Node {
	if m != n && n.base().unused() {
		m.base().keep()
		n.base().kill()
		m.base().unkeep()
	}
	return m
}

/* ---------- worklist ---------- */

// worklist is the iterative peephole queue. Nodes whose inputs changed after
// construction (loop phi finalization, subsume chains) are pushed here and
// revisited until the graph stops changing.
type worklist struct {
	ns []Node
	on map[int]bool
}

func newWorklist() *worklist {
	return &worklist{on: map[int]bool{}}
}

func (w *worklist) add(n Node) {
	if n == nil || n.base().isDead() || w.on[n.ID()] {
		return
	}
	w.on[n.ID()] = true
	w.ns = append(w.ns, n)
}

func (w *worklist) pop() Node {
	for len(w.ns) > 0 {
		n := w.ns[len(w.ns)-1]
		w.ns = w.ns[:len(w.ns)-1]
		delete(w.on, n.ID())
		if !n.base().isDead() {
			return n
		}
	}
	return nil
}

func (w *worklist) empty() bool { return len(w.ns) == 0 }
