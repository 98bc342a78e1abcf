// scope.go — lexical scopes binding names to IR nodes.
//
// A Scope is a stack of frames; each frame is an ordered name -> node map.
// Reserved names live in the outermost frames: $ctrl (current control),
// "arg" (the program argument projection), and one $alias{k} pseudo-variable
// per struct field. The $-prefixed names cannot be written in source, so
// user names never collide with them.
//
// The scope is a plain data structure, not an IR node; it pins every bound
// node with keep and releases the pin when the binding is overwritten,
// popped, or the scope dies. That keeps scope-held values safe from the
// peephole's dead-code collection without coupling symbol tables to graph
// allocation.
//
// Loop scopes: dup(makePhis=true) clones the scope for a loop body, marking
// every binding except $ctrl as a lazy slot pointing back at the loop-head
// scope. The first read or write through a lazy slot materializes a phi at
// the loop head — first operand the head value, second operand deferred —
// and rebinds both head and body. endLoop wires the back edges, fills the
// deferred operands, folds redundant phis, and re-points still-lazy exit
// bindings at the head's final values.
package simple

const ctrlName = "$ctrl"

// slot is one binding: either a resolved node or a lazy marker naming the
// loop-head scope a phi should be pulled from on first access.
type slot struct {
	n    Node
	lazy *Scope
}

type frame struct {
	names []string
	vars  map[string]slot
}

func newFrame() *frame { return &frame{vars: map[string]slot{}} }

// Scope is the symbol table threaded through the parse.
type Scope struct {
	sea    *Sea
	frames []*frame
}

func newScope(sea *Sea) *Scope { return &Scope{sea: sea} }

/* ---------- frame stack ---------- */

func (s *Scope) push() { s.frames = append(s.frames, newFrame()) }

func (s *Scope) pop() {
	f := s.frames[len(s.frames)-1]
	for _, sl := range f.vars {
		release(sl.n)
	}
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *Scope) depth() int { return len(s.frames) }

// numNames counts all bindings across frames; used for the if-arm
// divergence check.
func (s *Scope) numNames() int {
	n := 0
	for _, f := range s.frames {
		n += len(f.names)
	}
	return n
}

func release(n Node) {
	if n != nil {
		n.base().unkeep()
		n.base().maybeKill()
	}
}

/* ---------- define / lookup / update ---------- */

// define binds a new name in the top frame; false if the name exists there.
func (s *Scope) define(name string, n Node) bool {
	f := s.frames[len(s.frames)-1]
	if _, dup := f.vars[name]; dup {
		return false
	}
	f.names = append(f.names, name)
	n.base().keep()
	f.vars[name] = slot{n: n}
	return true
}

// findSlot locates the innermost frame binding name.
func (s *Scope) findSlot(name string) (int, bool) {
	for fi := len(s.frames) - 1; fi >= 0; fi-- {
		if _, ok := s.frames[fi].vars[name]; ok {
			return fi, true
		}
	}
	return 0, false
}

// lookup resolves name walking frames inner to outer; nil when unknown.
// Inside a loop scope this may materialize a phi on demand.
func (s *Scope) lookup(name string) Node {
	fi, ok := s.findSlot(name)
	if !ok {
		return nil
	}
	return s.resolveAt(fi, name)
}

// update rebinds an existing name in its defining frame; false when the
// name is unknown. A lazy loop binding is resolved first so the loop phi
// exists before the write shadows it — the phi carries the value around the
// back edge and out of the loop exit.
func (s *Scope) update(name string, n Node) bool {
	fi, ok := s.findSlot(name)
	if !ok {
		return false
	}
	if s.frames[fi].vars[name].lazy != nil {
		s.resolveAt(fi, name)
	}
	s.rebindAt(fi, name, n)
	return true
}

// rebindAt swaps the binding at a known frame, moving the pin.
func (s *Scope) rebindAt(fi int, name string, n Node) {
	f := s.frames[fi]
	old := f.vars[name]
	n.base().keep()
	f.vars[name] = slot{n: n}
	release(old.n)
}

// resolveAt returns the node bound at (fi, name), materializing a loop phi
// when the slot is lazy. The phi is created at the loop head with its back
// edge deferred, and bound in both the head and this scope; sibling clones
// of the same loop find and reuse it through the head.
func (s *Scope) resolveAt(fi int, name string) Node {
	f := s.frames[fi]
	sl := f.vars[name]
	if sl.lazy == nil {
		return sl.n
	}
	head := sl.lazy
	var v Node
	if phi, ok := head.frames[fi].vars[name].n.(*PhiNode); ok &&
		phi.pending && phi.Region() == head.ctrl() {
		v = phi
	} else {
		region := head.ctrl().(*LoopNode)
		init := head.resolveAt(fi, name) // may recurse into an outer loop
		phi := peep(newLoopPhiNode(s.sea, name, region, init))
		head.rebindAt(fi, name, phi)
		v = phi
	}
	v.base().keep()
	f.vars[name] = slot{n: v}
	return v
}

/* ---------- control ---------- */

// ctrl returns the current control node. $ctrl is never lazy: control is
// merged explicitly through regions, never through on-demand phis.
func (s *Scope) ctrl() Node {
	fi, ok := s.findSlot(ctrlName)
	if !ok {
		return nil
	}
	return s.frames[fi].vars[ctrlName].n
}

func (s *Scope) setCtrl(n Node) { s.update(ctrlName, n) }

/* ---------- clone / merge ---------- */

// dup deep-clones the scope. With makePhis the clone is the loop-body
// variant: every binding except $ctrl becomes a lazy slot pointing at this
// scope as the loop head.
func (s *Scope) dup(makePhis bool) *Scope {
	d := &Scope{sea: s.sea}
	for _, f := range s.frames {
		nf := &frame{names: append([]string(nil), f.names...), vars: map[string]slot{}}
		for name, sl := range f.vars {
			if makePhis && name != ctrlName {
				nf.vars[name] = slot{lazy: s}
				continue
			}
			if sl.n != nil {
				sl.n.base().keep()
			}
			nf.vars[name] = sl
		}
		d.frames = append(d.frames, nf)
	}
	return d
}

// mergeScopes joins this scope with that at a control-flow merge. Both sides
// must bind the same names at every frame. A fresh region takes the two
// control edges; names bound to different nodes get a two-way phi and are
// rebound in place. that is dead afterwards. Returns the merged control —
// the region, or its collapsed replacement when one side was dead.
func (s *Scope) mergeScopes(that *Scope) Node {
	r := newRegionNode(s.sea, s.ctrl(), that.ctrl())
	r.keep()
	for fi := range s.frames {
		// Merge by position: both sides carry the same number of names per
		// frame (the parser checks counts before merging), and slot i on one
		// side corresponds to slot i on the other.
		thatNames := that.frames[fi].names
		for ni, name := range s.frames[fi].names {
			if name == ctrlName {
				continue
			}
			thatName := thatNames[ni]
			sa := s.frames[fi].vars[name]
			sb := that.frames[fi].vars[thatName]
			if sa == sb {
				continue // same node, or same still-lazy loop slot
			}
			av := s.resolveAt(fi, name)
			bv := that.resolveAt(fi, thatName)
			if av != bv {
				phi := peep(newPhiNode(s.sea, name, r, av, bv))
				s.rebindAt(fi, name, phi)
			}
		}
	}
	that.kill()
	r.unkeep()
	return peep(r)
}

// kill releases every pin and abandons the scope.
func (s *Scope) kill() {
	for _, f := range s.frames {
		for _, sl := range f.vars {
			release(sl.n)
		}
	}
	s.frames = nil
}

// replaceNode rebinds every occurrence of old to repl; used when a folded
// phi is subsumed after endLoop.
func (s *Scope) replaceNode(old, repl Node) {
	for fi, f := range s.frames {
		for _, name := range f.names {
			if f.vars[name].n == old {
				s.rebindAt(fi, name, repl)
			}
		}
	}
}

/* ---------- loops ---------- */

// endLoop finishes a while: the receiver is the loop-head scope, back is the
// scope at the bottom of the body, exit is the loop-exit scope. The loop
// region gets its back edge, every materialized phi gets its deferred
// second operand, still-lazy exit bindings adopt the head's final values,
// and redundant phis are folded away through the worklist.
func (head *Scope) endLoop(back, exit *Scope) {
	loop := head.ctrl().(*LoopNode)
	loop.finishBack(back.ctrl())
	for fi, f := range head.frames {
		for _, name := range f.names {
			if name == ctrlName {
				continue
			}
			if back.frames[fi].vars[name].lazy != head {
				// The body read or wrote the name, so the head binding is
				// the pending phi; close its back edge.
				if phi, ok := f.vars[name].n.(*PhiNode); ok && phi.pending {
					phi.finishPhi(back.resolveAt(fi, name))
					head.sea.work.add(phi)
				}
			}
			if exit.frames[fi].vars[name].lazy == head {
				exit.adoptSlot(fi, name, f.vars[name])
			}
		}
	}
	head.foldPhis(exit)
}

// adoptSlot copies a binding from the dying head into the exit scope.
func (s *Scope) adoptSlot(fi int, name string, sl slot) {
	if sl.n != nil {
		sl.n.base().keep()
	}
	s.frames[fi].vars[name] = sl
}

// foldPhis drains the worklist after endLoop, replacing degenerate phis
// (both operands equal, or self-referential back edge) with their sole
// input, and constant-typed phis with constants. Folding one phi can expose
// another, so users of a folded phi are re-queued until the graph is quiet.
func (head *Scope) foldPhis(exit *Scope) {
	w := head.sea.work
	for {
		n := w.pop()
		if n == nil {
			return
		}
		phi, ok := n.(*PhiNode)
		if !ok || phi.pending {
			continue
		}
		var repl Node
		if s := phi.sameInput(); s != nil {
			repl = s
		} else {
			t := phi.compute()
			phi.typ = t
			if t.isConstant() {
				repl = peep(newConstantNode(head.sea, t))
			}
		}
		if repl == nil || repl == Node(phi) {
			continue
		}
		for i := 0; i < phi.NOuts(); i++ {
			w.add(phi.Out(i))
		}
		exit.replaceNode(phi, repl)
		head.replaceNode(phi, repl)
		subsume(phi, repl)
	}
}
