// node_ctrl.go — control-flow nodes: Start, Stop, Return, If, projections,
// regions, loops, and phis.
//
// Loop regions and loop phis are built with a deferred back edge: the second
// operand is filled in only after the loop body has been parsed. While the
// back edge is pending the node reports inProgress and suppresses its
// idealize rules, so a half-built loop can never be rewritten from under the
// parser.
package simple

import "fmt"

/* ---------- Start ---------- */

// StartNode is the program entry. Its type is a tuple of [control, arg0,
// mem#k...]; one memory slice is appended per struct field alias as struct
// declarations are parsed.
type StartNode struct {
	nodeBase
	tys []Type
}

func newStartNode(s *Sea, arg Type) *StartNode {
	n := &StartNode{tys: []Type{TypeCtrl, arg}}
	s.init(n)
	return n
}

func (n *StartNode) label() string { return "Start" }
func (n *StartNode) IsCFG() bool   { return true }
func (n *StartNode) compute() Type { return Tuple(n.tys...) }

// addMemProj grows the start tuple with one memory slice per field of ts and
// binds the projection in the scope under the field's alias pseudo-name. The
// field's alias id is its projection index.
func (n *StartNode) addMemProj(ts *TypeStruct, sc *Scope) {
	for _, f := range ts.Fields() {
		for len(n.tys) <= f.Alias {
			n.tys = append(n.tys, TypeBot)
		}
		n.tys[f.Alias] = &TypeMem{Alias: f.Alias}
		n.typ = n.compute()
		proj := peep(newProjNode(n.sea, n, f.Alias, f.aliasName()))
		sc.define(f.aliasName(), proj)
	}
}

/* ---------- Stop ---------- */

// StopNode collects every return in the program; the whole graph is
// reachable from it.
type StopNode struct {
	nodeBase
}

func newStopNode(s *Sea) *StopNode {
	n := &StopNode{}
	s.init(n)
	return n
}

func (n *StopNode) label() string { return "Stop" }
func (n *StopNode) IsCFG() bool   { return true }
func (n *StopNode) compute() Type { return TypeBot }

// addReturn attaches one more return node to the stop.
func (n *StopNode) addReturn(ret Node) Node {
	n.addDef(ret)
	return ret
}

// Returns lists the attached return nodes.
func (n *StopNode) Returns() []*ReturnNode {
	var rs []*ReturnNode
	for i := 0; i < n.NIns(); i++ {
		if r, ok := n.In(i).(*ReturnNode); ok {
			rs = append(rs, r)
		}
	}
	return rs
}

/* ---------- Return ---------- */

type ReturnNode struct {
	nodeBase
}

func newReturnNode(s *Sea, ctrl, data Node) *ReturnNode {
	n := &ReturnNode{}
	s.init(n, ctrl, data)
	return n
}

func (n *ReturnNode) Ctrl() Node    { return n.In(0) }
func (n *ReturnNode) Data() Node    { return n.In(1) }
func (n *ReturnNode) label() string { return "Return" }
func (n *ReturnNode) IsCFG() bool   { return true }
func (n *ReturnNode) compute() Type {
	return Tuple(n.Ctrl().Type(), n.Data().Type())
}

/* ---------- If ---------- */

// IfNode splits control on an integer predicate; its two projections are the
// True and False arms.
type IfNode struct {
	nodeBase
}

func newIfNode(s *Sea, ctrl, pred Node) *IfNode {
	n := &IfNode{}
	s.init(n, ctrl, pred)
	return n
}

func (n *IfNode) Ctrl() Node    { return n.In(0) }
func (n *IfNode) Pred() Node    { return n.In(1) }
func (n *IfNode) label() string { return "If" }
func (n *IfNode) IsCFG() bool   { return true }
func (n *IfNode) compute() Type {
	if n.Ctrl().Type() == TypeXCtrl {
		return Tuple(TypeXCtrl, TypeXCtrl)
	}
	if ti, ok := n.Pred().Type().(*TypeInteger); ok && ti.IsConstant() {
		if ti.Value() != 0 {
			return Tuple(TypeCtrl, TypeXCtrl)
		}
		return Tuple(TypeXCtrl, TypeCtrl)
	}
	return Tuple(TypeCtrl, TypeCtrl)
}

/* ---------- Proj ---------- */

// ProjNode selects one output of a multi-output node.
type ProjNode struct {
	nodeBase
	idx int
	lbl string
}

func newProjNode(s *Sea, parent Node, idx int, lbl string) *ProjNode {
	n := &ProjNode{idx: idx, lbl: lbl}
	s.init(n, parent)
	return n
}

func (n *ProjNode) Idx() int      { return n.idx }
func (n *ProjNode) label() string { return n.lbl }
func (n *ProjNode) IsCFG() bool {
	return n.typ == TypeCtrl || n.typ == TypeXCtrl
}
func (n *ProjNode) compute() Type {
	if tt, ok := n.In(0).Type().(*TypeTuple); ok && n.idx < tt.Len() {
		return tt.At(n.idx)
	}
	return TypeBot
}

/* ---------- Region ---------- */

// RegionNode merges control. Input slot 0 is unused (nil) so predecessor
// indices line up with phi value indices.
type RegionNode struct {
	nodeBase
}

func newRegionNode(s *Sea, preds ...Node) *RegionNode {
	n := &RegionNode{}
	ins := append([]Node{nil}, preds...)
	s.init(n, ins...)
	return n
}

func (n *RegionNode) label() string { return "Region" }
func (n *RegionNode) IsCFG() bool   { return true }

func (n *RegionNode) compute() Type { return regionCompute(n.self) }
func (n *RegionNode) idealize() Node {
	return regionIdealize(n.self)
}

// inProgress is overridden by LoopNode while its back edge is pending.
func (n *RegionNode) inProgress() bool { return false }

type regioned interface {
	Node
	inProgress() bool
}

func regionCompute(n Node) Type {
	if r, ok := n.(regioned); ok && r.inProgress() {
		return TypeCtrl
	}
	for i := 1; i < n.NIns(); i++ {
		if p := n.In(i); p != nil && p.Type() != TypeXCtrl {
			return TypeCtrl
		}
	}
	return TypeXCtrl
}

func regionIdealize(n Node) Node {
	if r, ok := n.(regioned); ok && r.inProgress() {
		return nil
	}
	if hasPhiUse(n) {
		return nil
	}
	var live Node
	for i := 1; i < n.NIns(); i++ {
		p := n.In(i)
		if p == nil || p.Type() == TypeXCtrl {
			continue
		}
		if live != nil {
			return nil // two live predecessors, a real merge
		}
		live = p
	}
	return live
}

func hasPhiUse(n Node) bool {
	for i := 0; i < n.NOuts(); i++ {
		if phi, ok := n.Out(i).(*PhiNode); ok && phi.Region() == n {
			return true
		}
	}
	return false
}

/* ---------- Loop ---------- */

// LoopNode is a region with exactly two predecessors: the entry edge and a
// back edge that stays pending until the body is parsed.
type LoopNode struct {
	RegionNode
	pending bool
}

func newLoopNode(s *Sea, entry Node) *LoopNode {
	n := &LoopNode{pending: true}
	s.init(n, nil, entry, nil)
	return n
}

func (n *LoopNode) label() string    { return "Loop" }
func (n *LoopNode) Entry() Node      { return n.In(1) }
func (n *LoopNode) Back() Node       { return n.In(2) }
func (n *LoopNode) inProgress() bool { return n.pending }

func (n *LoopNode) compute() Type {
	if n.pending {
		return n.Entry().Type()
	}
	return regionCompute(n.self)
}

func (n *LoopNode) idealize() Node {
	if n.pending {
		return nil
	}
	return regionIdealize(n.self)
}

// finishBack supplies the deferred back edge and re-enables peepholes.
func (n *LoopNode) finishBack(back Node) {
	if !n.pending {
		panic("loop back edge set twice")
	}
	n.setDef(2, back)
	n.pending = false
	n.typ = n.compute()
}

/* ---------- Phi ---------- */

// PhiNode merges one value per control predecessor of its region. Input 0 is
// the region; value i comes from the region's predecessor i. A loop phi is
// created pending, with its second value deferred until finishPhi.
type PhiNode struct {
	nodeBase
	name    string
	pending bool
}

// newPhiNode builds a complete two-way phi (if merges).
func newPhiNode(s *Sea, name string, region, a, b Node) *PhiNode {
	n := &PhiNode{name: name}
	s.init(n, region, a, b)
	return n
}

// newLoopPhiNode builds a pending phi whose back-edge value is deferred.
func newLoopPhiNode(s *Sea, name string, region, init Node) *PhiNode {
	n := &PhiNode{name: name, pending: true}
	s.init(n, region, init, nil)
	return n
}

func (n *PhiNode) Region() Node  { return n.In(0) }
func (n *PhiNode) Name() string  { return n.name }
func (n *PhiNode) label() string { return "Phi_" + n.name }

func (n *PhiNode) compute() Type {
	if n.pending {
		// The back edge is unknown, so type as the widened head value:
		// constants drop to their bottom (the back edge may change the
		// value), pointer and memory kinds stay so field accesses through
		// a loop-carried pointer still resolve.
		return widen(n.In(1).Type())
	}
	var acc Type
	for i := 1; i < n.NIns(); i++ {
		v := n.In(i)
		if v == nil || v == n.self {
			continue
		}
		if acc == nil {
			acc = v.Type()
		} else {
			acc = acc.meet(v.Type())
		}
	}
	if acc == nil {
		return TypeBot
	}
	return acc
}

func (n *PhiNode) idealize() Node {
	if n.pending {
		return nil
	}
	if r, ok := n.Region().(regioned); ok && r.inProgress() {
		return nil
	}
	if s := n.sameInput(); s != nil {
		return s
	}
	// A phi on a region with a dead arm takes the live arm's value.
	r := n.Region()
	liveIdx := 0
	for i := 1; i < r.NIns(); i++ {
		p := r.In(i)
		if p == nil || p.Type() == TypeXCtrl {
			continue
		}
		if liveIdx != 0 {
			return nil
		}
		liveIdx = i
	}
	if liveIdx != 0 && liveIdx < n.NIns() {
		return n.In(liveIdx)
	}
	return nil
}

// sameInput returns the sole distinct value flowing into the phi, ignoring
// self references; nil when the phi merges two genuinely different values.
func (n *PhiNode) sameInput() Node {
	var live Node
	for i := 1; i < n.NIns(); i++ {
		v := n.In(i)
		if v == nil || v == n.self {
			continue
		}
		if live == nil {
			live = v
		} else if live != v {
			return nil
		}
	}
	return live
}

// widen drops constancy from a type; used for pending loop phis.
func widen(t Type) Type {
	switch x := t.(type) {
	case *TypeInteger:
		return IntBot
	case *TypeMemPtr:
		return x
	case *TypeMem:
		return x
	}
	return TypeBot
}

// finishPhi supplies the deferred back-edge value.
func (n *PhiNode) finishPhi(v Node) {
	if !n.pending {
		panic(fmt.Sprintf("phi %s finished twice", n.name))
	}
	n.setDef(2, v)
	n.pending = false
	n.typ = n.compute()
}
