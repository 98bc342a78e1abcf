// node_arith.go — data nodes: constants, integer arithmetic, comparisons,
// unary minus and logical not.
//
// Data nodes reserve input slot 0 for control and leave it nil; operands sit
// in slots 1 and 2 so the parser can build a node with a placeholder operand,
// parse the right-hand side, late-bind it with setDef, and only then run the
// peephole. That way rewrites that inspect both operands fire exactly once.
package simple

/* ---------- Constant ---------- */

// ConstantNode pins a lattice constant into the graph. Its single input is
// the start node, which keeps all constants reachable.
type ConstantNode struct {
	nodeBase
	con Type
}

func newConstantNode(s *Sea, t Type) *ConstantNode {
	n := &ConstantNode{con: t}
	s.init(n, s.start)
	return n
}

func (n *ConstantNode) label() string { return "#" + n.con.Str() }
func (n *ConstantNode) compute() Type { return n.con }

// isNullConstant reports a constant holding a null pointer of any flavor.
func isNullConstant(n Node) bool {
	c, ok := n.(*ConstantNode)
	if !ok {
		return false
	}
	p, ok := c.con.(*TypeMemPtr)
	return ok && p.nilOK
}

/* ---------- binary arithmetic ---------- */

func intConstOf(n Node) (int64, bool) {
	if n == nil {
		return 0, false
	}
	if ti, ok := n.Type().(*TypeInteger); ok && ti.IsConstant() {
		return ti.Value(), true
	}
	return 0, false
}

// binCompute folds two integer operands with f, else falls to IntBot (or
// TypeBot when an operand is not an integer at all).
func binCompute(lhs, rhs Node, f func(a, b int64) int64) Type {
	if lhs == nil || rhs == nil {
		return TypeBot
	}
	a, aok := intConstOf(lhs)
	b, bok := intConstOf(rhs)
	if aok && bok {
		return IntConst(f(a, b))
	}
	if isIntType(lhs.Type()) && isIntType(rhs.Type()) {
		return IntBot
	}
	return TypeBot
}

type AddNode struct{ nodeBase }

func newAddNode(s *Sea, lhs, rhs Node) *AddNode {
	n := &AddNode{}
	s.init(n, nil, lhs, rhs)
	return n
}

func (n *AddNode) label() string { return "Add" }
func (n *AddNode) compute() Type {
	return binCompute(n.In(1), n.In(2), func(a, b int64) int64 { return a + b })
}
func (n *AddNode) idealize() Node {
	if v, ok := intConstOf(n.In(2)); ok && v == 0 {
		return n.In(1)
	}
	if v, ok := intConstOf(n.In(1)); ok && v == 0 {
		return n.In(2)
	}
	return nil
}

type SubNode struct{ nodeBase }

func newSubNode(s *Sea, lhs, rhs Node) *SubNode {
	n := &SubNode{}
	s.init(n, nil, lhs, rhs)
	return n
}

func (n *SubNode) label() string { return "Sub" }
func (n *SubNode) compute() Type {
	if n.In(1) != nil && n.In(1) == n.In(2) {
		return IntConst(0)
	}
	return binCompute(n.In(1), n.In(2), func(a, b int64) int64 { return a - b })
}
func (n *SubNode) idealize() Node {
	if v, ok := intConstOf(n.In(2)); ok && v == 0 {
		return n.In(1)
	}
	return nil
}

type MulNode struct{ nodeBase }

func newMulNode(s *Sea, lhs, rhs Node) *MulNode {
	n := &MulNode{}
	s.init(n, nil, lhs, rhs)
	return n
}

func (n *MulNode) label() string { return "Mul" }
func (n *MulNode) compute() Type {
	return binCompute(n.In(1), n.In(2), func(a, b int64) int64 { return a * b })
}
func (n *MulNode) idealize() Node {
	if v, ok := intConstOf(n.In(2)); ok && v == 1 {
		return n.In(1)
	}
	if v, ok := intConstOf(n.In(1)); ok && v == 1 {
		return n.In(2)
	}
	return nil
}

type DivNode struct{ nodeBase }

func newDivNode(s *Sea, lhs, rhs Node) *DivNode {
	n := &DivNode{}
	s.init(n, nil, lhs, rhs)
	return n
}

func (n *DivNode) label() string { return "Div" }
func (n *DivNode) compute() Type {
	if v, ok := intConstOf(n.In(2)); ok && v == 0 {
		return IntBot // division by zero does not fold
	}
	return binCompute(n.In(1), n.In(2), func(a, b int64) int64 { return a / b })
}
func (n *DivNode) idealize() Node {
	if v, ok := intConstOf(n.In(2)); ok && v == 1 {
		return n.In(1)
	}
	return nil
}

/* ---------- comparisons ---------- */

// BoolNode is a comparison producing 0 or 1. op is one of "==", "<", "<=";
// the parser expresses > and >= by swapping operands, and != as == followed
// by a NotNode.
type BoolNode struct {
	nodeBase
	op string
}

func newBoolNode(s *Sea, op string, lhs, rhs Node) *BoolNode {
	n := &BoolNode{op: op}
	s.init(n, nil, lhs, rhs)
	return n
}

func (n *BoolNode) Op() string    { return n.op }
func (n *BoolNode) label() string { return n.op }
func (n *BoolNode) compute() Type {
	lhs, rhs := n.In(1), n.In(2)
	if lhs == nil || rhs == nil {
		return TypeBot
	}
	// Null-pointer comparisons fold only for two known-null constants.
	if isNullConstant(lhs) && isNullConstant(rhs) && n.op == "==" {
		return IntConst(1)
	}
	return binCompute(lhs, rhs, func(a, b int64) int64 {
		var r bool
		switch n.op {
		case "==":
			r = a == b
		case "<":
			r = a < b
		default:
			r = a <= b
		}
		if r {
			return 1
		}
		return 0
	})
}
func (n *BoolNode) idealize() Node {
	if n.In(1) != nil && n.In(1) == n.In(2) {
		var v int64
		if n.op != "<" { // x==x and x<=x hold, x<x does not
			v = 1
		}
		return newConstantNode(n.sea, IntConst(v))
	}
	return nil
}

/* ---------- unary ---------- */

type MinusNode struct{ nodeBase }

func newMinusNode(s *Sea, in Node) *MinusNode {
	n := &MinusNode{}
	s.init(n, nil, in)
	return n
}

func (n *MinusNode) label() string { return "Minus" }
func (n *MinusNode) compute() Type {
	if v, ok := intConstOf(n.In(1)); ok {
		return IntConst(-v)
	}
	if isIntType(n.In(1).Type()) {
		return IntBot
	}
	return TypeBot
}
func (n *MinusNode) idealize() Node {
	if m, ok := n.In(1).(*MinusNode); ok {
		return m.In(1)
	}
	return nil
}

// NotNode is logical negation: 0 becomes 1, anything else 0.
type NotNode struct{ nodeBase }

func newNotNode(s *Sea, in Node) *NotNode {
	n := &NotNode{}
	s.init(n, nil, in)
	return n
}

func (n *NotNode) label() string { return "Not" }
func (n *NotNode) compute() Type {
	if v, ok := intConstOf(n.In(1)); ok {
		if v == 0 {
			return IntConst(1)
		}
		return IntConst(0)
	}
	if isIntType(n.In(1).Type()) {
		return IntBot
	}
	return TypeBot
}
