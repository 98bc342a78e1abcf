// node_mem.go — heap nodes: allocation, field loads, field stores.
//
// Memory is split into one slice per struct field (the field's alias). Loads
// and stores thread the slice for their field through input slot 1; the
// scope's $alias pseudo-variables supply it, so memory SSA falls out of the
// ordinary scope/phi machinery with no special cases.
package simple

/* ---------- New ---------- */

// NewNode allocates a zeroed struct instance and produces the pointer.
type NewNode struct {
	nodeBase
	ptr *TypeMemPtr
}

func newNewNode(s *Sea, ptr *TypeMemPtr, ctrl Node) *NewNode {
	n := &NewNode{ptr: ptr}
	s.init(n, ctrl)
	return n
}

func (n *NewNode) Ptr() *TypeMemPtr { return n.ptr }
func (n *NewNode) label() string    { return "new " + n.ptr.Obj().Name }
func (n *NewNode) compute() Type    { return n.ptr }

/* ---------- Load ---------- */

// LoadNode reads one field: inputs are (nil ctrl, memory slice, pointer).
type LoadNode struct {
	nodeBase
	field *Field
}

func newLoadNode(s *Sea, field *Field, mem, ptr Node) *LoadNode {
	n := &LoadNode{field: field}
	s.init(n, nil, mem, ptr)
	return n
}

func (n *LoadNode) Field() *Field { return n.field }
func (n *LoadNode) Mem() Node     { return n.In(1) }
func (n *LoadNode) PtrIn() Node   { return n.In(2) }
func (n *LoadNode) label() string { return "." + n.field.Name }
func (n *LoadNode) compute() Type { return n.field.Type }

// A load directly after a store to the same field of the same pointer is the
// stored value.
func (n *LoadNode) idealize() Node {
	if st, ok := n.Mem().(*StoreNode); ok &&
		st.field.Alias == n.field.Alias && st.PtrIn() == n.PtrIn() {
		return st.Value()
	}
	return nil
}

/* ---------- Store ---------- */

// StoreNode writes one field: inputs are (nil ctrl, memory slice, pointer,
// value); its result is the new memory slice for the field's alias.
type StoreNode struct {
	nodeBase
	field *Field
}

func newStoreNode(s *Sea, field *Field, mem, ptr, value Node) *StoreNode {
	n := &StoreNode{field: field}
	s.init(n, nil, mem, ptr, value)
	return n
}

func (n *StoreNode) Field() *Field { return n.field }
func (n *StoreNode) Mem() Node     { return n.In(1) }
func (n *StoreNode) PtrIn() Node   { return n.In(2) }
func (n *StoreNode) Value() Node   { return n.In(3) }
func (n *StoreNode) label() string { return "." + n.field.Name + "=" }
func (n *StoreNode) compute() Type { return &TypeMem{Alias: n.field.Alias} }
