// types.go — the small type lattice the front end observes.
//
// The parser looks at node types for three things only: telling a
// pointer-to-struct apart from an integer, testing for null, and recovering
// the struct type behind a pointer. The lattice is correspondingly small:
//
//	TypeBot                      universal bottom (all values)
//	TypeCtrl / TypeXCtrl         live / dead control
//	TypeInteger {TOP, BOT, con}  64-bit integers
//	TypeMemPtr  {obj, nil-bit}   pointer to a struct, possibly null
//	TypeMem     {alias}          one memory color (one struct field)
//	TypeTuple                    multi-output results (Start, If)
//	TypeStruct                   named field list; owns per-field alias ids
//
// Types are immutable once built. Struct types are interned per compilation
// in the Sea's registry; the control types are singletons compared by
// identity, and integer and pointer types are compared through their fields.
package simple

import (
	"fmt"
	"strings"
)

// Type is the observable type of an IR node.
type Type interface {
	// Str renders the type for graphs and error messages.
	Str() string
	// isConstant reports whether a node of this type may be replaced by a
	// ConstantNode during peephole.
	isConstant() bool
	// meet computes the lattice meet with another type; used by phi nodes.
	meet(Type) Type
}

/* ---------- bottom ---------- */

type botType struct{}

// TypeBot is the universal bottom: all values, nothing known.
var TypeBot Type = &botType{}

func (*botType) Str() string      { return "Bot" }
func (*botType) isConstant() bool { return false }
func (*botType) meet(Type) Type   { return TypeBot }

/* ---------- control ---------- */

type ctrlType struct{ dead bool }

// TypeCtrl is live control; TypeXCtrl is dead control. A node typed TypeXCtrl
// is constant-foldable: peephole collapses it to a dead-control constant.
var (
	TypeCtrl  Type = &ctrlType{}
	TypeXCtrl Type = &ctrlType{dead: true}
)

func (t *ctrlType) Str() string {
	if t.dead {
		return "XCtrl"
	}
	return "Ctrl"
}
func (t *ctrlType) isConstant() bool { return t.dead }
func (t *ctrlType) meet(that Type) Type {
	o, ok := that.(*ctrlType)
	if !ok {
		return TypeBot
	}
	if t.dead && o.dead {
		return TypeXCtrl
	}
	return TypeCtrl
}

/* ---------- integers ---------- */

// TypeInteger is the integer slice of the lattice: TOP (no value yet), a
// single constant, or BOT (any integer).
type TypeInteger struct {
	con   bool
	top   bool
	value int64
}

var (
	// IntTop is the integer top: as-yet-unconstrained.
	IntTop = &TypeInteger{top: true}
	// IntBot is any integer.
	IntBot = &TypeInteger{}
)

// IntConst returns the type of the single integer value v.
func IntConst(v int64) *TypeInteger { return &TypeInteger{con: true, value: v} }

// Value returns the constant value; only meaningful when IsConstant.
func (t *TypeInteger) Value() int64     { return t.value }
func (t *TypeInteger) IsConstant() bool { return t.con }

func (t *TypeInteger) Str() string {
	switch {
	case t.top:
		return "IntTop"
	case t.con:
		return fmt.Sprintf("%d", t.value)
	default:
		return "Int"
	}
}
func (t *TypeInteger) isConstant() bool { return t.con }
func (t *TypeInteger) meet(that Type) Type {
	o, ok := that.(*TypeInteger)
	if !ok {
		return TypeBot
	}
	switch {
	case t.top:
		return o
	case o.top:
		return t
	case t.con && o.con && t.value == o.value:
		return t
	default:
		return IntBot
	}
}

/* ---------- struct pointers ---------- */

// TypeMemPtr is a pointer to a struct. obj is nil for the bare null pointer
// (no struct known); nilOK marks pointers that may be null. The declared
// type of an uninitialized struct variable is {obj: T, nilOK: true} with a
// null constant value, so field loads through it still resolve.
type TypeMemPtr struct {
	obj   *TypeStruct
	nilOK bool
}

// TypeNullPtr is the type of the "null" literal: no struct, definitely null.
var TypeNullPtr = &TypeMemPtr{nilOK: true}

// PtrTo returns the non-null pointer type to s.
func PtrTo(s *TypeStruct) *TypeMemPtr { return &TypeMemPtr{obj: s} }

// NullPtrTo returns the possibly-null pointer type to s.
func NullPtrTo(s *TypeStruct) *TypeMemPtr { return &TypeMemPtr{obj: s, nilOK: true} }

// Obj returns the pointed-to struct type, or nil for the bare null pointer.
func (t *TypeMemPtr) Obj() *TypeStruct { return t.obj }

// IsNull reports a pointer with no struct behind it at all.
func (t *TypeMemPtr) IsNull() bool { return t.obj == nil }

func (t *TypeMemPtr) Str() string {
	if t.obj == nil {
		return "null"
	}
	if t.nilOK {
		return "*" + t.obj.Name + "?"
	}
	return "*" + t.obj.Name
}
func (*TypeMemPtr) isConstant() bool { return false }
func (t *TypeMemPtr) meet(that Type) Type {
	o, ok := that.(*TypeMemPtr)
	if !ok {
		return TypeBot
	}
	nilOK := t.nilOK || o.nilOK
	switch {
	case t.obj == o.obj:
		if nilOK == t.nilOK {
			return t
		}
		return &TypeMemPtr{obj: t.obj, nilOK: nilOK}
	case t.obj == nil:
		return &TypeMemPtr{obj: o.obj, nilOK: true}
	case o.obj == nil:
		return &TypeMemPtr{obj: t.obj, nilOK: true}
	default:
		return TypeBot
	}
}

/* ---------- memory ---------- */

// TypeMem is one memory color: the slice of the heap holding every instance
// of a single struct field, identified by its alias id.
type TypeMem struct {
	Alias int
}

func (t *TypeMem) Str() string      { return fmt.Sprintf("Mem#%d", t.Alias) }
func (*TypeMem) isConstant() bool   { return false }
func (t *TypeMem) meet(that Type) Type {
	o, ok := that.(*TypeMem)
	if !ok || o.Alias != t.Alias {
		return TypeBot
	}
	return t
}

/* ---------- tuples ---------- */

// TypeTuple types multi-output nodes; projections select one element.
type TypeTuple struct {
	tys []Type
}

func Tuple(tys ...Type) *TypeTuple { return &TypeTuple{tys: tys} }

func (t *TypeTuple) At(i int) Type { return t.tys[i] }
func (t *TypeTuple) Len() int      { return len(t.tys) }

func (t *TypeTuple) Str() string {
	parts := make([]string, len(t.tys))
	for i, ty := range t.tys {
		parts[i] = ty.Str()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
func (*TypeTuple) isConstant() bool { return false }
func (*TypeTuple) meet(Type) Type   { return TypeBot }

/* ---------- structs & fields ---------- */

// Field is one declared struct field. Alias is the field's memory color,
// unique across the whole compilation.
type Field struct {
	Name  string
	Type  Type
	Alias int
}

// aliasName is the scope pseudo-variable carrying this field's memory chain.
// The '$' prefix cannot appear in source identifiers, so user names can
// never collide with it.
func (f *Field) aliasName() string { return fmt.Sprintf("$alias%d", f.Alias) }

// TypeStruct is a named struct with an ordered field list. Instances are
// interned in the Sea's registry; two structs are the same type iff they are
// the same pointer.
type TypeStruct struct {
	Name   string
	fields []*Field
}

func (t *TypeStruct) addField(name string, typ Type, alias int) {
	t.fields = append(t.fields, &Field{Name: name, Type: typ, Alias: alias})
}

func (t *TypeStruct) NumFields() int    { return len(t.fields) }
func (t *TypeStruct) Fields() []*Field  { return t.fields }
func (t *TypeStruct) GetField(name string) *Field {
	for _, f := range t.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *TypeStruct) Str() string { return t.Name }
func (*TypeStruct) isConstant() bool { return false }
func (t *TypeStruct) meet(that Type) Type {
	if t == that {
		return t
	}
	return TypeBot
}

/* ---------- helpers ---------- */

// isIntType reports a (possibly constant) integer type.
func isIntType(t Type) bool {
	_, ok := t.(*TypeInteger)
	return ok
}
