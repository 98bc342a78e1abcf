// parser.go — single-pass recursive-descent front end for Simple.
//
// OVERVIEW
// --------
// The parser translates source text directly into the Sea-of-Nodes graph;
// there is no syntax tree. As it descends it threads two pieces of state
// through the Scope: the current control node (under the unspeakable name
// $ctrl) and one memory slice per struct field (under $alias{k}). Every
// construct emits its nodes leaves-first through peep, so rewrites fire the
// moment both operands exist.
//
// Control flow:
//   - if: build If + True/False projections, clone the scope, parse each arm
//     with its projection as control, then mergeScopes the two arms (regions
//     and phis come out of the merge).
//   - while: emit a Loop region with a deferred back edge, clone the scope
//     as the loop-body variant (lazy phis), parse predicate and body, merge
//     pending continues, then endLoop wires back edges and folds redundant
//     phis. The loop-exit clone (taken after the predicate) becomes the
//     scope after the loop.
//   - break/continue: jumpTo clones the current scope, kills local control,
//     prunes to the loop's depth and merges into the target scope.
//
// Grammar:
//
//	program   : block                  (virtual outer block, no braces)
//	block     : '{' statement* '}'
//	statement : 'return' expr ';'
//	          | 'int' decl
//	          | '{' statement* '}'
//	          | 'if' '(' expr ')' statement ('else' statement)?
//	          | 'while' '(' expr ')' statement
//	          | 'break' ';' | 'continue' ';'
//	          | 'struct' id '{' field+ '}'
//	          | '#showGraph' ';'
//	          | ';'
//	          | exprStmt
//	field     : 'int' id ';'
//	decl      : id ('=' expr)? ';'     (';' without '=' only for struct type)
//	exprStmt  : id ('.' id)? '=' expr ';'
//	expr      : cmp
//	cmp       : add (('=='|'!='|'<='|'<'|'>='|'>') add)*
//	add       : mul (('+'|'-') mul)*
//	mul       : unary (('*'|'/') unary)*
//	unary     : '-' unary | postfix
//	postfix   : primary ('.' id)*
//	primary   : number | '(' expr ')' | 'true' | 'false' | 'null'
//	          | 'new' id | id
//
// All failures are fatal: the first error aborts the parse and bubbles out
// of every entry point as a *ParseError.
package simple

import (
	"fmt"
	"io"
	"os"
)

// Parser holds the state of one parse. It owns its Sea; nothing is shared
// between parser instances.
type Parser struct {
	sea *Sea
	lex *lexer

	// scope is the current scope; xScopes stacks every live scope (clones
	// from if/while included) for graph visualization.
	scope   *Scope
	xScopes []*Scope

	breakScope    *Scope
	continueScope *Scope

	// interactive marks errors at EOF as Incomplete, for REPL continuation.
	interactive bool

	// GraphOut receives #showGraph output; defaults to stdout.
	GraphOut io.Writer
}

// NewParser builds a parser over src with an unconstrained program argument.
func NewParser(src string) *Parser { return NewParserTyped(src, IntBot) }

// NewParserTyped builds a parser whose "arg" is bound to the given integer
// type, so tests can feed a constant argument through the whole graph.
func NewParserTyped(src string, arg *TypeInteger) *Parser {
	sea := NewSea(arg)
	return &Parser{
		sea:      sea,
		lex:      newLexer(src),
		scope:    newScope(sea),
		GraphOut: os.Stdout,
	}
}

// Parse is the convenience one-shot entry point.
func Parse(src string) (*StopNode, error) {
	return NewParser(src).Parse()
}

// ParseInteractive parses in REPL mode: running out of input yields an
// error for which IsIncomplete holds, instead of a hard failure.
func ParseInteractive(src string) (*StopNode, error) {
	p := NewParser(src)
	p.interactive = true
	return p.Parse()
}

// Sea exposes the compilation context (graph roots, struct registry).
func (p *Parser) Sea() *Sea { return p.sea }

// Parse runs the parse to completion and returns the stop node, from which
// the whole graph is reachable.
func (p *Parser) Parse() (*StopNode, error) {
	p.xScopes = append(p.xScopes, p.scope)
	// The outermost frame carries control and the argument projection.
	p.scope.push()
	p.scope.define(ctrlName, peep(newProjNode(p.sea, p.sea.start, 0, ctrlName)))
	p.scope.define("arg", peep(newProjNode(p.sea, p.sea.start, 1, "arg")))
	if err := p.parseBlock(); err != nil {
		return nil, err
	}
	p.scope.pop()
	p.xScopes = p.xScopes[:len(p.xScopes)-1]
	if !p.lex.isEOF() {
		return nil, p.errf("Syntax error, unexpected %s", p.lex.anyNextToken())
	}
	peep(p.sea.stop)
	return p.sea.stop, nil
}

/* ---------- statements ---------- */

// parseBlock parses statements up to the closing '}' (not consumed here).
// Each block gets its own scope frame.
func (p *Parser) parseBlock() error {
	p.scope.push()
	for !p.lex.peek('}') && !p.lex.isEOF() {
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	p.scope.pop()
	return nil
}

func (p *Parser) parseStatement() error {
	switch {
	case p.matchx("return"):
		return p.parseReturn()
	case p.matchx("int"):
		return p.parseDecl(nil)
	case p.match("{"):
		if err := p.parseBlock(); err != nil {
			return err
		}
		return p.require("}")
	case p.matchx("if"):
		return p.parseIf()
	case p.matchx("while"):
		return p.parseWhile()
	case p.matchx("break"):
		return p.parseBreak()
	case p.matchx("continue"):
		return p.parseContinue()
	case p.matchx("struct"):
		return p.parseStruct()
	case p.matchx("#showGraph"):
		p.showGraph()
		return p.require(";")
	case p.match(";"):
		return nil // empty statement
	default:
		// Declarations with a struct type name land here too, due to the
		// id-id ambiguity; parseExpressionStatement resolves it.
		return p.parseExpressionStatement()
	}
}

// parseStruct registers a struct type, allocates one memory alias per field
// and binds the matching start projections in the scope. Structs may only
// appear in the outermost lexical scope and cannot be redefined.
func (p *Parser) parseStruct() error {
	if len(p.xScopes) > 1 || p.scope.depth() != 2 {
		return p.errf("struct declarations can only appear in top level scope")
	}
	typeName, err := p.requireId()
	if err != nil {
		return err
	}
	if p.sea.Struct(typeName) != nil {
		return p.errf("struct '%s' cannot be redefined", typeName)
	}
	ts := &TypeStruct{Name: typeName}
	if err := p.require("{"); err != nil {
		return err
	}
	for !p.lex.peek('}') && !p.lex.isEOF() {
		if err := p.parseField(ts); err != nil {
			return err
		}
	}
	if err := p.require("}"); err != nil {
		return err
	}
	if ts.NumFields() == 0 {
		return p.errf("struct '%s' must contain 1 or more fields", typeName)
	}
	p.sea.defineStruct(ts)
	p.sea.start.addMemProj(ts, p.scope)
	return nil
}

// parseField parses one struct field; only 'int' fields exist today.
func (p *Parser) parseField(ts *TypeStruct) error {
	if !p.matchx("int") {
		return p.errf("A field declaration is expected, only fields of type 'int' are supported at present")
	}
	fieldName, err := p.requireId()
	if err != nil {
		return err
	}
	if err := p.require(";"); err != nil {
		return err
	}
	ts.addField(fieldName, IntBot, p.sea.newAlias())
	return nil
}

// parseReturn emits a Return, attaches it to Stop, and kills control.
// Parsing continues after a return; everything until the scope exits is
// dead code threading a dead-control constant.
func (p *Parser) parseReturn() error {
	expr, err := p.parseExpression()
	if err != nil {
		return err
	}
	if err := p.require(";"); err != nil {
		return err
	}
	ret := peep(newReturnNode(p.sea, p.scope.ctrl(), expr))
	p.sea.stop.addReturn(ret)
	p.scope.setCtrl(peep(newConstantNode(p.sea, TypeXCtrl)))
	return nil
}

// parseIf parses if/else. Both arms start from a clone of the same scope and
// must end with the same set of names; the arms are then merged, which
// inserts the region and any needed phis.
func (p *Parser) parseIf() error {
	if err := p.require("("); err != nil {
		return err
	}
	pred, err := p.parseExpression()
	if err != nil {
		return err
	}
	if err := p.require(")"); err != nil {
		return err
	}
	ifn := peep(newIfNode(p.sea, p.scope.ctrl(), pred))
	ifn.base().keep()
	ifT := peep(newProjNode(p.sea, ifn, 0, "True"))
	ifT.base().keep()
	ifn.base().unkeep()
	ifF := peep(newProjNode(p.sea, ifn, 1, "False"))
	ifF.base().keep()

	ndefs := p.scope.numNames()
	fScope := p.scope.dup(false)
	p.xScopes = append(p.xScopes, fScope)

	// True arm.
	p.scope.setCtrl(ifT)
	ifT.base().unkeep()
	if err := p.parseStatement(); err != nil {
		return err
	}
	tScope := p.scope

	// False arm, from the clone.
	p.scope = fScope
	p.scope.setCtrl(ifF)
	ifF.base().unkeep()
	if p.matchx("else") {
		if err := p.parseStatement(); err != nil {
			return err
		}
		fScope = p.scope
	}

	if tScope.numNames() != ndefs || fScope.numNames() != ndefs {
		return p.errf("Cannot define a new name on one arm of an if")
	}

	p.scope = tScope
	p.xScopes = p.xScopes[:len(p.xScopes)-1]
	p.scope.setCtrl(tScope.mergeScopes(fScope))
	return nil
}

// parseWhile parses a loop. See the file header for the scope choreography.
func (p *Parser) parseWhile() error {
	savedContinue, savedBreak := p.continueScope, p.breakScope

	if err := p.require("("); err != nil {
		return err
	}

	// The loop region's entry edge is the current control; the back edge
	// stays pending until endLoop. Peepholes on the region and its phis are
	// suppressed while pending.
	loop := newLoopNode(p.sea, p.scope.ctrl())
	p.scope.setCtrl(peep(loop))

	// The current scope becomes the loop head; the body parses in a clone
	// that materializes phis on first access.
	head := p.scope
	p.scope = head.dup(true)
	p.xScopes = append(p.xScopes, p.scope)

	pred, err := p.parseExpression()
	if err != nil {
		return err
	}
	if err := p.require(")"); err != nil {
		return err
	}
	ifn := peep(newIfNode(p.sea, p.scope.ctrl(), pred))
	ifn.base().keep()
	ifT := peep(newProjNode(p.sea, ifn, 0, "True"))
	ifT.base().keep()
	ifn.base().unkeep()
	ifF := peep(newProjNode(p.sea, ifn, 1, "False"))

	// Clone the body scope after the predicate to form the exit scope; it
	// sees any side effects of the predicate and leaves on the False arm.
	p.scope.setCtrl(ifF)
	p.breakScope = p.scope.dup(false)
	p.xScopes = append(p.xScopes, p.breakScope)
	p.continueScope = nil

	// Parse the body on the True arm.
	p.scope.setCtrl(ifT)
	ifT.base().unkeep()
	if err := p.parseStatement(); err != nil {
		return err
	}

	// Fold any continue landings into the loop bottom.
	if p.continueScope != nil {
		p.continueScope = p.jumpTo(p.continueScope)
		p.scope.kill()
		p.scope = p.continueScope
	}

	exit := p.breakScope
	head.endLoop(p.scope, exit)
	p.scope.kill()
	head.kill()

	p.xScopes = p.xScopes[:len(p.xScopes)-2]
	p.continueScope, p.breakScope = savedContinue, savedBreak
	p.scope = exit
	return nil
}

// jumpTo lands a break or continue: clone the current scope, kill the local
// control (parsing continues dead), prune the clone to the loop's lexical
// depth, and merge it into the target scope. The first jump becomes the
// target.
func (p *Parser) jumpTo(toScope *Scope) *Scope {
	cur := p.scope.dup(false)
	p.scope.setCtrl(peep(newConstantNode(p.sea, TypeXCtrl)))
	for cur.depth() > p.breakScope.depth() {
		cur.pop()
	}
	if toScope == nil {
		return cur
	}
	toScope.setCtrl(toScope.mergeScopes(cur))
	return toScope
}

func (p *Parser) parseBreak() error {
	if p.breakScope == nil {
		return p.errf("No active loop for a break or continue")
	}
	p.breakScope = p.jumpTo(p.breakScope)
	return p.require(";")
}

func (p *Parser) parseContinue() error {
	if p.breakScope == nil {
		return p.errf("No active loop for a break or continue")
	}
	p.continueScope = p.jumpTo(p.continueScope)
	return p.require(";")
}

// parseExpressionStatement handles assignment, field store, and — because
// of the id-id ambiguity — declarations with a struct type name:
//
//	name '=' expr ';'
//	name '.' field '=' expr ';'
//	typename name '=' expr ';'   /  typename name ';'
func (p *Parser) parseExpressionStatement() error {
	name, err := p.requireId()
	if err != nil {
		return err
	}
	// id followed by id: a declaration; the first id must be a struct type.
	if p.lex.peekIsID() {
		ts := p.sea.Struct(name)
		if ts == nil {
			return p.errf("No struct type definition found for '%s'", name)
		}
		return p.parseDecl(ts)
	}
	var fieldName string
	if p.match(".") {
		if fieldName, err = p.requireId(); err != nil {
			return err
		}
	}
	if err := p.require("="); err != nil {
		return err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return err
	}
	if err := p.require(";"); err != nil {
		return err
	}
	if fieldName != "" {
		// Store through a struct pointer: rewrite the field's memory alias.
		n := p.scope.lookup(name)
		if n == nil {
			return p.errf("Undefined name '%s'", name)
		}
		ptr, ok := n.Type().(*TypeMemPtr)
		if !ok {
			return p.errf("Expected '%s' to be a reference to a struct", name)
		}
		field, err := p.typeField(ptr, fieldName)
		if err != nil {
			return err
		}
		st := peep(newStoreNode(p.sea, field, p.memAlias(field), n, expr))
		p.scope.update(field.aliasName(), st)
		return nil
	}
	if !p.scope.update(name, expr) {
		return p.errf("Undefined name '%s'", name)
	}
	return nil
}

// parseDecl parses a declaration. ts is nil for 'int' declarations. A
// struct declaration may omit the initializer; the variable then holds a
// null constant that keeps its declared pointer type, so later field
// accesses still resolve.
func (p *Parser) parseDecl(ts *TypeStruct) error {
	name, err := p.requireId()
	if err != nil {
		return err
	}
	var expr Node
	if ts != nil && p.match(";") {
		expr = peep(newConstantNode(p.sea, NullPtrTo(ts)))
	} else {
		if err := p.require("="); err != nil {
			return err
		}
		if expr, err = p.parseExpression(); err != nil {
			return err
		}
		if err := p.require(";"); err != nil {
			return err
		}
		if expr, err = p.typeCheck(ts, expr, name); err != nil {
			return err
		}
	}
	if !p.scope.define(name, expr) {
		return p.errf("Redefining name '%s'", name)
	}
	return nil
}

// typeCheck validates a declaration initializer against a declared struct
// type and returns the (possibly retyped) initializer. The null literal is
// retyped to the declared pointer type, mirroring the no-initializer form.
func (p *Parser) typeCheck(ts *TypeStruct, expr Node, name string) (Node, error) {
	if ts == nil {
		return expr, nil
	}
	switch e := expr.(type) {
	case *NewNode:
		if e.Ptr().Obj() != ts {
			return nil, p.errf("new expression is not compatible with the variable %s", name)
		}
	case *ConstantNode:
		pt, ok := expr.Type().(*TypeMemPtr)
		if !ok || !pt.nilOK || (pt.obj != nil && pt.obj != ts) {
			return nil, p.errf("expression cannot be assigned to variable %s", name)
		}
		if pt.obj == nil {
			expr = peep(newConstantNode(p.sea, NullPtrTo(ts)))
		}
	default:
		pt, ok := expr.Type().(*TypeMemPtr)
		if !ok || pt.Obj() != ts {
			return nil, p.errf("expression cannot be assigned to variable %s", name)
		}
	}
	return expr, nil
}

/* ---------- expressions ---------- */

func (p *Parser) parseExpression() (Node, error) { return p.parseComparison() }

// parseComparison builds left-associative comparison chains. The operator
// node is created with one operand missing; the right side is parsed, late
// bound with setDef, and only then peepholed — so rewrites that look at both
// operands fire exactly once. Greater-than flavors swap operands of the
// less-than node, and != is == followed by a not.
func (p *Parser) parseComparison() (Node, error) {
	lhs, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	for {
		var idx int
		var negate bool
		switch {
		case p.match("=="):
			idx = 2
			lhs = newBoolNode(p.sea, "==", lhs, nil)
		case p.match("!="):
			idx, negate = 2, true
			lhs = newBoolNode(p.sea, "==", lhs, nil)
		case p.match("<="):
			idx = 2
			lhs = newBoolNode(p.sea, "<=", lhs, nil)
		case p.match("<"):
			idx = 2
			lhs = newBoolNode(p.sea, "<", lhs, nil)
		case p.match(">="):
			idx = 1
			lhs = newBoolNode(p.sea, "<=", nil, lhs)
		case p.match(">"):
			idx = 1
			lhs = newBoolNode(p.sea, "<", nil, lhs)
		default:
			return lhs, nil
		}
		rhs, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		lhs.base().setDef(idx, rhs)
		lhs = peep(lhs)
		if negate {
			lhs = peep(newNotNode(p.sea, lhs))
		}
	}
}

func (p *Parser) parseAddition() (Node, error) {
	lhs, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match("+"):
			lhs = newAddNode(p.sea, lhs, nil)
		case p.match("-"):
			lhs = newSubNode(p.sea, lhs, nil)
		default:
			return lhs, nil
		}
		rhs, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		lhs.base().setDef(2, rhs)
		lhs = peep(lhs)
	}
}

func (p *Parser) parseMultiplication() (Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match("*"):
			lhs = newMulNode(p.sea, lhs, nil)
		case p.match("/"):
			lhs = newDivNode(p.sea, lhs, nil)
		default:
			return lhs, nil
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs.base().setDef(2, rhs)
		lhs = peep(lhs)
	}
}

func (p *Parser) parseUnary() (Node, error) {
	if p.match("-") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return peep(newMinusNode(p.sea, e)), nil
	}
	pr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(pr)
}

func (p *Parser) parsePrimary() (Node, error) {
	if p.lex.isNumber() {
		v, err := p.lex.parseNumber()
		if err != nil {
			return nil, err
		}
		return peep(newConstantNode(p.sea, IntConst(v))), nil
	}
	if p.match("(") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.require(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	if p.matchx("true") {
		return peep(newConstantNode(p.sea, IntConst(1))), nil
	}
	if p.matchx("false") {
		return peep(newConstantNode(p.sea, IntConst(0))), nil
	}
	if p.matchx("null") {
		return peep(newConstantNode(p.sea, TypeNullPtr)), nil
	}
	if p.matchx("new") {
		structName, err := p.requireId()
		if err != nil {
			return nil, err
		}
		ts := p.sea.Struct(structName)
		if ts == nil {
			return nil, p.errf("Unknown struct type '%s'", structName)
		}
		return p.newStruct(ts), nil
	}
	name := p.lex.matchId()
	if name == "" {
		return nil, p.errSyntax("an identifier or expression")
	}
	if n := p.scope.lookup(name); n != nil {
		return n, nil
	}
	return nil, p.errf("Undefined name '%s'", name)
}

// newStruct allocates an instance and zero-initializes every field through
// its memory alias.
func (p *Parser) newStruct(ts *TypeStruct) Node {
	n := peep(newNewNode(p.sea, PtrTo(ts), p.scope.ctrl()))
	n.base().keep()
	zero := peep(newConstantNode(p.sea, IntConst(0)))
	for _, f := range ts.Fields() {
		st := peep(newStoreNode(p.sea, f, p.memAlias(f), n, zero))
		p.scope.update(f.aliasName(), st)
	}
	n.base().unkeep()
	return n
}

// parsePostfix parses field loads. Only one level of field access is
// supported: a load produces an integer, so a second '.' fails the
// struct-reference check below.
func (p *Parser) parsePostfix(expr Node) (Node, error) {
	if !p.match(".") {
		return expr, nil
	}
	fieldName, err := p.requireId()
	if err != nil {
		return nil, err
	}
	ptr, ok := expr.Type().(*TypeMemPtr)
	if !ok {
		return nil, p.errf("Expected reference to a struct but got %s", expr.Type().Str())
	}
	field, err := p.typeField(ptr, fieldName)
	if err != nil {
		return nil, err
	}
	load := peep(newLoadNode(p.sea, field, p.memAlias(field), expr))
	return p.parsePostfix(load)
}

// typeField resolves a field against a pointer type. Access through the
// bare null literal is rejected; access through a declared-but-null struct
// variable still resolves (the pointer keeps its declared type).
func (p *Parser) typeField(ptr *TypeMemPtr, fieldName string) (*Field, error) {
	if ptr.IsNull() {
		return nil, p.errf("Attempt to access '%s' from null reference", fieldName)
	}
	f := ptr.Obj().GetField(fieldName)
	if f == nil {
		return nil, p.errf("Unknown field '%s' in struct '%s'", fieldName, ptr.Obj().Name)
	}
	return f, nil
}

// memAlias reads the current memory slice for a field.
func (p *Parser) memAlias(f *Field) Node { return p.scope.lookup(f.aliasName()) }

// showGraph dumps the graph plus all live scopes as GraphViz.
func (p *Parser) showGraph() {
	fmt.Fprintln(p.GraphOut, GenerateDot(p.sea, p.scope, p.xScopes))
}

/* ---------- lexing helpers & errors ---------- */

func (p *Parser) match(syntax string) bool  { return p.lex.match(syntax) }
func (p *Parser) matchx(syntax string) bool { return p.lex.matchx(syntax) }

// require consumes syntax or fails the parse.
func (p *Parser) require(syntax string) error {
	if p.match(syntax) {
		return nil
	}
	return p.errSyntax(syntax)
}

// requireId consumes an identifier that is not a keyword.
func (p *Parser) requireId() (string, error) {
	id := p.lex.matchId()
	if id != "" && !isKeyword(id) {
		return id, nil
	}
	if id == "" {
		return "", p.errSyntax("an identifier")
	}
	return "", p.errf("Expected an identifier, found '%s'", id)
}

func (p *Parser) errSyntax(expected string) error {
	if p.interactive && p.lex.isEOF() {
		line, col := p.lex.lineCol()
		return &ParseError{Line: line, Col: col, Incomplete: true,
			Msg: fmt.Sprintf("Syntax error, expected %s: end of input", expected)}
	}
	return p.errf("Syntax error, expected %s: %s", expected, p.lex.anyNextToken())
}

func (p *Parser) errf(format string, args ...any) error {
	line, col := p.lex.lineCol()
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}
