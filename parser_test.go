// parser_test.go
package simple

import (
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func mustParse(t *testing.T, src string) (*Parser, *StopNode) {
	t.Helper()
	p := NewParser(src)
	stop, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v\nsource:\n%s", err, src)
	}
	return p, stop
}

func mustFailParseContains(t *testing.T, src, substr string) {
	t.Helper()
	_, err := Parse(src)
	if err == nil {
		t.Fatalf("expected parse error containing %q, got nil\nsource:\n%s", substr, src)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("expected error containing %q, got %v\nsource:\n%s", substr, err, src)
	}
}

// retData returns the data input of the single live return.
func retData(t *testing.T, stop *StopNode) Node {
	t.Helper()
	rets := stop.Returns()
	if len(rets) == 0 {
		t.Fatalf("no return reachable from stop")
	}
	return rets[0].Data()
}

func wantIntConst(t *testing.T, n Node, v int64) {
	t.Helper()
	c, ok := n.(*ConstantNode)
	if !ok {
		t.Fatalf("want constant %d, got %s (type %s)", v, n.label(), n.Type().Str())
	}
	ti, ok := c.Type().(*TypeInteger)
	if !ok || !ti.IsConstant() || ti.Value() != v {
		t.Fatalf("want constant %d, got type %s", v, c.Type().Str())
	}
}

// countNodes counts live nodes of the shapes the invariants talk about.
func countNodes(p *Parser) (loops, phis int) {
	for _, n := range collectNodes(p.Sea()) {
		switch n.(type) {
		case *LoopNode:
			loops++
		case *PhiNode:
			phis++
		}
	}
	return
}

// --- end-to-end scenarios --------------------------------------------------

func Test_Parser_ConstantFold_ReturnArithmetic(t *testing.T) {
	_, stop := mustParse(t, "return 1+2*3;")
	wantIntConst(t, retData(t, stop), 7)
}

func Test_Parser_While_SingleLoopSinglePhi(t *testing.T) {
	p, stop := mustParse(t, "int x=1; while(x<10) x=x+1; return x;")
	loops, phis := countNodes(p)
	if loops != 1 {
		t.Fatalf("want exactly one loop region, got %d", loops)
	}
	if phis != 1 {
		t.Fatalf("want exactly one phi for x, got %d", phis)
	}
	phi, ok := retData(t, stop).(*PhiNode)
	if !ok {
		t.Fatalf("return should see the loop phi, got %s", retData(t, stop).label())
	}
	if phi.NIns() != 3 {
		t.Fatalf("loop phi should have region + 2 data operands, has %d ins", phi.NIns())
	}
	wantIntConst(t, phi.In(1), 1)
	if _, ok := phi.In(2).(*AddNode); !ok {
		t.Fatalf("phi back edge should be the increment, got %s", phi.In(2).label())
	}
}

func Test_Parser_IfElse_SinglePhiAtMerge(t *testing.T) {
	p, stop := mustParse(t, "int a=1; if(arg) a=2; else a=3; return a;")
	_, phis := countNodes(p)
	if phis != 1 {
		t.Fatalf("want exactly one phi at the if merge, got %d", phis)
	}
	phi, ok := retData(t, stop).(*PhiNode)
	if !ok {
		t.Fatalf("return should see the merge phi, got %s", retData(t, stop).label())
	}
	if phi.NIns() != 3 {
		t.Fatalf("if-merge phi should be binary, has %d ins", phi.NIns())
	}
	r, ok := phi.Region().(*RegionNode)
	if !ok {
		t.Fatalf("phi not rooted at a region: %s", phi.Region().label())
	}
	// Two control predecessors, one per if projection.
	preds := 0
	for i := 1; i < r.NIns(); i++ {
		if r.In(i) != nil {
			preds++
			if _, isProj := r.In(i).(*ProjNode); !isProj {
				t.Fatalf("region predecessor %d is %s, want an if projection", i, r.In(i).label())
			}
		}
	}
	if preds != 2 {
		t.Fatalf("if-merge region should have 2 predecessors, has %d", preds)
	}
}

func Test_Parser_Struct_StoreLoadForwards(t *testing.T) {
	p, stop := mustParse(t, "struct P{int x;int y;} P p = new P; p.x=7; return p.x;")
	ts := p.Sea().Struct("P")
	if ts == nil || ts.NumFields() != 2 {
		t.Fatalf("struct P not registered with two fields")
	}
	if ts.Fields()[0].Alias == ts.Fields()[1].Alias {
		t.Fatalf("field aliases must be distinct, both %d", ts.Fields()[0].Alias)
	}
	wantIntConst(t, retData(t, stop), 7)
}

func Test_Parser_While_BreakMergesIntoExit(t *testing.T) {
	_, stop := mustParse(t, "int i=0; while(i<3){ if(i==1) break; i=i+1; } return i;")
	if _, ok := retData(t, stop).(*PhiNode); !ok {
		t.Fatalf("return after break should see a phi, got %s", retData(t, stop).label())
	}
}

func Test_Parser_Struct_NullVariableLoadParses(t *testing.T) {
	_, stop := mustParse(t, "struct A{int z;} A a; return a.z;")
	load, ok := retData(t, stop).(*LoadNode)
	if !ok {
		t.Fatalf("return should see a load, got %s", retData(t, stop).label())
	}
	if !isNullConstant(load.PtrIn()) {
		t.Fatalf("load pointer should be the null constant, got %s (type %s)",
			load.PtrIn().label(), load.PtrIn().Type().Str())
	}
}

// --- expressions -----------------------------------------------------------

func Test_Parser_Precedence(t *testing.T) {
	_, stop := mustParse(t, "return 1+2*3-4/2;")
	wantIntConst(t, retData(t, stop), 5)
}

func Test_Parser_Parens(t *testing.T) {
	_, stop := mustParse(t, "return (1+2)*3;")
	wantIntConst(t, retData(t, stop), 9)
}

func Test_Parser_UnaryMinus(t *testing.T) {
	_, stop := mustParse(t, "return -5;")
	wantIntConst(t, retData(t, stop), -5)
	_, stop = mustParse(t, "return --5;")
	wantIntConst(t, retData(t, stop), 5)
}

func Test_Parser_Comparisons_Fold(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"return 3>2;", 1},
		{"return 3<2;", 0},
		{"return 2>=2;", 1},
		{"return 2<=1;", 0},
		{"return 1==1;", 1},
		{"return 1!=1;", 0},
		{"return 1!=2;", 1},
	}
	for _, c := range cases {
		_, stop := mustParse(t, c.src)
		wantIntConst(t, retData(t, stop), c.want)
	}
}

func Test_Parser_Comparison_SameOperandFolds(t *testing.T) {
	_, stop := mustParse(t, "return arg==arg;")
	wantIntConst(t, retData(t, stop), 1)
}

func Test_Parser_TrueFalseNull(t *testing.T) {
	_, stop := mustParse(t, "return true;")
	wantIntConst(t, retData(t, stop), 1)
	_, stop = mustParse(t, "return false;")
	wantIntConst(t, retData(t, stop), 0)
	_, stop = mustParse(t, "return null;")
	if !isNullConstant(retData(t, stop)) {
		t.Fatalf("return null should produce the null constant")
	}
}

func Test_Parser_ChainedComparison_LeftAssociative(t *testing.T) {
	// (1 < 2) < 2  ->  1 < 2  ->  1
	_, stop := mustParse(t, "return 1<2<2;")
	wantIntConst(t, retData(t, stop), 1)
}

func Test_Parser_ArgFlowsThroughExpression(t *testing.T) {
	_, stop := mustParse(t, "return arg+0;")
	if _, ok := retData(t, stop).(*ProjNode); !ok {
		t.Fatalf("arg+0 should fold to the argument projection, got %s", retData(t, stop).label())
	}
}

// --- scopes & blocks -------------------------------------------------------

func Test_Parser_NestedBlock_AssignsOuter(t *testing.T) {
	_, stop := mustParse(t, "int x=1; { int y=2; x=y; } return x;")
	wantIntConst(t, retData(t, stop), 2)
}

func Test_Parser_Shadowing_InnerFrame(t *testing.T) {
	_, stop := mustParse(t, "int x=1; { int x=2; } return x;")
	wantIntConst(t, retData(t, stop), 1)
}

func Test_Parser_DeadCodeAfterReturn_StillParses(t *testing.T) {
	_, stop := mustParse(t, "return 1; return 2;")
	if len(stop.Returns()) != 2 {
		t.Fatalf("both returns should be attached to stop, got %d", len(stop.Returns()))
	}
}

func Test_Parser_InlineLiteral_EquivalentToNamed(t *testing.T) {
	// Peephole plus scope must not introduce state: inlining a let-bound
	// literal yields the same folded result.
	_, stopA := mustParse(t, "int x=4; return x+1;")
	_, stopB := mustParse(t, "return 4+1;")
	wantIntConst(t, retData(t, stopA), 5)
	wantIntConst(t, retData(t, stopB), 5)
}

// --- loops -----------------------------------------------------------------

func Test_Parser_While_Continue(t *testing.T) {
	_, stop := mustParse(t, "int i=0; int s=0; while(i<5){ i=i+1; if(i==3) continue; s=s+i; } return s;")
	if _, ok := retData(t, stop).(*PhiNode); !ok {
		t.Fatalf("return should see the loop phi for s, got %s", retData(t, stop).label())
	}
}

func Test_Parser_While_UntouchedVariableNeedsNoPhi(t *testing.T) {
	p, stop := mustParse(t, "int x=5; int i=0; while(i<3) i=i+1; return x;")
	wantIntConst(t, retData(t, stop), 5)
	_, phis := countNodes(p)
	if phis != 1 {
		t.Fatalf("only i should carry a phi, got %d phis", phis)
	}
}

func Test_Parser_While_WriteOnlyVariableCarriesPhi(t *testing.T) {
	// y is never read inside the loop but still needs a phi at the exit:
	// its value depends on whether the body ran.
	_, stop := mustParse(t, "int i=0; int y=0; while(i<3){ i=i+1; y=5; } return y;")
	if _, ok := retData(t, stop).(*PhiNode); !ok {
		t.Fatalf("write-only loop variable must reach the exit through a phi, got %s",
			retData(t, stop).label())
	}
}

func Test_Parser_While_SelfAssignFoldsPhi(t *testing.T) {
	p, stop := mustParse(t, "int x=5; int i=0; while(i<1){ x=x; i=i+1; } return x;")
	wantIntConst(t, retData(t, stop), 5)
	_, phis := countNodes(p)
	if phis != 1 {
		t.Fatalf("the x=x phi must fold away, got %d phis", phis)
	}
}

func Test_Parser_NestedWhile(t *testing.T) {
	p, stop := mustParse(t, `
int s=0;
int i=0;
while(i<3){
    int j=0;
    while(j<3){
        s=s+1;
        j=j+1;
    }
    i=i+1;
}
return s;`)
	if _, ok := retData(t, stop).(*PhiNode); !ok {
		t.Fatalf("return should see the outer phi for s, got %s", retData(t, stop).label())
	}
	loops, _ := countNodes(p)
	if loops != 2 {
		t.Fatalf("want two loop regions, got %d", loops)
	}
}

func Test_Parser_While_MemoryPhi(t *testing.T) {
	_, stop := mustParse(t, `
struct S{int f;}
S s = new S;
int i=0;
while(i<3){
    s.f = s.f + 1;
    i = i + 1;
}
return s.f;`)
	load, ok := retData(t, stop).(*LoadNode)
	if !ok {
		t.Fatalf("return should see a load, got %s", retData(t, stop).label())
	}
	if _, ok := load.Mem().(*PhiNode); !ok {
		t.Fatalf("load after the loop should read a memory phi, got %s", load.Mem().label())
	}
}

// --- memory chains ---------------------------------------------------------

func Test_Parser_MemoryChain_ReachesStartProjection(t *testing.T) {
	src := "struct P{int x;} P p = new P; p.x=1; p.x=2; return p.x;"
	_, stop := mustParse(t, src)
	wantIntConst(t, retData(t, stop), 2)
	// Re-parse with peepholes off to observe the raw store chain.
	p := NewParser(src)
	p.Sea().noPeeps = true
	stop2, err := p.Parse()
	if err != nil {
		t.Fatalf("parse with peepholes off: %v", err)
	}
	load, ok := retData(t, stop2).(*LoadNode)
	if !ok {
		t.Fatalf("raw graph should return a load, got %s", retData(t, stop2).label())
	}
	depth := 0
	mem := load.Mem()
	for {
		s, isStore := mem.(*StoreNode)
		if !isStore {
			break
		}
		mem = s.Mem()
		depth++
	}
	if depth != 3 { // zero-init + two explicit stores
		t.Fatalf("want a 3-store chain, got %d", depth)
	}
	proj, ok := mem.(*ProjNode)
	if !ok {
		t.Fatalf("chain should end at the start memory projection, got %s", mem.label())
	}
	if _, isStart := proj.In(0).(*StartNode); !isStart {
		t.Fatalf("memory projection not rooted at start")
	}
}

func Test_Parser_Struct_IfMergeMemoryPhi(t *testing.T) {
	_, stop := mustParse(t, `
struct P{int x;}
P p = new P;
if(arg) p.x=1; else p.x=2;
return p.x;`)
	load, ok := retData(t, stop).(*LoadNode)
	if !ok {
		t.Fatalf("return should see a load, got %s", retData(t, stop).label())
	}
	if _, ok := load.Mem().(*PhiNode); !ok {
		t.Fatalf("if-merge should insert a memory phi, got %s", load.Mem().label())
	}
}

// --- declarations & types --------------------------------------------------

func Test_Parser_StructDecl_NullInitializer(t *testing.T) {
	_, stop := mustParse(t, "struct A{int z;} A a = null; return a.z;")
	if _, ok := retData(t, stop).(*LoadNode); !ok {
		t.Fatalf("null-initialized struct variable keeps its declared type")
	}
}

func Test_Parser_StructDecl_AssignFromVariable(t *testing.T) {
	_, stop := mustParse(t, "struct A{int z;} A a = new A; A b = a; return b.z;")
	if _, ok := retData(t, stop).(*LoadNode); !ok {
		t.Fatalf("aliasing declaration should parse, got %s", retData(t, stop).label())
	}
}

// --- error table -----------------------------------------------------------

func Test_Parser_Errors(t *testing.T) {
	cases := []struct {
		name, src, want string
	}{
		{"leading-zero", "return 07;", "cannot start with '0'"},
		{"missing-return-expr", "return;", "Syntax error, expected an identifier or expression"},
		{"missing-semicolon", "return 1", "Syntax error, expected ;"},
		{"unexpected-token", "return 1; }", "Syntax error, unexpected }"},
		{"keyword-as-identifier", "int int = 1;", "Expected an identifier, found 'int'"},
		{"redefined-name", "int x=1; int x=2;", "Redefining name 'x'"},
		{"undefined-name-read", "return y;", "Undefined name 'y'"},
		{"undefined-name-write", "x = 1;", "Undefined name 'x'"},
		{"struct-redefined", "struct S{int x;} struct S{int y;} return 0;", "cannot be redefined"},
		{"struct-in-if", "if(arg) struct S{int x;} return 0;", "top level scope"},
		{"struct-in-block", "{ struct S{int x;} } return 0;", "top level scope"},
		{"struct-in-while", "while(arg) struct S{int x;} return 0;", "top level scope"},
		{"empty-struct", "struct S{} return 0;", "must contain 1 or more fields"},
		{"unknown-struct-decl", "B b = 0;", "No struct type definition found for 'B'"},
		{"unknown-struct-new", "return new B;", "Unknown struct type 'B'"},
		{"unknown-field", "struct A{int z;} A a = new A; return a.q;", "Unknown field 'q' in struct 'A'"},
		{"null-dereference", "return null.z;", "Attempt to access 'z' from null reference"},
		{"type-mismatch-new", "struct A{int z;} struct B{int y;} A a = new B; return 0;",
			"new expression is not compatible with the variable a"},
		{"type-mismatch-int", "struct A{int z;} A a = 1; return 0;",
			"expression cannot be assigned to variable a"},
		{"divergent-definition", "if (arg) int y = 1; else ; return 0;",
			"Cannot define a new name on one arm of an if"},
		{"no-active-loop-break", "break;", "No active loop for a break or continue"},
		{"no-active-loop-continue", "continue;", "No active loop for a break or continue"},
		{"multi-level-field", "struct A{int z;} A a = new A; return a.z.q;",
			"Expected reference to a struct"},
		{"store-through-int", "int x=1; x.f=2; return 0;", "Expected 'x' to be a reference to a struct"},
		{"non-struct-field-decl", "struct S{int x; S y;} return 0;", "A field declaration is expected"},
		{"int-decl-needs-init", "int x; return 0;", "Syntax error, expected ="},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mustFailParseContains(t, c.src, c.want)
		})
	}
}

func Test_Parser_Error_HasPosition(t *testing.T) {
	_, err := Parse("int x=1;\nreturn y;\n")
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("want *ParseError, got %T", err)
	}
	if pe.Line != 2 {
		t.Fatalf("error should point at line 2, got %d", pe.Line)
	}
}

// --- interactive mode ------------------------------------------------------

func Test_Parser_Interactive_IncompleteAtEOF(t *testing.T) {
	for _, src := range []string{
		"if (arg) {",
		"while (arg) { int x=1;",
		"int x =",
	} {
		_, err := ParseInteractive(src)
		if !IsIncomplete(err) {
			t.Fatalf("want incomplete for %q, got %v", src, err)
		}
	}
}

func Test_Parser_Interactive_RealErrorsStayFatal(t *testing.T) {
	_, err := ParseInteractive("return y;")
	if err == nil || IsIncomplete(err) {
		t.Fatalf("undefined name must not read as incomplete, got %v", err)
	}
}

// --- #showGraph ------------------------------------------------------------

func Test_Parser_ShowGraphDirective(t *testing.T) {
	var buf strings.Builder
	p := NewParser("int x=1; #showGraph; return x;")
	p.GraphOut = &buf
	if _, err := p.Parse(); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !strings.Contains(buf.String(), "digraph") {
		t.Fatalf("#showGraph produced no dot output")
	}
}

// --- idempotence -----------------------------------------------------------

func Test_Parser_Reparse_IdenticalGraph(t *testing.T) {
	src := "int i=0; while(i<3){ if(i==1) break; i=i+1; } return i;"
	p1, _ := mustParse(t, src)
	p2, _ := mustParse(t, src)
	d1 := GenerateDot(p1.Sea(), nil, nil)
	d2 := GenerateDot(p2.Sea(), nil, nil)
	if d1 != d2 {
		t.Fatalf("re-parsing the same source produced a different graph:\n%s\n----\n%s", d1, d2)
	}
}
