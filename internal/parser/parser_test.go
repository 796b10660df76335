package parser

import (
	"strings"
	"testing"

	"lumen/internal/ast"
	"lumen/internal/source"
)

// parseExprString parses a standalone expression by wrapping it in a
// minimal function body, and returns the single expression statement's
// printed form. This mirrors how the grammar actually surfaces an
// expression — there is no top-level expression form.
func parseExprString(t *testing.T, expr string) string {
	t.Helper()
	src := source.FromString("fn f() -> int {\n" + expr + ";\nreturn 0;\n}\n")
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parsing %q: unexpected error: %v", expr, err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("expected one function, got %d", len(prog.Functions))
	}
	body := prog.Functions[0].Body.Statements
	if len(body) == 0 {
		t.Fatalf("empty body")
	}
	es, ok := body[0].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("first statement is %T, not ExpressionStatement", body[0])
	}
	return ast.Print(es.Expr)
}

func TestExpressionRoundTrip(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a+b*c", "((a)+((b)*(c)))"},
		{"!a==b", "(!((a)==(b)))"},
		{"~*&a", "(~(*(&(a))))"},
		{"a[1]", "((a)[(1)])"},
		{"f(a+1,b)", "(f(((a)+(1)),(b)))"},
	}
	for _, tt := range tests {
		got := parseExprString(t, tt.in)
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrecedenceAndAssociativity(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a||b&&c", "(((a)||(b))&&(c))"}, // && and || share one left-associative precedence level
		{"a&&!b", "((a)&&(!(b)))"},
		{"a==b<c", "(((a)==(b))<(c))"}, // compare operators share one left-associative precedence level
		{"a<b|c", "((a)<((b)|(c)))"},
		{"a|b+c", "((a)|((b)+(c)))"},
		{"a+b*c/d", "((a)+(((b)*(c))/(d)))"},
		{"a-b-c", "(((a)-(b))-(c))"},
		{"-a", "(-(a))"},
		{"-(a+b)", "(-((a)+(b)))"},
	}
	for _, tt := range tests {
		got := parseExprString(t, tt.in)
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func parseProgramString(t *testing.T, text string) (*ast.Program, error) {
	t.Helper()
	return ParseProgram(source.FromString(text))
}

func TestFunctionDeclWithParams(t *testing.T) {
	prog, err := parseProgramString(t, `
fn add(a: int, b: int) -> int {
	return a+b;
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	if fn.Params[0].Type != ast.Int || fn.Params[1].Type != ast.Int {
		t.Fatalf("expected int params, got %v %v", fn.Params[0].Type, fn.Params[1].Type)
	}
}

func TestExternDecl(t *testing.T) {
	prog, err := parseProgramString(t, `extern fn puts(s: string) -> int;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Externs) != 1 || prog.Externs[0].Name != "puts" {
		t.Fatalf("unexpected externs: %+v", prog.Externs)
	}
}

func TestGlobalVariableDecl(t *testing.T) {
	prog, err := parseProgramString(t, `let a = 1, b : int;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Globals) != 1 {
		t.Fatalf("expected 1 global decl, got %d", len(prog.Globals))
	}
	decl := prog.Globals[0]
	if len(decl.Vars) != 2 || decl.Type != ast.Int {
		t.Fatalf("unexpected decl shape: %+v", decl)
	}
	if decl.Vars[0].Initial == nil {
		t.Fatalf("expected a to have an initializer")
	}
	if decl.Vars[1].Initial != nil {
		t.Fatalf("expected b to have no initializer")
	}
}

func TestIfElifElse(t *testing.T) {
	prog, err := parseProgramString(t, `
fn f() -> int {
	if a {
		return 1;
	} elif b {
		return 2;
	} else {
		return 3;
	}
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := prog.Functions[0].Body.Statements
	ifs, ok := body[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected IfStatement, got %T", body[0])
	}
	if len(ifs.Blocks) != 2 {
		t.Fatalf("expected if+elif = 2 blocks, got %d", len(ifs.Blocks))
	}
	if ifs.Else == nil {
		t.Fatalf("expected an else block")
	}
}

func TestForWithStep(t *testing.T) {
	prog, err := parseProgramString(t, `
fn f() -> int {
	for i in 0..10..2 {
		return i;
	}
	return 0;
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := prog.Functions[0].Body.Statements[0].(*ast.ForStatement)
	if !ok {
		t.Fatalf("expected ForStatement, got %T", prog.Functions[0].Body.Statements[0])
	}
	if f.VarName != "i" || f.Step == nil {
		t.Fatalf("unexpected for-statement shape: %+v", f)
	}
}

func TestChainedAssignment(t *testing.T) {
	prog, err := parseProgramString(t, `
fn f() -> int {
	a = b = 1;
	return 0;
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assign, ok := prog.Functions[0].Body.Statements[0].(*ast.AssignmentStatement)
	if !ok {
		t.Fatalf("expected AssignmentStatement, got %T", prog.Functions[0].Body.Statements[0])
	}
	if len(assign.Parts) != 3 {
		t.Fatalf("expected 3 parts (a, b, 1), got %d", len(assign.Parts))
	}
}

// TestRejectedPrograms mirrors spec.md §8's literal parser-rejection set.
// "fn f() int {}" and "extern fn f() int;" are rejected here because both
// omit the mandatory "->" before the return type, not because of the
// (semantic, not syntactic) missing-return rule.
func TestRejectedPrograms(t *testing.T) {
	tests := []string{
		"fn f() -> int {\nlet a : ;\nreturn 0;\n}\n",
		"fn f() int {}\n",
		"fn f() -> int {\nfor i 0..1 {\n}\nreturn 0;\n}\n",
		"fn f() -> int {\nwhile { }\nreturn 0;\n}\n",
		"fn f() -> int {\nif a { } elif { } else {}\nreturn 0;\n}\n",
		"extern fn f() int;\n",
	}
	for _, src := range tests {
		_, err := parseProgramString(t, src)
		if err == nil {
			t.Errorf("expected a syntax error for:\n%s", src)
		}
	}
}

func TestErrorMessageIsFramed(t *testing.T) {
	_, err := parseProgramString(t, "fn f() -> int {\nreturn ;\n}\n")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Line 2") {
		t.Errorf("expected error to reference line 2, got: %s", err.Error())
	}
}
