package backend

import (
	"strings"
	"testing"

	"lumen/internal/parser"
	"lumen/internal/sema"
	"lumen/internal/source"
)

func lowerString(t *testing.T, text string) string {
	t.Helper()
	src := source.FromString(text)
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if err := sema.Analyze(prog, src); err != nil {
		t.Fatalf("unexpected semantic error: %v", err)
	}
	mod, err := Lower(prog)
	if err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}
	return string(EmitIRText(mod))
}

func TestEntryPointReturnsUserMainResult(t *testing.T) {
	ir := lowerString(t, `
fn main() -> int {
	return 7;
}
`)
	if !strings.Contains(ir, "define i32 @main()") {
		t.Errorf("expected a defined @main, got:\n%s", ir)
	}
	if !strings.Contains(ir, "@"+userMainSymbol) {
		t.Errorf("expected the user's main to be renamed to %s, got:\n%s", userMainSymbol, ir)
	}
}

func TestExternDeclEmitsDeclare(t *testing.T) {
	ir := lowerString(t, `
extern fn puts(s: string) -> int;
fn main() -> int {
	return puts("hi");
}
`)
	if !strings.Contains(ir, "declare i32 @puts(i8*)") {
		t.Errorf("expected a declare for puts, got:\n%s", ir)
	}
}

func TestGlobalInitializationRunsBeforeMain(t *testing.T) {
	ir := lowerString(t, `
let total = 1+2 : int;
fn main() -> int {
	return total;
}
`)
	if !strings.Contains(ir, "@total") {
		t.Errorf("expected a global @total, got:\n%s", ir)
	}
	// The generated entry point must store into the global before it ever
	// calls the user's main.
	entryStart := strings.Index(ir, "define i32 @main()")
	callIdx := strings.Index(ir, "call i32 @"+userMainSymbol)
	storeIdx := strings.Index(ir[entryStart:], "store")
	if storeIdx == -1 || callIdx == -1 || entryStart+storeIdx > callIdx {
		t.Errorf("expected the global store to precede the call to the user's main, got:\n%s", ir)
	}
}

func TestStringConcatenationNeverReachesLowering(t *testing.T) {
	src := source.FromString(`
fn main() -> int {
	let a = "x"+"y" : string;
	return 0;
}
`)
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if err := sema.Analyze(prog, src); err == nil {
		t.Fatalf("expected a semantic error rejecting string concatenation, got none")
	}
}

func TestIfWithoutElseFallsThroughToMergeBlock(t *testing.T) {
	ir := lowerString(t, `
fn main() -> int {
	let a = 1 : int;
	if a {
		a = 2;
	}
	return a;
}
`)
	if strings.Count(ir, "br ") == 0 {
		t.Errorf("expected at least one branch instruction, got:\n%s", ir)
	}
}

func TestForLoopLowersToCountingLoop(t *testing.T) {
	ir := lowerString(t, `
fn main() -> int {
	let total : int;
	total = 0;
	for i in 0..10 {
		total = total+i;
	}
	return total;
}
`)
	if !strings.Contains(ir, "icmp slt") {
		t.Errorf("expected a signed less-than comparison driving the loop, got:\n%s", ir)
	}
}

func TestContainerRoundTrips(t *testing.T) {
	src := source.FromString("fn main() -> int {\nreturn 0;\n}\n")
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if err := sema.Analyze(prog, src); err != nil {
		t.Fatalf("unexpected semantic error: %v", err)
	}
	mod, err := Lower(prog)
	if err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}
	container := EmitContainer(mod)
	text, err := DecodeContainer(container)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if string(text) != string(EmitIRText(mod)) {
		t.Errorf("decoded container does not match the original IR text")
	}
}

func TestDecodeContainerRejectsBadMagic(t *testing.T) {
	if _, err := DecodeContainer([]byte("not a container")); err == nil {
		t.Error("expected an error for a non-container payload")
	}
}
