package backend

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/llir/llvm/ir"

	"lumen/internal/diag"
)

// JIT runs a lowered module by shelling out to the external lli
// interpreter rather than embedding an execution engine of its own —
// the language's grammar has no FFI story beyond calling straight into
// libc, which is exactly what lli's own dynamic symbol resolution
// already gives a spawned child process for free.
//
// The returned exit code is the integer lli's own process exited with,
// which (per spec §6) is the value the program's main returned.
func JIT(ctx context.Context, mod *ir.Module) (exitCode int, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "lli", "-")
	cmd.Stdin = bytes.NewReader(EmitIRText(mod))
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stderr = errBuf.String()
	if runErr == nil {
		return 0, stderr, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		return exitErr.ExitCode(), stderr, nil
	}
	return 0, stderr, diag.NewCodeGenError("running lli: " + runErr.Error())
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
