// Package backend lowers a validated ast.Program to an LLVM IR
// *ir.Module (spec §6 "Outputs", §9 Design Notes). It is never reached by
// a program that internal/sema has rejected, so most of its functions
// trust the AST completely rather than re-deriving sema's checks.
package backend

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lumen/internal/ast"
	"lumen/internal/diag"
)

// userMainSymbol is the LLVM symbol the user's `main` function is lowered
// under. The emitted LLVM `main` is reserved for the synthetic entry point
// that runs global initializers before handing off to it (spec §6
// "Global-variable initialization").
const userMainSymbol = "lumen.user_main"

// Context holds every module-level symbol produced while lowering one
// program. It carries no global/package-level state of its own — every
// compilation gets a fresh Context — which is what spec §9 means by "no
// global LLVM state".
type Context struct {
	mod            *ir.Module
	funcs          map[string]*ir.Func
	funcReturnType map[string]ast.Type
	globals        map[string]*ir.Global
	globalTypes    map[string]ast.Type
	strCounter     int
}

func newContext() *Context {
	return &Context{
		mod:            ir.NewModule(),
		funcs:          make(map[string]*ir.Func),
		funcReturnType: make(map[string]ast.Type),
		globals:        make(map[string]*ir.Global),
		globalTypes:    make(map[string]ast.Type),
	}
}

// Lower translates prog into an LLVM IR module. prog must already have
// passed sema.Analyze.
func Lower(prog *ast.Program) (*ir.Module, error) {
	c := newContext()
	c.declareExterns(prog.Externs)
	c.declareGlobals(prog.Globals)
	c.declareFunctions(prog.Functions)
	for _, fn := range prog.Functions {
		if err := c.defineFunction(fn); err != nil {
			return nil, err
		}
	}
	c.emitEntryPoint(prog.Globals)
	return c.mod, nil
}

func langType(t ast.Type) types.Type {
	switch t {
	case ast.Int:
		return types.I32
	case ast.String:
		return types.NewPointer(types.I8)
	case ast.IntPointer:
		return types.NewPointer(types.I32)
	default:
		return types.I32
	}
}

func zeroOf(t types.Type) constant.Constant {
	switch t := t.(type) {
	case *types.IntType:
		return constant.NewInt(t, 0)
	case *types.PointerType:
		return constant.NewNull(t)
	default:
		return constant.NewInt(types.I32, 0)
	}
}

func (c *Context) declareExterns(externs []*ast.ExternFunctionDecl) {
	for _, ext := range externs {
		params := make([]*ir.Param, len(ext.Params))
		for i, p := range ext.Params {
			params[i] = ir.NewParam(p.Name, langType(p.Type))
		}
		f := c.mod.NewFunc(ext.Name, langType(ext.ReturnType), params...)
		c.funcs[ext.Name] = f
		c.funcReturnType[ext.Name] = ext.ReturnType
	}
}

func (c *Context) declareGlobals(globals []*ast.VariableDecl) {
	for _, decl := range globals {
		llt := langType(decl.Type)
		for _, v := range decl.Vars {
			g := c.mod.NewGlobalDef(v.Name, zeroOf(llt))
			c.globals[v.Name] = g
			c.globalTypes[v.Name] = decl.Type
		}
	}
}

func (c *Context) declareFunctions(fns []*ast.FunctionDecl) {
	for _, fn := range fns {
		symbol := fn.Name
		if fn.Name == "main" {
			symbol = userMainSymbol
		}
		params := make([]*ir.Param, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = ir.NewParam(p.Name, langType(p.Type))
		}
		f := c.mod.NewFunc(symbol, langType(fn.ReturnType), params...)
		c.funcs[fn.Name] = f
		c.funcReturnType[fn.Name] = fn.ReturnType
	}
}

// emitEntryPoint builds the real LLVM `main`: it stores every global
// initializer, in declaration order, then calls the user's main and
// forwards its return value — spec §6's global-initialization contract.
func (c *Context) emitEntryPoint(globals []*ast.VariableDecl) {
	entry := c.mod.NewFunc("main", types.I32)
	block := entry.NewBlock("")
	fb := &funcBuilder{c: c, fn: entry, cur: block}

	for _, decl := range globals {
		for _, v := range decl.Vars {
			if v.Initial == nil {
				continue
			}
			val, err := fb.lowerExpr(v.Initial, nil)
			if err != nil {
				// Unreachable for a sema-validated program; globals are
				// re-checked here only because codegen has no other
				// chance to report a lowering bug before it corrupts IR.
				panic(err)
			}
			fb.cur.NewStore(val.force(fb), c.globals[v.Name])
		}
	}

	userMain := c.funcs["main"]
	result := fb.cur.NewCall(userMain)
	fb.cur.NewRet(result)
}

func newCodeGenError(format string, args ...any) error {
	return diag.NewCodeGenError(fmt.Sprintf(format, args...))
}

// place/value sum type, lazily forcing a load only when a value is
// actually needed — the backend's answer to spec §9's "lazy IR values"
// design note. lang tracks the surface type rather than the raw LLVM
// type; force uses it to pick the type a place is loaded as.
type irValue struct {
	isPlace bool
	lang    ast.Type
	val     value.Value // the value itself, or (if isPlace) its address
}

func valueOf(v value.Value, t ast.Type) *irValue {
	return &irValue{isPlace: false, lang: t, val: v}
}

func placeOf(addr value.Value, t ast.Type) *irValue {
	return &irValue{isPlace: true, lang: t, val: addr}
}

// force loads through a place to produce a usable value; a value forces
// to itself.
func (v *irValue) force(fb *funcBuilder) value.Value {
	if !v.isPlace {
		return v.val
	}
	return fb.cur.NewLoad(langType(v.lang), v.val)
}

// requirePlace returns the storage location backing a place. A
// sema-validated program only ever calls this where sema already proved
// the node is a place (assignment targets, operands of '&'); the error
// path exists so a lowering bug surfaces as a diagnostic instead of a
// panic, per spec §9's "errors as exceptions" design note.
func (v *irValue) requirePlace() (value.Value, error) {
	if !v.isPlace {
		return nil, newCodeGenError("internal: expected an addressable place")
	}
	return v.val, nil
}
