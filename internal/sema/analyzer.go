package sema

import (
	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/source"
)

// funcSig is the flat, pre-call-site-resolved signature of a function or
// extern declaration. Both share one namespace: a call site does not care
// whether the callee has a Go-visible body or is resolved at link time.
type funcSig struct {
	Params []ast.Type
	Return ast.Type
	Pos    source.Position
}

type Analyzer struct {
	src     source.Source
	globals map[string]ast.Type
	funcs   map[string]*funcSig
	// externNames records which members of funcs came from an extern
	// declaration, purely so the main() check can reject an extern main.
	externNames map[string]bool
}

// Analyze validates prog against the type and control-flow rules of spec
// §4.3, returning the first violation found. src is used only to frame
// diagnostics with a source excerpt.
func Analyze(prog *ast.Program, src source.Source) error {
	a := &Analyzer{
		src:         src,
		globals:     make(map[string]ast.Type),
		funcs:       make(map[string]*funcSig),
		externNames: make(map[string]bool),
	}
	if err := a.collect(prog); err != nil {
		return err
	}
	if err := a.checkMain(); err != nil {
		return err
	}
	for _, decl := range prog.Globals {
		if err := a.checkGlobalDecl(decl); err != nil {
			return err
		}
	}
	for _, fn := range prog.Functions {
		if err := a.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

func isReserved(name string) bool {
	return name == "int" || name == "string"
}

func (a *Analyzer) semErr(message string, pos source.Position) error {
	return diag.NewSemanticError(message, pos, a.src)
}

func (a *Analyzer) checkNameAvailable(name string, pos source.Position) error {
	if isReserved(name) {
		return a.semErr("'"+name+"' is a reserved type name and cannot be used as an identifier", pos)
	}
	if _, ok := a.globals[name]; ok {
		return a.semErr("'"+name+"' is already declared as a global variable", pos)
	}
	if _, ok := a.funcs[name]; ok {
		return a.semErr("'"+name+"' is already declared as a function", pos)
	}
	return nil
}

// collect performs the forward-declaration pass: every global, function,
// and extern signature is registered before any initializer or body is
// type-checked, so declaration order in the source text never matters.
func (a *Analyzer) collect(prog *ast.Program) error {
	for _, decl := range prog.Globals {
		for _, v := range decl.Vars {
			if err := a.checkNameAvailable(v.Name, v.Pos); err != nil {
				return err
			}
			a.globals[v.Name] = decl.Type
		}
	}
	for _, ext := range prog.Externs {
		if err := a.checkNameAvailable(ext.Name, ext.Pos); err != nil {
			return err
		}
		a.funcs[ext.Name] = &funcSig{Params: paramTypes(ext.Params), Return: ext.ReturnType, Pos: ext.Pos}
		a.externNames[ext.Name] = true
	}
	for _, fn := range prog.Functions {
		if err := a.checkNameAvailable(fn.Name, fn.Pos); err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, p := range fn.Params {
			if isReserved(p.Name) {
				return a.semErr("'"+p.Name+"' is a reserved type name and cannot be used as a parameter name", p.Pos)
			}
			if seen[p.Name] {
				return a.semErr("duplicate parameter name '"+p.Name+"'", p.Pos)
			}
			seen[p.Name] = true
		}
		a.funcs[fn.Name] = &funcSig{Params: paramTypes(fn.Params), Return: fn.ReturnType, Pos: fn.Pos}
	}
	return nil
}

func paramTypes(params []ast.Param) []ast.Type {
	types := make([]ast.Type, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	return types
}

func (a *Analyzer) checkMain() error {
	sig, ok := a.funcs["main"]
	if !ok {
		return &diag.Error{Family: diag.Semantic, Message: "program defines no 'main' function"}
	}
	if a.externNames["main"] {
		return a.semErr("'main' cannot be declared extern", sig.Pos)
	}
	if len(sig.Params) != 0 {
		return a.semErr("'main' must take no parameters", sig.Pos)
	}
	if sig.Return != ast.Int {
		return a.semErr("'main' must return int", sig.Pos)
	}
	return nil
}

func (a *Analyzer) checkGlobalDecl(decl *ast.VariableDecl) error {
	for _, v := range decl.Vars {
		if v.Initial == nil {
			continue
		}
		t, err := a.checkExprIn(v.Initial, nil)
		if err != nil {
			return err
		}
		if valueOf(t) != fromSurface(decl.Type) {
			return a.semErr("cannot initialize global '"+v.Name+"' of type "+decl.Type.String()+" with a value of type "+valueOf(t).String(), v.Pos)
		}
	}
	return nil
}

// checkFunction type-checks one function body and enforces that every
// control-flow path ends in a return statement.
func (a *Analyzer) checkFunction(fn *ast.FunctionDecl) error {
	root := newScope(nil)
	for _, p := range fn.Params {
		root.define(p.Name, placeOf(fromSurface(p.Type)))
	}
	sc := &stmtChecker{a: a, returnType: fn.ReturnType}
	returns, err := sc.checkBlock(fn.Body, root)
	if err != nil {
		return err
	}
	if !returns {
		return a.semErr("function '"+fn.Name+"' does not return on every path", fn.Pos)
	}
	return nil
}

func (a *Analyzer) checkExprIn(e ast.Expression, sc *scope) (ExprType, error) {
	ec := &exprChecker{a: a, scope: sc}
	v, err := e.Accept(ec)
	if err != nil {
		return 0, err
	}
	return v.(ExprType), nil
}
