package backend

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lumen/internal/ast"
)

// varScope chains block-local name bindings the way internal/sema's scope
// chains declared types, except each binding here is the alloca (or
// global) backing the place rather than just its type.
type varScope struct {
	vars   map[string]*irValue
	parent *varScope
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{vars: make(map[string]*irValue), parent: parent}
}

func (s *varScope) define(name string, v *irValue) {
	s.vars[name] = v
}

func lookupVar(s *varScope, name string) (*irValue, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// funcBuilder carries the LLVM function under construction and the block
// instructions are currently being appended to. cur moves forward as
// control-flow constructs open new blocks; it never moves backward.
type funcBuilder struct {
	c   *Context
	fn  *ir.Func
	cur *ir.Block
}

// truthy converts an i32 0/1-style boolean value (the representation used
// throughout this package — see VisitUnary's OpNot case) into the i1 a
// conditional branch requires.
func (fb *funcBuilder) truthy(v value.Value) value.Value {
	return fb.cur.NewICmp(enum.IPredNE, v, constant.NewInt(types.I32, 0))
}

func (fb *funcBuilder) lowerStringLiteral(s string) *irValue {
	name := fmt.Sprintf(".str.%d", fb.c.strCounter)
	fb.c.strCounter++
	data := append([]byte(s), 0)
	arr := types.NewArray(uint64(len(data)), types.I8)
	g := fb.c.mod.NewGlobalDef(name, constant.NewCharArrayFromString(string(data)))
	zero := constant.NewInt(types.I32, 0)
	ptr := fb.cur.NewGetElementPtr(arr, g, zero, zero)
	return valueOf(ptr, ast.String)
}

func (c *Context) defineFunction(fn *ast.FunctionDecl) error {
	f, ok := c.funcs[fn.Name]
	if !ok {
		return newCodeGenError("function '%s' was never declared", fn.Name)
	}
	entry := f.NewBlock("")
	fb := &funcBuilder{c: c, fn: f, cur: entry}
	root := newVarScope(nil)
	for i, p := range fn.Params {
		alloca := entry.NewAlloca(langType(p.Type))
		entry.NewStore(f.Params[i], alloca)
		root.define(p.Name, placeOf(alloca, p.Type))
	}
	if err := fb.lowerBlock(fn.Body, root); err != nil {
		return err
	}
	if fb.cur.Term == nil {
		return newCodeGenError("function '%s' fell through without a terminator", fn.Name)
	}
	return nil
}

func (fb *funcBuilder) lowerBlock(b *ast.Block, sc *varScope) error {
	inner := newVarScope(sc)
	for _, stmt := range b.Statements {
		if fb.cur.Term != nil {
			// Everything past a terminator is unreachable; sema's
			// return-coverage check never requires lowering it.
			break
		}
		if err := fb.lowerStatement(stmt, inner); err != nil {
			return err
		}
	}
	return nil
}

func (fb *funcBuilder) lowerStatement(stmt ast.Statement, sc *varScope) error {
	_, err := stmt.Accept(&stmtLowerer{fb: fb, scope: sc})
	return err
}

func (fb *funcBuilder) lowerExpr(e ast.Expression, sc *varScope) (*irValue, error) {
	v, err := e.Accept(&exprLowerer{fb: fb, scope: sc})
	if err != nil {
		return nil, err
	}
	return v.(*irValue), nil
}

// --- statements ---

type stmtLowerer struct {
	fb    *funcBuilder
	scope *varScope
}

func (l *stmtLowerer) VisitBlock(s *ast.Block) (any, error) {
	return nil, l.fb.lowerBlock(s, l.scope)
}

func (l *stmtLowerer) VisitVariableDecl(s *ast.VariableDecl) (any, error) {
	for _, vr := range s.Vars {
		alloca := l.fb.cur.NewAlloca(langType(s.Type))
		if vr.Initial != nil {
			val, err := l.fb.lowerExpr(vr.Initial, l.scope)
			if err != nil {
				return nil, err
			}
			l.fb.cur.NewStore(val.force(l.fb), alloca)
		} else {
			l.fb.cur.NewStore(zeroOf(langType(s.Type)), alloca)
		}
		l.scope.define(vr.Name, placeOf(alloca, s.Type))
	}
	return nil, nil
}

func (l *stmtLowerer) VisitAssignment(s *ast.AssignmentStatement) (any, error) {
	last := len(s.Parts) - 1
	val, err := l.fb.lowerExpr(s.Parts[last], l.scope)
	if err != nil {
		return nil, err
	}
	forced := val.force(l.fb)
	for _, target := range s.Parts[:last] {
		place, err := l.fb.lowerExpr(target, l.scope)
		if err != nil {
			return nil, err
		}
		addr, err := place.requirePlace()
		if err != nil {
			return nil, err
		}
		l.fb.cur.NewStore(forced, addr)
	}
	return nil, nil
}

func (l *stmtLowerer) VisitReturn(s *ast.ReturnStatement) (any, error) {
	val, err := l.fb.lowerExpr(s.Value, l.scope)
	if err != nil {
		return nil, err
	}
	l.fb.cur.NewRet(val.force(l.fb))
	return nil, nil
}

func (l *stmtLowerer) VisitExpressionStmt(s *ast.ExpressionStatement) (any, error) {
	_, err := l.fb.lowerExpr(s.Expr, l.scope)
	return nil, err
}

func (l *stmtLowerer) VisitIf(s *ast.IfStatement) (any, error) {
	fb := l.fb
	merge := fb.fn.NewBlock("")
	mergeReached := false
	for _, blk := range s.Blocks {
		cond, err := fb.lowerExpr(blk.Condition, l.scope)
		if err != nil {
			return nil, err
		}
		thenBlk := fb.fn.NewBlock("")
		nextBlk := fb.fn.NewBlock("")
		fb.cur.NewCondBr(fb.truthy(cond.force(fb)), thenBlk, nextBlk)
		fb.cur = thenBlk
		if err := fb.lowerBlock(blk.Body, l.scope); err != nil {
			return nil, err
		}
		if fb.cur.Term == nil {
			fb.cur.NewBr(merge)
			mergeReached = true
		}
		fb.cur = nextBlk
	}
	if s.Else != nil {
		if err := fb.lowerBlock(s.Else, l.scope); err != nil {
			return nil, err
		}
	}
	if fb.cur.Term == nil {
		fb.cur.NewBr(merge)
		mergeReached = true
	}
	if !mergeReached {
		// Every branch returned, so nothing can reach the merge block.
		merge.NewUnreachable()
	}
	fb.cur = merge
	return nil, nil
}

func (l *stmtLowerer) VisitFor(s *ast.ForStatement) (any, error) {
	fb := l.fb
	startV, err := fb.lowerExpr(s.Start, l.scope)
	if err != nil {
		return nil, err
	}
	endV, err := fb.lowerExpr(s.End, l.scope)
	if err != nil {
		return nil, err
	}
	var stepVal value.Value
	if s.Step != nil {
		sv, err := fb.lowerExpr(s.Step, l.scope)
		if err != nil {
			return nil, err
		}
		stepVal = sv.force(fb)
	} else {
		stepVal = constant.NewInt(types.I32, 1)
	}
	endVal := endV.force(fb)

	slot := fb.cur.NewAlloca(types.I32)
	fb.cur.NewStore(startV.force(fb), slot)
	inner := newVarScope(l.scope)
	inner.define(s.VarName, placeOf(slot, ast.Int))

	header := fb.fn.NewBlock("")
	body := fb.fn.NewBlock("")
	after := fb.fn.NewBlock("")

	fb.cur.NewBr(header)
	fb.cur = header
	cur := header.NewLoad(types.I32, slot)
	cond := header.NewICmp(enum.IPredSLT, cur, endVal)
	header.NewCondBr(cond, body, after)
	fb.cur = body
	if err := fb.lowerBlock(s.Body, inner); err != nil {
		return nil, err
	}
	if fb.cur.Term == nil {
		loaded := fb.cur.NewLoad(types.I32, slot)
		next := fb.cur.NewAdd(loaded, stepVal)
		fb.cur.NewStore(next, slot)
		fb.cur.NewBr(header)
	}
	fb.cur = after
	return nil, nil
}

func (l *stmtLowerer) VisitWhile(s *ast.WhileStatement) (any, error) {
	fb := l.fb
	header := fb.fn.NewBlock("")
	body := fb.fn.NewBlock("")
	after := fb.fn.NewBlock("")

	fb.cur.NewBr(header)
	fb.cur = header
	cond, err := fb.lowerExpr(s.Condition, l.scope)
	if err != nil {
		return nil, err
	}
	header.NewCondBr(fb.truthy(cond.force(fb)), body, after)
	fb.cur = body
	if err := fb.lowerBlock(s.Body, l.scope); err != nil {
		return nil, err
	}
	if fb.cur.Term == nil {
		fb.cur.NewBr(header)
	}
	fb.cur = after
	return nil, nil
}

// --- expressions ---

type exprLowerer struct {
	fb    *funcBuilder
	scope *varScope
}

func (l *exprLowerer) VisitIntConst(e *ast.IntConst) (any, error) {
	return valueOf(constant.NewInt(types.I32, int64(e.Value)), ast.Int), nil
}

func (l *exprLowerer) VisitStringConst(e *ast.StringConst) (any, error) {
	return l.fb.lowerStringLiteral(e.Value), nil
}

func (l *exprLowerer) VisitVariableRef(e *ast.VariableRef) (any, error) {
	if v, ok := lookupVar(l.scope, e.Name); ok {
		return v, nil
	}
	g, ok := l.fb.c.globals[e.Name]
	if !ok {
		return nil, newCodeGenError("unresolved identifier '%s'", e.Name)
	}
	return placeOf(g, l.fb.c.globalTypes[e.Name]), nil
}

func (l *exprLowerer) VisitCall(e *ast.FunctionCall) (any, error) {
	callee, ok := l.fb.c.funcs[e.Name]
	if !ok {
		return nil, newCodeGenError("unresolved function '%s'", e.Name)
	}
	args := make([]value.Value, len(e.Arguments))
	for i, arg := range e.Arguments {
		v, err := l.fb.lowerExpr(arg, l.scope)
		if err != nil {
			return nil, err
		}
		args[i] = v.force(l.fb)
	}
	result := l.fb.cur.NewCall(callee, args...)
	return valueOf(result, l.fb.c.funcReturnType[e.Name]), nil
}

func (l *exprLowerer) VisitIndex(e *ast.IndexExpression) (any, error) {
	base, err := l.fb.lowerExpr(e.Base, l.scope)
	if err != nil {
		return nil, err
	}
	idx, err := l.fb.lowerExpr(e.Index, l.scope)
	if err != nil {
		return nil, err
	}
	gep := l.fb.cur.NewGetElementPtr(types.I32, base.force(l.fb), idx.force(l.fb))
	return placeOf(gep, ast.Int), nil
}

func (l *exprLowerer) VisitUnary(e *ast.UnaryExpression) (any, error) {
	fb := l.fb
	switch e.Op {
	case ast.OpAddr:
		operand, err := fb.lowerExpr(e.Operand, l.scope)
		if err != nil {
			return nil, err
		}
		addr, err := operand.requirePlace()
		if err != nil {
			return nil, err
		}
		return valueOf(addr, ast.IntPointer), nil
	case ast.OpDeref:
		operand, err := fb.lowerExpr(e.Operand, l.scope)
		if err != nil {
			return nil, err
		}
		return placeOf(operand.force(fb), ast.Int), nil
	}

	operand, err := fb.lowerExpr(e.Operand, l.scope)
	if err != nil {
		return nil, err
	}
	v := operand.force(fb)
	switch e.Op {
	case ast.OpNeg:
		return valueOf(fb.cur.NewSub(constant.NewInt(types.I32, 0), v), ast.Int), nil
	case ast.OpBitNot:
		return valueOf(fb.cur.NewXor(v, constant.NewInt(types.I32, -1)), ast.Int), nil
	case ast.OpNot:
		isZero := fb.cur.NewICmp(enum.IPredEQ, v, constant.NewInt(types.I32, 0))
		return valueOf(fb.cur.NewZExt(isZero, types.I32), ast.Int), nil
	default:
		return nil, newCodeGenError("unhandled unary operator")
	}
}

func (l *exprLowerer) VisitBinary(e *ast.BinaryExpression) (any, error) {
	fb := l.fb
	left, err := fb.lowerExpr(e.Left, l.scope)
	if err != nil {
		return nil, err
	}
	right, err := fb.lowerExpr(e.Right, l.scope)
	if err != nil {
		return nil, err
	}

	lv, rv := left.force(fb), right.force(fb)

	switch e.Op {
	case ast.OpAdd:
		return valueOf(fb.cur.NewAdd(lv, rv), ast.Int), nil
	case ast.OpSub:
		return valueOf(fb.cur.NewSub(lv, rv), ast.Int), nil
	case ast.OpMul:
		return valueOf(fb.cur.NewMul(lv, rv), ast.Int), nil
	case ast.OpDiv:
		return valueOf(fb.cur.NewSDiv(lv, rv), ast.Int), nil
	case ast.OpMod:
		return valueOf(fb.cur.NewSRem(lv, rv), ast.Int), nil
	case ast.OpAnd:
		return valueOf(fb.cur.NewAnd(lv, rv), ast.Int), nil
	case ast.OpOr:
		return valueOf(fb.cur.NewOr(lv, rv), ast.Int), nil
	case ast.OpXor:
		return valueOf(fb.cur.NewXor(lv, rv), ast.Int), nil
	case ast.OpShl:
		return valueOf(fb.cur.NewShl(lv, rv), ast.Int), nil
	case ast.OpShr:
		return valueOf(fb.cur.NewAShr(lv, rv), ast.Int), nil
	case ast.OpBoolAnd:
		return valueOf(fb.cur.NewAnd(fb.normalizeBool(lv), fb.normalizeBool(rv)), ast.Int), nil
	case ast.OpBoolOr:
		return valueOf(fb.cur.NewOr(fb.normalizeBool(lv), fb.normalizeBool(rv)), ast.Int), nil
	case ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		return valueOf(fb.boolToInt(fb.cur.NewICmp(comparePred(e.Op), lv, rv)), ast.Int), nil
	case ast.OpEq, ast.OpNe:
		return valueOf(fb.boolToInt(fb.cur.NewICmp(comparePred(e.Op), lv, rv)), ast.Int), nil
	default:
		return nil, newCodeGenError("unhandled binary operator")
	}
}

func comparePred(op ast.BinaryOp) enum.IPred {
	switch op {
	case ast.OpLt:
		return enum.IPredSLT
	case ast.OpGt:
		return enum.IPredSGT
	case ast.OpLe:
		return enum.IPredSLE
	case ast.OpGe:
		return enum.IPredSGE
	case ast.OpEq:
		return enum.IPredEQ
	default:
		return enum.IPredNE
	}
}

// normalizeBool collapses any nonzero i32 to 1, matching the condition
// truthy test used for if/while (spec §9's leniency note), so that
// short-circuit-free && and || still only ever observe 0 or 1.
func (fb *funcBuilder) normalizeBool(v value.Value) value.Value {
	return fb.boolToInt(fb.cur.NewICmp(enum.IPredNE, v, constant.NewInt(types.I32, 0)))
}

func (fb *funcBuilder) boolToInt(cmp value.Value) value.Value {
	return fb.cur.NewZExt(cmp, types.I32)
}
