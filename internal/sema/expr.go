package sema

import (
	"strconv"

	"lumen/internal/ast"
)

// exprChecker implements ast.ExprVisitor, returning each node's ExprType
// (boxed in any, per the visitor interface) or the first type error found
// underneath it.
type exprChecker struct {
	a     *Analyzer
	scope *scope
}

func (c *exprChecker) lookup(name string) (ExprType, bool) {
	if c.scope != nil {
		if t, ok := c.scope.lookup(name); ok {
			return t, true
		}
	}
	if t, ok := c.a.globals[name]; ok {
		return placeOf(fromSurface(t)), true
	}
	return 0, false
}

func (c *exprChecker) check(e ast.Expression) (ExprType, error) {
	v, err := e.Accept(c)
	if err != nil {
		return 0, err
	}
	return v.(ExprType), nil
}

func (c *exprChecker) VisitVariableRef(e *ast.VariableRef) (any, error) {
	t, ok := c.lookup(e.Name)
	if !ok {
		return nil, c.a.semErr("undeclared identifier '"+e.Name+"'", e.Pos)
	}
	return t, nil
}

func (c *exprChecker) VisitIntConst(e *ast.IntConst) (any, error) {
	return TInt, nil
}

func (c *exprChecker) VisitStringConst(e *ast.StringConst) (any, error) {
	return TString, nil
}

func (c *exprChecker) VisitCall(e *ast.FunctionCall) (any, error) {
	sig, ok := c.a.funcs[e.Name]
	if !ok {
		return nil, c.a.semErr("call to undeclared function '"+e.Name+"'", e.Pos)
	}
	if len(e.Arguments) != len(sig.Params) {
		return nil, c.a.semErr("'"+e.Name+"' expects "+strconv.Itoa(len(sig.Params))+" argument(s), got "+strconv.Itoa(len(e.Arguments)), e.Pos)
	}
	for i, arg := range e.Arguments {
		t, err := c.check(arg)
		if err != nil {
			return nil, err
		}
		want := fromSurface(sig.Params[i])
		if valueOf(t) != want {
			return nil, c.a.semErr("argument "+strconv.Itoa(i+1)+" to '"+e.Name+"' must be "+want.String()+", got "+valueOf(t).String(), arg.Position())
		}
	}
	return fromSurface(sig.Return), nil
}

func (c *exprChecker) VisitIndex(e *ast.IndexExpression) (any, error) {
	base, err := c.check(e.Base)
	if err != nil {
		return nil, err
	}
	if base != TIntPointer && base != TIntPointerRef && base != TStringRef {
		return nil, c.a.semErr("cannot index a value of type "+valueOf(base).String()+" (only int* or string supports indexing)", e.Base.Position())
	}
	idx, err := c.check(e.Index)
	if err != nil {
		return nil, err
	}
	if valueOf(idx) != TInt {
		return nil, c.a.semErr("index expression must be int, got "+valueOf(idx).String(), e.Index.Position())
	}
	return TIntRef, nil
}

func (c *exprChecker) VisitUnary(e *ast.UnaryExpression) (any, error) {
	operand, err := c.check(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpAddr:
		if !isPlace(operand) || valueOf(operand) != TInt {
			return nil, c.a.semErr("'&' requires an addressable int, got "+operand.String(), e.Pos)
		}
		return TIntPointer, nil
	case ast.OpDeref:
		if operand != TIntPointer && operand != TIntPointerRef && operand != TStringRef {
			return nil, c.a.semErr("'*' requires an int* or string, got "+operand.String(), e.Pos)
		}
		return TIntRef, nil
	case ast.OpNeg, ast.OpBitNot:
		if valueOf(operand) != TInt {
			return nil, c.a.semErr(unaryOpName(e.Op)+" requires int, got "+valueOf(operand).String(), e.Pos)
		}
		return TInt, nil
	case ast.OpNot:
		if operand != TBool {
			return nil, c.a.semErr("'!' requires bool, got "+operand.String(), e.Pos)
		}
		return TBool, nil
	default:
		return nil, c.a.semErr("internal: unhandled unary operator", e.Pos)
	}
}

func (c *exprChecker) VisitBinary(e *ast.BinaryExpression) (any, error) {
	lt, err := c.check(e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := c.check(e.Right)
	if err != nil {
		return nil, err
	}
	l, r := valueOf(lt), valueOf(rt)
	switch e.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod,
		ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpShl, ast.OpShr:
		if l != TInt || r != TInt {
			return nil, c.a.semErr(binaryOpName(e.Op)+" requires two ints, got "+l.String()+" and "+r.String(), e.Pos)
		}
		return TInt, nil
	case ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe, ast.OpEq, ast.OpNe:
		if l != TInt || r != TInt {
			return nil, c.a.semErr(binaryOpName(e.Op)+" requires two ints, got "+l.String()+" and "+r.String(), e.Pos)
		}
		return TBool, nil
	case ast.OpBoolAnd, ast.OpBoolOr:
		if l != TBool || r != TBool {
			return nil, c.a.semErr(binaryOpName(e.Op)+" requires two bools, got "+l.String()+" and "+r.String(), e.Pos)
		}
		return TBool, nil
	default:
		return nil, c.a.semErr("internal: unhandled binary operator", e.Pos)
	}
}

func unaryOpName(op ast.UnaryOp) string {
	switch op {
	case ast.OpNeg:
		return "unary '-'"
	case ast.OpBitNot:
		return "'~'"
	case ast.OpAddr:
		return "'&'"
	case ast.OpDeref:
		return "'*'"
	case ast.OpNot:
		return "'!'"
	default:
		return "operator"
	}
}

func binaryOpName(op ast.BinaryOp) string {
	names := map[ast.BinaryOp]string{
		ast.OpAdd: "'+'", ast.OpSub: "'-'", ast.OpMul: "'*'", ast.OpDiv: "'/'", ast.OpMod: "'%'",
		ast.OpAnd: "'&'", ast.OpOr: "'|'", ast.OpXor: "'^'", ast.OpShl: "'<<'", ast.OpShr: "'>>'",
		ast.OpLt: "'<'", ast.OpGt: "'>'", ast.OpLe: "'<='", ast.OpGe: "'>='",
		ast.OpEq: "'=='", ast.OpNe: "'!='", ast.OpBoolAnd: "'&&'", ast.OpBoolOr: "'||'",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "operator"
}
