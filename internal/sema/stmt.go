package sema

import "lumen/internal/ast"

// stmtChecker implements ast.StmtVisitor. Each Visit method returns (bool,
// error) boxed in any: the bool reports whether every control-flow path
// through the statement ends in a return, which is exactly the property
// checkFunction needs to enforce spec §4.3's return-coverage rule.
type stmtChecker struct {
	a          *Analyzer
	returnType ast.Type
}

func (c *stmtChecker) checkExpr(e ast.Expression, sc *scope) (ExprType, error) {
	return c.a.checkExprIn(e, sc)
}

func (c *stmtChecker) checkBlock(b *ast.Block, sc *scope) (bool, error) {
	inner := newScope(sc)
	returns := false
	for _, stmt := range b.Statements {
		r, err := c.checkStatement(stmt, inner)
		if err != nil {
			return false, err
		}
		if r {
			returns = true
		}
	}
	return returns, nil
}

func (c *stmtChecker) checkStatement(stmt ast.Statement, sc *scope) (bool, error) {
	v, err := stmt.Accept(&stmtVisit{c: c, scope: sc})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// stmtVisit threads the enclosing scope through to each Visit method — it
// exists separately from stmtChecker because ast.StmtVisitor's methods
// take no scope parameter of their own.
type stmtVisit struct {
	c     *stmtChecker
	scope *scope
}

func (v *stmtVisit) VisitBlock(s *ast.Block) (any, error) {
	r, err := v.c.checkBlock(s, v.scope)
	return r, err
}

func (v *stmtVisit) VisitVariableDecl(s *ast.VariableDecl) (any, error) {
	for _, vr := range s.Vars {
		if isReserved(vr.Name) {
			return false, v.c.a.semErr("'"+vr.Name+"' is a reserved type name and cannot be used as an identifier", vr.Pos)
		}
		if v.scope.declaredInThisBlock(vr.Name) {
			return false, v.c.a.semErr("'"+vr.Name+"' is already declared in this block", vr.Pos)
		}
		if vr.Initial != nil {
			t, err := v.c.checkExpr(vr.Initial, v.scope)
			if err != nil {
				return false, err
			}
			want := fromSurface(s.Type)
			if valueOf(t) != want {
				return false, v.c.a.semErr("cannot initialize '"+vr.Name+"' of type "+s.Type.String()+" with a value of type "+valueOf(t).String(), vr.Pos)
			}
		}
		v.scope.define(vr.Name, placeOf(fromSurface(s.Type)))
	}
	return false, nil
}

func (v *stmtVisit) VisitAssignment(s *ast.AssignmentStatement) (any, error) {
	last := s.Parts[len(s.Parts)-1]
	valType, err := v.c.checkExpr(last, v.scope)
	if err != nil {
		return false, err
	}
	want := valueOf(valType)
	for _, target := range s.Parts[:len(s.Parts)-1] {
		t, err := v.c.checkExpr(target, v.scope)
		if err != nil {
			return false, err
		}
		if !isPlace(t) {
			return false, v.c.a.semErr("left-hand side of '=' must be an addressable place", target.Position())
		}
		if valueOf(t) != want {
			return false, v.c.a.semErr("cannot assign a value of type "+want.String()+" to a place of type "+valueOf(t).String(), target.Position())
		}
	}
	return false, nil
}

func (v *stmtVisit) VisitReturn(s *ast.ReturnStatement) (any, error) {
	t, err := v.c.checkExpr(s.Value, v.scope)
	if err != nil {
		return false, err
	}
	want := fromSurface(v.c.returnType)
	if valueOf(t) != want {
		return false, v.c.a.semErr("function returns "+v.c.returnType.String()+", got "+valueOf(t).String(), s.Pos)
	}
	return true, nil
}

func (v *stmtVisit) VisitExpressionStmt(s *ast.ExpressionStatement) (any, error) {
	_, err := v.c.checkExpr(s.Expr, v.scope)
	return false, err
}

func (v *stmtVisit) VisitIf(s *ast.IfStatement) (any, error) {
	allReturn := true
	for _, blk := range s.Blocks {
		t, err := v.c.checkExpr(blk.Condition, v.scope)
		if err != nil {
			return false, err
		}
		if !isConditionCompatible(t) {
			return false, v.c.a.semErr("if/elif condition must be bool or int, got "+t.String(), blk.Condition.Position())
		}
		r, err := v.c.checkBlock(blk.Body, v.scope)
		if err != nil {
			return false, err
		}
		allReturn = allReturn && r
	}
	if s.Else == nil {
		return false, nil
	}
	r, err := v.c.checkBlock(s.Else, v.scope)
	if err != nil {
		return false, err
	}
	return allReturn && r, nil
}

func (v *stmtVisit) VisitFor(s *ast.ForStatement) (any, error) {
	start, err := v.c.checkExpr(s.Start, v.scope)
	if err != nil {
		return false, err
	}
	if valueOf(start) != TInt {
		return false, v.c.a.semErr("for-loop range start must be int, got "+valueOf(start).String(), s.Start.Position())
	}
	end, err := v.c.checkExpr(s.End, v.scope)
	if err != nil {
		return false, err
	}
	if valueOf(end) != TInt {
		return false, v.c.a.semErr("for-loop range end must be int, got "+valueOf(end).String(), s.End.Position())
	}
	if s.Step != nil {
		step, err := v.c.checkExpr(s.Step, v.scope)
		if err != nil {
			return false, err
		}
		if valueOf(step) != TInt {
			return false, v.c.a.semErr("for-loop step must be int, got "+valueOf(step).String(), s.Step.Position())
		}
	}
	inner := newScope(v.scope)
	if isReserved(s.VarName) {
		return false, v.c.a.semErr("'"+s.VarName+"' is a reserved type name and cannot be used as an identifier", s.VarPos)
	}
	inner.define(s.VarName, placeOf(TInt))
	// A for-loop's range may be empty, so it can never guarantee a return.
	if _, err := v.c.checkBlock(s.Body, inner); err != nil {
		return false, err
	}
	return false, nil
}

func (v *stmtVisit) VisitWhile(s *ast.WhileStatement) (any, error) {
	t, err := v.c.checkExpr(s.Condition, v.scope)
	if err != nil {
		return false, err
	}
	if !isConditionCompatible(t) {
		return false, v.c.a.semErr("while condition must be bool or int, got "+t.String(), s.Condition.Position())
	}
	// A while-loop's body may execute zero times, so it can never
	// guarantee a return even if every path inside it does.
	if _, err := v.c.checkBlock(s.Body, v.scope); err != nil {
		return false, err
	}
	return false, nil
}
