// Package parser implements the single-token-lookahead recursive-descent
// parser with precedence climbing described in spec §4.2. Internal parse
// errors are raised by panic(*diag.Error) and recovered at the ParseProgram
// boundary — this is a purely local backtracking-free control-flow
// mechanism, not a public error-handling strategy (spec §9 Design Notes,
// item 5: stage boundaries return error).
package parser

import (
	"fmt"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/lexer"
	"lumen/internal/source"
	"lumen/internal/token"
)

type Parser struct {
	lex *lexer.Lexer
	src source.Source
	cur token.Token
}

// ParseProgram scans and parses src in full, returning the first syntax
// (or lexical) error encountered.
func ParseProgram(src source.Source) (prog *ast.Program, err error) {
	p := &Parser{lex: lexer.New(src), src: src}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	p.advance()
	prog = p.parseProgram()
	return prog, nil
}

func (p *Parser) advance() {
	tok, err := p.lex.Next()
	if err != nil {
		panic(err)
	}
	p.cur = tok
}

func (p *Parser) syntaxErrorf(format string, args ...any) {
	panic(diag.NewSyntaxError(fmt.Sprintf(format, args...), p.cur.Pos, p.src))
}

// expect verifies the current token's kind without consuming it.
func (p *Parser) expect(kinds ...token.Kind) {
	for _, k := range kinds {
		if p.cur.Kind == k {
			return
		}
	}
	p.syntaxErrorf("unexpected token %s, expected %s", p.cur, kindList(kinds))
}

// eat expects kind, consumes it, and returns the consumed token.
func (p *Parser) eat(kind token.Kind) token.Token {
	p.expect(kind)
	tok := p.cur
	p.advance()
	return tok
}

func kindList(kinds []token.Kind) string {
	if len(kinds) == 1 {
		return kinds[0].String()
	}
	s := "one of "
	for i, k := range kinds {
		if i > 0 {
			s += ", "
		}
		s += k.String()
	}
	return s
}

// --- Top level ---

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		switch p.cur.Kind {
		case token.FN:
			prog.Functions = append(prog.Functions, p.parseFunctionDecl())
		case token.LET:
			prog.Globals = append(prog.Globals, p.parseVariableDecl())
		case token.EXTERN:
			prog.Externs = append(prog.Externs, p.parseExternDecl())
		default:
			p.syntaxErrorf("expected a function, variable, or extern declaration, got %s", p.cur)
		}
	}
	return prog
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	pos := p.cur.Pos
	p.eat(token.FN)
	name := p.eat(token.IDENT).StringValue
	p.eat(token.LPAREN)
	params := p.parseParamList()
	p.eat(token.RPAREN)
	p.eat(token.ARROW)
	retType := p.parseType()
	body := p.parseBlock()
	return &ast.FunctionDecl{Pos: pos, Name: name, ReturnType: retType, Params: params, Body: body}
}

func (p *Parser) parseExternDecl() *ast.ExternFunctionDecl {
	pos := p.cur.Pos
	p.eat(token.EXTERN)
	p.eat(token.FN)
	name := p.eat(token.IDENT).StringValue
	p.eat(token.LPAREN)
	params := p.parseParamList()
	p.eat(token.RPAREN)
	p.eat(token.ARROW)
	retType := p.parseType()
	p.eat(token.SEMI)
	return &ast.ExternFunctionDecl{Pos: pos, Name: name, ReturnType: retType, Params: params}
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	if p.cur.Kind != token.IDENT {
		return params
	}
	params = append(params, p.parseParam())
	for p.cur.Kind == token.COMMA {
		p.advance()
		params = append(params, p.parseParam())
	}
	return params
}

func (p *Parser) parseParam() ast.Param {
	pos := p.cur.Pos
	name := p.eat(token.IDENT).StringValue
	p.eat(token.COLON)
	typ := p.parseType()
	return ast.Param{Name: name, Type: typ, Pos: pos}
}

func (p *Parser) parseType() ast.Type {
	pos := p.cur.Pos
	name := p.eat(token.IDENT).StringValue
	switch name {
	case "int":
		if p.cur.Kind == token.STAR {
			p.advance()
			return ast.IntPointer
		}
		return ast.Int
	case "string":
		return ast.String
	default:
		panic(diag.NewSyntaxError("invalid type '"+name+"'", pos, p.src))
	}
}

// parseVariableDecl parses `let a [= expr] {, b [= expr]} : Type ;` and is
// used for both top-level globals and local `let` statements — the grammar
// is identical in either position (spec §6 EBNF).
func (p *Parser) parseVariableDecl() *ast.VariableDecl {
	p.eat(token.LET)
	vars := []ast.VarInit{p.parseVarInit()}
	for p.cur.Kind == token.COMMA {
		p.advance()
		vars = append(vars, p.parseVarInit())
	}
	p.eat(token.COLON)
	typ := p.parseType()
	p.eat(token.SEMI)
	return &ast.VariableDecl{Vars: vars, Type: typ}
}

func (p *Parser) parseVarInit() ast.VarInit {
	pos := p.cur.Pos
	p.expect(token.IDENT)
	name := p.cur.StringValue
	p.advance()
	p.expect(token.ASSIGN, token.COMMA, token.COLON)
	var init ast.Expression
	if p.cur.Kind == token.ASSIGN {
		p.advance()
		init = p.parseExpr()
	}
	return ast.VarInit{Name: name, Pos: pos, Initial: init}
}

// --- Statements ---

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Kind {
	case token.LET:
		return p.parseVariableDecl()
	case token.IF:
		return p.parseIfStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	default:
		return p.parseAssignOrExprStatement()
	}
}

func (p *Parser) parseBlock() *ast.Block {
	p.eat(token.LBRACE)
	var stmts []ast.Statement
	for p.cur.Kind != token.RBRACE {
		stmts = append(stmts, p.parseStatement())
	}
	p.eat(token.RBRACE)
	return &ast.Block{Statements: stmts}
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	p.eat(token.IF)
	cond := p.parseExpr()
	body := p.parseBlock()
	stmt := &ast.IfStatement{Blocks: []ast.ConditionalBlock{{Condition: cond, Body: body}}}
	for p.cur.Kind == token.ELIF {
		p.advance()
		c := p.parseExpr()
		b := p.parseBlock()
		stmt.Blocks = append(stmt.Blocks, ast.ConditionalBlock{Condition: c, Body: b})
	}
	if p.cur.Kind == token.ELSE {
		p.advance()
		stmt.Else = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseForStatement() *ast.ForStatement {
	p.eat(token.FOR)
	varTok := p.eat(token.IDENT)
	p.eat(token.IN)
	start := p.parseExpr()
	p.eat(token.DOTDOT)
	end := p.parseExpr()
	var step ast.Expression
	if p.cur.Kind == token.DOTDOT {
		p.advance()
		step = p.parseExpr()
	}
	body := p.parseBlock()
	return &ast.ForStatement{
		VarName: varTok.StringValue, VarPos: varTok.Pos,
		Start: start, End: end, Step: step, Body: body,
	}
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	p.eat(token.WHILE)
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.WhileStatement{Condition: cond, Body: body}
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	pos := p.cur.Pos
	p.eat(token.RETURN)
	val := p.parseExpr()
	p.eat(token.SEMI)
	return &ast.ReturnStatement{Pos: pos, Value: val}
}

// parseAssignOrExprStatement implements spec §4.2's parse-AssignStatement:
// a Conditional expression, either terminated by `;` (an ExpressionStatement)
// or chained by further `=`-separated Conditional expressions, yielding the
// n-ary assignment `a = b = c = value;`.
func (p *Parser) parseAssignOrExprStatement() ast.Statement {
	first := p.parseExpr()
	switch p.cur.Kind {
	case token.SEMI:
		p.advance()
		return &ast.ExpressionStatement{Expr: first}
	case token.ASSIGN:
		parts := []ast.Expression{first}
		for p.cur.Kind == token.ASSIGN {
			p.advance()
			parts = append(parts, p.parseExpr())
		}
		p.eat(token.SEMI)
		return &ast.AssignmentStatement{Parts: parts}
	default:
		p.syntaxErrorf("expected ';' or '=' after expression, got %s", p.cur)
		return nil
	}
}

// --- Expressions: precedence climbing (spec §4.2 table) ---

func (p *Parser) parseExpr() ast.Expression {
	return p.parseConditional()
}

func (p *Parser) parseConditional() ast.Expression {
	left := p.parseUnaryLogical()
	for p.cur.IsBooleanBinary() {
		op, pos := binaryOpFromToken(p.cur)
		p.advance()
		right := p.parseUnaryLogical()
		left = &ast.BinaryExpression{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnaryLogical() ast.Expression {
	if p.cur.Kind == token.NOT {
		pos := p.cur.Pos
		p.advance()
		operand := p.parseLogical()
		return &ast.UnaryExpression{Pos: pos, Op: ast.OpNot, Operand: operand}
	}
	return p.parseLogical()
}

func (p *Parser) parseLogical() ast.Expression {
	left := p.parseArithmetical()
	for p.cur.IsCompare() {
		op, pos := binaryOpFromToken(p.cur)
		p.advance()
		right := p.parseArithmetical()
		left = &ast.BinaryExpression{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseArithmetical() ast.Expression {
	left := p.parseAdditive()
	for p.cur.IsBitwise() {
		op, pos := binaryOpFromToken(p.cur)
		p.advance()
		right := p.parseAdditive()
		left = &ast.BinaryExpression{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.cur.IsAdditive() {
		op, pos := binaryOpFromToken(p.cur)
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpression{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.cur.IsMultiplicative() {
		op, pos := binaryOpFromToken(p.cur)
		p.advance()
		right := p.parseUnary()
		left = &ast.BinaryExpression{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

// parseUnary collects the stacked prefixes `& * ~ -` by right-fold
// recursion: each recursive call consumes one prefix, so the innermost
// (last-scanned) prefix is applied first and the outermost last, exactly
// matching the explicit push/pop stack in spec §9's description of the
// original implementation.
func (p *Parser) parseUnary() ast.Expression {
	if p.cur.IsUnary() {
		op, pos := unaryOpFromToken(p.cur)
		p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpression{Pos: pos, Op: op, Operand: operand}
	}
	return p.parseFactorWithIndex()
}

func (p *Parser) parseFactorWithIndex() ast.Expression {
	node := p.parseFactor()
	if p.cur.Kind == token.LBRACKET {
		pos := p.cur.Pos
		p.advance()
		index := p.parseExpr()
		p.eat(token.RBRACKET)
		node = &ast.IndexExpression{Pos: pos, Base: node, Index: index}
	}
	return node
}

func (p *Parser) parseFactor() ast.Expression {
	switch p.cur.Kind {
	case token.INT:
		tok := p.cur
		p.advance()
		return &ast.IntConst{Pos: tok.Pos, Value: tok.IntValue}
	case token.STRING:
		tok := p.cur
		p.advance()
		return &ast.StringConst{Pos: tok.Pos, Value: tok.StringValue}
	case token.IDENT:
		tok := p.cur
		p.advance()
		if p.cur.Kind == token.LPAREN {
			p.advance()
			args := p.parseArgList()
			p.eat(token.RPAREN)
			return &ast.FunctionCall{Pos: tok.Pos, Name: tok.StringValue, Arguments: args}
		}
		return &ast.VariableRef{Pos: tok.Pos, Name: tok.StringValue}
	case token.LPAREN:
		p.advance()
		expr := p.parseExpr()
		p.eat(token.RPAREN)
		return expr
	default:
		p.syntaxErrorf("unexpected token %s in expression", p.cur)
		return nil
	}
}

func (p *Parser) parseArgList() []ast.Expression {
	var args []ast.Expression
	if p.cur.Kind == token.RPAREN {
		return args
	}
	args = append(args, p.parseExpr())
	for p.cur.Kind == token.COMMA {
		p.advance()
		args = append(args, p.parseExpr())
	}
	return args
}

func binaryOpFromToken(t token.Token) (ast.BinaryOp, source.Position) {
	op, ok := map[token.Kind]ast.BinaryOp{
		token.PLUS: ast.OpAdd, token.MINUS: ast.OpSub,
		token.STAR: ast.OpMul, token.SLASH: ast.OpDiv, token.PERCENT: ast.OpMod,
		token.AMP: ast.OpAnd, token.PIPE: ast.OpOr, token.CARET: ast.OpXor,
		token.LSHIFT: ast.OpShl, token.RSHIFT: ast.OpShr,
		token.LT: ast.OpLt, token.GT: ast.OpGt, token.LE: ast.OpLe, token.GE: ast.OpGe,
		token.EQ: ast.OpEq, token.NEQ: ast.OpNe,
		token.AND: ast.OpBoolAnd, token.OR: ast.OpBoolOr,
	}[t.Kind]
	if !ok {
		panic(fmt.Sprintf("parser: %v is not a binary operator", t.Kind))
	}
	return op, t.Pos
}

func unaryOpFromToken(t token.Token) (ast.UnaryOp, source.Position) {
	op, ok := map[token.Kind]ast.UnaryOp{
		token.MINUS: ast.OpNeg, token.TILDE: ast.OpBitNot,
		token.AMP: ast.OpAddr, token.STAR: ast.OpDeref,
	}[t.Kind]
	if !ok {
		panic(fmt.Sprintf("parser: %v is not a unary operator", t.Kind))
	}
	return op, t.Pos
}
