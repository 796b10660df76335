// Package diag implements the structured diagnostics shared by the lexer,
// parser, and semantic analyzer: a Position, a framed source excerpt, and a
// human-readable message (spec §7).
package diag

import (
	"fmt"
	"strings"

	"lumen/internal/source"
)

// Family partitions diagnostics the way the top-level driver needs to: by
// which stage produced them.
type Family string

const (
	Lexical   Family = "lexical error"
	Syntactic Family = "syntax error"
	Semantic  Family = "semantic error"
	CodeGen   Family = "code generation error"
	SourceIO  Family = "source error"
)

// Error is the one error shape used across every stage that can point at
// source text. SourceIO diagnostics carry no Position and no excerpt.
type Error struct {
	Family  Family
	Message string
	Pos     source.Position
	HasPos  bool
	Excerpt string // the offending source line, or "" if unavailable
}

func (e *Error) Error() string {
	if !e.HasPos {
		return fmt.Sprintf("%s: %s", e.Family, e.Message)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Line %d column %d: %s\n", e.Pos.Line, e.Pos.Column, e.Message)
	if e.Excerpt != "" {
		sb.WriteString(e.Excerpt)
		sb.WriteByte('\n')
		col := e.Pos.Column
		if col < 1 {
			col = 1
		}
		sb.WriteString(strings.Repeat(" ", col-1))
		sb.WriteByte('^')
	}
	return sb.String()
}

func newPositioned(family Family, message string, pos source.Position, src source.Source) *Error {
	e := &Error{Family: family, Message: message, Pos: pos, HasPos: true}
	if src != nil {
		lines := src.GetLines(pos.Line, pos.Line+1)
		if len(lines) == 1 {
			e.Excerpt = lines[0]
		}
	}
	return e
}

func NewLexError(message string, pos source.Position, src source.Source) *Error {
	return newPositioned(Lexical, message, pos, src)
}

func NewSyntaxError(message string, pos source.Position, src source.Source) *Error {
	return newPositioned(Syntactic, message, pos, src)
}

func NewSemanticError(message string, pos source.Position, src source.Source) *Error {
	return newPositioned(Semantic, message, pos, src)
}

func NewCodeGenError(message string) *Error {
	return &Error{Family: CodeGen, Message: message}
}

func NewSourceError(message string) *Error {
	return &Error{Family: SourceIO, Message: message}
}
