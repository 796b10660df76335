// Package sema implements the semantic analyzer: the value/place type
// lattice, symbol resolution, operator typing, and return-coverage
// analysis that together validate a parsed ast.Program before it reaches
// the backend (spec §4.3).
package sema

import "lumen/internal/ast"

// ExprType is the semantic layer's richer lattice over ast.Type. Every
// surface type additionally has a "place" flavor — the type an expression
// has when it names a storage location that can be assigned to or have its
// address taken — plus a transient Bool flavor that only ever appears as
// the result of a comparison or logical operator and can never be stored
// in a variable.
type ExprType int

const (
	TInt ExprType = iota
	TString
	TIntPointer
	TIntRef
	TStringRef
	TIntPointerRef
	TBool
)

func (t ExprType) String() string {
	switch t {
	case TInt:
		return "int"
	case TString:
		return "string"
	case TIntPointer:
		return "int*"
	case TIntRef:
		return "int (place)"
	case TStringRef:
		return "string (place)"
	case TIntPointerRef:
		return "int* (place)"
	case TBool:
		return "bool"
	default:
		return "?"
	}
}

// isPlace reports whether t names an addressable storage location — the
// flavor a bare variable reference, a pointer dereference, or an index
// expression always carries.
func isPlace(t ExprType) bool {
	switch t {
	case TIntRef, TStringRef, TIntPointerRef:
		return true
	default:
		return false
	}
}

// valueOf strips the place flavor off t, leaving the value type that
// every binary/unary operator and function argument actually checks
// against. It is the identity on types that are already values.
func valueOf(t ExprType) ExprType {
	switch t {
	case TIntRef:
		return TInt
	case TStringRef:
		return TString
	case TIntPointerRef:
		return TIntPointer
	default:
		return t
	}
}

// placeOf returns the place flavor of a value type — the type a variable
// of that surface type has whenever it is referred to by name.
func placeOf(t ExprType) ExprType {
	switch t {
	case TInt:
		return TIntRef
	case TString:
		return TStringRef
	case TIntPointer:
		return TIntPointerRef
	default:
		return t
	}
}

// fromSurface converts a parsed ast.Type into its value ExprType.
func fromSurface(t ast.Type) ExprType {
	switch t {
	case ast.Int:
		return TInt
	case ast.String:
		return TString
	case ast.IntPointer:
		return TIntPointer
	default:
		return TInt
	}
}

// isConditionCompatible reports whether t may stand as the condition of an
// `if` or `while`. Besides an actual Bool (the result of a comparison or
// `&&`/`||`/`!`), a bare Int or int place is accepted and treated as a
// C-style nonzero test — the original implementation never required users
// to spell `!= 0`, and spec.md is silent on the point, so that leniency is
// kept.
func isConditionCompatible(t ExprType) bool {
	switch t {
	case TBool, TInt, TIntRef:
		return true
	default:
		return false
	}
}
