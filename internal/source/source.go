// Package source implements the buffered character stream that feeds the
// lexer and carries enough of the original text to frame diagnostics.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Position identifies the first character of a token or AST node.
type Position struct {
	Offset int // characters read so far, this one included (a rune count, not bytes)
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("line %d column %d", p.Line, p.Column)
}

// Source is a character stream with Position tracking and the ability to
// slice previously-seen text for diagnostics. Implementations advance one
// character at a time; Next returns false once the stream is exhausted.
type Source interface {
	// Next advances the stream and returns the next character. The second
	// return value is false at end of stream.
	Next() (rune, bool)
	// Position returns the Position of the character most recently
	// returned by Next (or the zero Position before the first call).
	Position() Position
	// InputBetween returns the text after the character at start up to and
	// including the character at end, bounded by their Offsets.
	InputBetween(start, end Position) string
	// GetLines returns the source lines whose 1-based line numbers lie in
	// [from, to).
	GetLines(from, to int) []string
}

// buffered is the shared implementation behind all three Source
// constructors: every character ever produced is retained so that
// InputBetween and GetLines can serve diagnostics after the fact, even for
// a stream (standard input) that cannot be rewound.
type buffered struct {
	text     []rune
	lineHead []int // byte offset (rune index) of the start of each line; 1-based, lineHead[0] unused
	pos      Position
}

func newBuffered(text []rune) *buffered {
	lineHead := []int{0, 0} // lineHead[0] unused, lineHead[1] == 0
	for i, ch := range text {
		if ch == '\n' {
			lineHead = append(lineHead, i+1)
		}
	}
	return &buffered{text: text, lineHead: lineHead}
}

func (b *buffered) Next() (rune, bool) {
	if b.pos.Offset >= len(b.text) {
		return 0, false
	}
	ch := b.text[b.pos.Offset]
	b.pos.Offset++
	if b.pos.Line == 0 {
		b.pos.Line = 1
		b.pos.Column = 1
	} else if b.text[b.pos.Offset-2] == '\n' {
		// The previous character ended a line, so this one starts the next.
		b.pos.Line++
		b.pos.Column = 1
	} else {
		b.pos.Column++
	}
	return ch, true
}

func (b *buffered) Position() Position {
	return b.pos
}

func (b *buffered) InputBetween(start, end Position) string {
	lo, hi := start.Offset, end.Offset
	if lo < 0 {
		lo = 0
	}
	if hi > len(b.text) {
		hi = len(b.text)
	}
	if lo >= hi {
		return ""
	}
	return string(b.text[lo:hi])
}

func (b *buffered) GetLines(from, to int) []string {
	var lines []string
	for n := from; n < to; n++ {
		lines = append(lines, b.line(n))
	}
	return lines
}

func (b *buffered) line(n int) string {
	if n < 1 || n >= len(b.lineHead) {
		return ""
	}
	start := b.lineHead[n]
	end := len(b.text)
	if n+1 < len(b.lineHead) {
		end = b.lineHead[n+1]
	}
	return strings.TrimRight(string(b.text[start:end]), "\n")
}

// FromFile reads the entire file at path and returns a Source over it.
func FromFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: cannot read %s: %w", path, err)
	}
	return newBuffered([]rune(string(data))), nil
}

// FromStdin captures all of standard input up front so that diagnostics can
// still quote it after the stream has been fully consumed.
func FromStdin() (Source, error) {
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return nil, fmt.Errorf("source: cannot read standard input: %w", err)
	}
	return newBuffered([]rune(string(data))), nil
}

// FromString builds an in-memory Source, primarily for tests.
func FromString(text string) Source {
	return newBuffered([]rune(text))
}
