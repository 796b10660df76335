package lexer

import (
	"testing"

	"lumen/internal/source"
	"lumen/internal/token"
)

func scanAll(t *testing.T, input string) []token.Token {
	l := New(source.FromString(input))
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("scanning %q: unexpected error: %v", input, err)
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestSingleTokenKinds(t *testing.T) {
	tests := []struct {
		lexeme string
		kind   token.Kind
	}{
		{"identifier", token.IDENT},
		{"42", token.INT},
		{`"hi"`, token.STRING},
		{"fn", token.FN},
		{"for", token.FOR},
		{"in", token.IN},
		{"while", token.WHILE},
		{"if", token.IF},
		{"elif", token.ELIF},
		{"else", token.ELSE},
		{"return", token.RETURN},
		{"let", token.LET},
		{"extern", token.EXTERN},
		{"+", token.PLUS},
		{"-", token.MINUS},
		{"*", token.STAR},
		{"/", token.SLASH},
		{"%", token.PERCENT},
		{"^", token.CARET},
		{"~", token.TILDE},
		{"&", token.AMP},
		{"|", token.PIPE},
		{"<<", token.LSHIFT},
		{">>", token.RSHIFT},
		{"&&", token.AND},
		{"||", token.OR},
		{"!", token.NOT},
		{"=", token.ASSIGN},
		{"==", token.EQ},
		{"!=", token.NEQ},
		{"<", token.LT},
		{">", token.GT},
		{"<=", token.LE},
		{">=", token.GE},
		{"->", token.ARROW},
		{"..", token.DOTDOT},
		{"(", token.LPAREN},
		{")", token.RPAREN},
		{"[", token.LBRACKET},
		{"]", token.RBRACKET},
		{"{", token.LBRACE},
		{"}", token.RBRACE},
		{":", token.COLON},
		{";", token.SEMI},
		{",", token.COMMA},
	}
	for _, tt := range tests {
		toks := scanAll(t, tt.lexeme)
		if len(toks) != 2 {
			t.Fatalf("%q: expected [token, EOF], got %v", tt.lexeme, toks)
		}
		if toks[0].Kind != tt.kind {
			t.Errorf("%q: expected kind %v, got %v", tt.lexeme, tt.kind, toks[0].Kind)
		}
		if toks[1].Kind != token.EOF {
			t.Errorf("%q: expected EOF after token, got %v", tt.lexeme, toks[1].Kind)
		}
	}
}

func TestMaximalMunch(t *testing.T) {
	tests := []struct {
		input string
		kinds []token.Kind
	}{
		{"<=", []token.Kind{token.LE}},
		{"<", []token.Kind{token.LT}},
		{"&&", []token.Kind{token.AND}},
		{"&", []token.Kind{token.AMP}},
		{"||", []token.Kind{token.OR}},
		{"|", []token.Kind{token.PIPE}},
		{"..", []token.Kind{token.DOTDOT}},
		{"->", []token.Kind{token.ARROW}},
		{">>", []token.Kind{token.RSHIFT}},
		{">", []token.Kind{token.GT}},
		{"<<", []token.Kind{token.LSHIFT}},
		{"==", []token.Kind{token.EQ}},
		{">=", []token.Kind{token.GE}},
		{"!=", []token.Kind{token.NEQ}},
	}
	for _, tt := range tests {
		toks := scanAll(t, tt.input)
		if len(toks) != len(tt.kinds)+1 {
			t.Fatalf("%q: expected %d tokens plus EOF, got %v", tt.input, len(tt.kinds), toks)
		}
		for i, k := range tt.kinds {
			if toks[i].Kind != k {
				t.Errorf("%q: token %d: expected %v, got %v", tt.input, i, k, toks[i].Kind)
			}
		}
	}
}

func TestWhitespaceAndCommentsAreTransparent(t *testing.T) {
	a := scanAll(t, "a+b")
	b := scanAll(t, "  a   +\tb  # trailing comment\n")
	if len(a) != len(b) {
		t.Fatalf("token counts differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i].Kind != b[i].Kind {
			t.Errorf("token %d kind differs: %v vs %v", i, a[i].Kind, b[i].Kind)
		}
	}
}

func TestIntOverflowIsAnError(t *testing.T) {
	l := New(source.FromString("99999999999999"))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an overflow error, got none")
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(source.FromString(`"a\nb\tc\\d"`))
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a\nb\tc\\d"
	if tok.StringValue != want {
		t.Errorf("got %q, want %q", tok.StringValue, want)
	}
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	l := New(source.FromString(`"unterminated`))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error for unterminated string literal")
	}
}

func TestLoneDotIsAnError(t *testing.T) {
	l := New(source.FromString("."))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error for a lone '.'")
	}
}

func TestUnrecognisedCharacter(t *testing.T) {
	l := New(source.FromString("@"))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error for an unrecognised character")
	}
}
