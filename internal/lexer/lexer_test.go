package lexer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{`(seq a b)`, []string{"(", "seq", "a", "b", ")"}},
		{`(notify "hello world")`, []string{"(", "notify", `"hello world"`, ")"}},
		{`(calc "2+3*4")`, []string{"(", "calc", `"2+3*4"`, ")"}},
		{`(let ((x 1)) x)`, []string{"(", "let", "(", "(", "x", "1", ")", ")", "x", ")"}},
		{`(notify "say \"hi\"")`, []string{"(", "notify", `"say \"hi\""`, ")"}},
		{`(notify "parens (inside) kept")`, []string{"(", "notify", `"parens (inside) kept"`, ")"}},
		{`1 2.5 -3`, []string{"1", "2.5", "-3"}},
		{"", nil},
		{"   \n\t ", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.input)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
