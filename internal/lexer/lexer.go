package lexer

import "regexp"

// A single pass splits the surface text into double-quoted string literals
// (escaped quotes stay inside the token), parentheses, and unbroken runs of
// anything that is not whitespace or a paren. Interior whitespace and parens
// inside a quoted literal never break the token.
var tokenPattern = regexp.MustCompile(`"(?:\\"|[^"])*"|\(|\)|[^\s()]+`)

func Tokenize(input string) []string {
	return tokenPattern.FindAllString(input, -1)
}
