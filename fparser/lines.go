package fparser

import "strings"

// stmt is one logical statement: continuation lines joined, comments
// removed, lower-cased outside string literals.
type stmt struct {
	text string
	line int // first physical line
}

// statements splits free-form source into logical statements. Lines are
// joined on a trailing "&" (an optional leading "&" on the next line is
// dropped) and split on ";".
func statements(src string) []stmt {
	var out []stmt
	var buf strings.Builder
	start := 0
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(stripComment(raw))
		if buf.Len() > 0 {
			if line == "" {
				continue
			}
			line = strings.TrimPrefix(line, "&")
		} else {
			start = i + 1
		}
		if strings.HasSuffix(line, "&") {
			buf.WriteString(strings.TrimSuffix(line, "&"))
			buf.WriteString(" ")
			continue
		}
		buf.WriteString(line)
		joined := strings.TrimSpace(buf.String())
		buf.Reset()
		for _, part := range splitTopLevel(joined, ';') {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, stmt{text: lower(part), line: start})
			}
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		out = append(out, stmt{text: lower(rest), line: start})
	}
	return out
}

// stripComment removes a trailing "!" comment that is not inside a
// string literal.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '!':
			return line[:i]
		}
	}
	return line
}

// lower lower-cases everything outside string literals.
func lower(s string) string {
	b := []byte(s)
	var quote byte
	for i, c := range b {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c >= 'A' && c <= 'Z':
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// splitTopLevel splits s on sep outside parentheses and string literals.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

// matchParen returns the index of the parenthesis closing the one at
// s[open], or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
