package codegen

import (
	"fmt"
	"strings"
)

// maxFortranLine is the free-form source line limit.
const maxFortranLine = 132

// codeWriter manages indented output for one artifact.
type codeWriter struct {
	sb     strings.Builder
	indent int
	unit   string // one indentation level
	// wrap, when set, breaks long lines with free-form continuations.
	wrap bool
}

func newFortranWriter() *codeWriter { return &codeWriter{unit: "    ", wrap: true} }
func newCWriter() *codeWriter       { return &codeWriter{unit: "    "} }

// Linef writes an indented, formatted line with a trailing newline.
func (w *codeWriter) Linef(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if line == "" {
		w.sb.WriteString("\n")
		return
	}
	prefix := strings.Repeat(w.unit, w.indent)
	if !w.wrap || len(prefix)+len(line) <= maxFortranLine {
		w.sb.WriteString(prefix + line + "\n")
		return
	}
	for _, part := range splitContinuation(line, maxFortranLine-len(prefix)-2) {
		w.sb.WriteString(prefix + part + "\n")
	}
}

// splitContinuation breaks line after commas so every piece fits in width,
// marking all but the last piece with a trailing "&" and indenting the
// continuation lines with a leading "&".
func splitContinuation(line string, width int) []string {
	var out []string
	for len(line) > width {
		cut := strings.LastIndex(line[:width], ", ")
		if cut <= 0 {
			break
		}
		out = append(out, line[:cut+1]+" &")
		line = "    & " + strings.TrimLeft(line[cut+1:], " ")
	}
	return append(out, line)
}

// Lines writes each line at the current indentation.
func (w *codeWriter) Lines(lines []string) {
	for _, l := range lines {
		w.Linef("%s", l)
	}
}

// Raw writes unindented text directly to the buffer.
func (w *codeWriter) Raw(s string) {
	w.sb.WriteString(s)
}

// Indent increases the indentation level.
func (w *codeWriter) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *codeWriter) Dedent() { w.indent-- }

// String returns the accumulated output.
func (w *codeWriter) String() string { return w.sb.String() }
