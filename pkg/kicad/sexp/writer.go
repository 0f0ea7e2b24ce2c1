package sexp

import (
	"bytes"
	"strings"
)

// Serialize renders a document root with the codec's canonical
// layout, applied uniformly to every node:
//
//   - a list whose children are all atoms is written on one line
//   - any other list opens with its leading atoms, writes each
//     remaining child on its own line one tab deeper, and closes
//     with ")" on its own line
//   - strings are double-quoted with backslash escapes, symbols and
//     numbers are written with the exact text their atoms carry
//   - lines end with LF and the document ends with a newline
//
// Because parsing preserves atom text, Serialize(Parse(x)) == x for
// any x this codec produced.
func Serialize(root *List) []byte {
	var buf bytes.Buffer
	writeNode(&buf, root, 0)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// SerializeString is a convenience wrapper around Serialize.
func SerializeString(root *List) string {
	return string(Serialize(root))
}

func writeNode(buf *bytes.Buffer, n Node, depth int) {
	switch v := n.(type) {
	case *Atom:
		writeAtom(buf, v)
	case *List:
		if isInline(v) {
			writeInline(buf, v)
			return
		}
		writeMultiline(buf, v, depth)
	}
}

// isInline reports whether every child is an atom.
func isInline(l *List) bool {
	for _, c := range l.Children {
		if !c.IsAtom() {
			return false
		}
	}
	return true
}

func writeInline(buf *bytes.Buffer, l *List) {
	buf.WriteByte('(')
	for i, c := range l.Children {
		if i > 0 {
			buf.WriteByte(' ')
		}
		writeAtom(buf, c.(*Atom))
	}
	buf.WriteByte(')')
}

func writeMultiline(buf *bytes.Buffer, l *List, depth int) {
	buf.WriteByte('(')

	// Leading atoms stay on the opening line: (property "Reference" "R1"
	i := 0
	for ; i < len(l.Children); i++ {
		a, ok := l.Children[i].(*Atom)
		if !ok {
			break
		}
		if i > 0 {
			buf.WriteByte(' ')
		}
		writeAtom(buf, a)
	}

	for ; i < len(l.Children); i++ {
		buf.WriteByte('\n')
		indent(buf, depth+1)
		writeNode(buf, l.Children[i], depth+1)
	}

	buf.WriteByte('\n')
	indent(buf, depth)
	buf.WriteByte(')')
}

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteByte('\t')
	}
}

var stringEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"\"", "\\\"",
	"\n", "\\n",
	"\t", "\\t",
	"\r", "\\r",
)

func writeAtom(buf *bytes.Buffer, a *Atom) {
	if !a.Quoted {
		buf.WriteString(a.Raw)
		return
	}
	buf.WriteByte('"')
	stringEscaper.WriteString(buf, a.Raw)
	buf.WriteByte('"')
}
