// Package sexp implements the document codec for KiCad's nested
// parenthesized file format. The parse tree preserves every atom's
// original text (numbers keep the exact decimal text they were read
// with), and the writer applies one fixed canonical layout, so any
// document this codec emitted round-trips byte-for-byte. Unknown node
// kinds pass through as opaque subtrees.
package sexp

import (
	"fmt"
	"math"
	"strconv"
)

// Node is a single element of the parse tree: either an *Atom or a *List.
type Node interface {
	// IsAtom reports whether the node is an atom (leaf).
	IsAtom() bool
}

// Atom is a leaf token. Raw holds the decoded text; Quoted records
// whether the token was (and will be) written as a quoted string.
type Atom struct {
	Raw    string
	Quoted bool

	// Line and Col are 1-based source coordinates, zero for
	// constructed atoms.
	Line, Col int
}

func (a *Atom) IsAtom() bool { return true }

// List is an interior node holding an ordered sequence of children.
// The first child is conventionally a symbol naming the node kind.
type List struct {
	Children []Node

	Line, Col int
}

func (l *List) IsAtom() bool { return false }

// Sym returns an unquoted symbol atom.
func Sym(s string) *Atom { return &Atom{Raw: s} }

// Str returns a quoted string atom.
func Str(s string) *Atom { return &Atom{Raw: s, Quoted: true} }

// Int returns a numeric atom for an integer value.
func Int(v int) *Atom { return &Atom{Raw: strconv.Itoa(v)} }

// Num returns a numeric atom. Values are rounded to six decimal
// places and trailing zeros are trimmed, matching KiCad's own output
// precision for millimeter coordinates.
func Num(v float64) *Atom {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // avoid -0
	}
	return &Atom{Raw: strconv.FormatFloat(r, 'f', -1, 64)}
}

// NewList builds a list node from a leading symbol and children.
func NewList(name string, children ...Node) *List {
	l := &List{Children: make([]Node, 0, len(children)+1)}
	l.Children = append(l.Children, Sym(name))
	l.Children = append(l.Children, children...)
	return l
}

// Name returns the leading symbol of the list, or "" if the list is
// empty or starts with something other than a bare symbol.
func (l *List) Name() string {
	if len(l.Children) == 0 {
		return ""
	}
	if a, ok := l.Children[0].(*Atom); ok && !a.Quoted {
		return a.Raw
	}
	return ""
}

// Len returns the number of children.
func (l *List) Len() int { return len(l.Children) }

// At returns the child at index i, or nil when out of range.
func (l *List) At(i int) Node {
	if i < 0 || i >= len(l.Children) {
		return nil
	}
	return l.Children[i]
}

// Find returns the first child list named key.
func (l *List) Find(key string) (*List, bool) {
	for _, c := range l.Children {
		if sub, ok := c.(*List); ok && sub.Name() == key {
			return sub, true
		}
	}
	return nil, false
}

// FindAll returns every child list named key, in document order.
func (l *List) FindAll(key string) []*List {
	var out []*List
	for _, c := range l.Children {
		if sub, ok := c.(*List); ok && sub.Name() == key {
			out = append(out, sub)
		}
	}
	return out
}

// HasFlag reports whether the list contains the bare symbol sym
// among its children, e.g. "hide" in (effects ... hide).
func (l *List) HasFlag(sym string) bool {
	for _, c := range l.Children[min(1, len(l.Children)):] {
		if a, ok := c.(*Atom); ok && !a.Quoted && a.Raw == sym {
			return true
		}
	}
	return false
}

// StringAt returns the decoded text of the atom at index i.
func (l *List) StringAt(i int) (string, error) {
	a, ok := l.At(i).(*Atom)
	if !ok {
		return "", fmt.Errorf("index %d of (%s ...): expected atom", i, l.Name())
	}
	return a.Raw, nil
}

// FloatAt parses the atom at index i as a decimal number.
func (l *List) FloatAt(i int) (float64, error) {
	s, err := l.StringAt(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("index %d of (%s ...): bad number %q", i, l.Name(), s)
	}
	return v, nil
}

// IntAt parses the atom at index i as an integer.
func (l *List) IntAt(i int) (int, error) {
	s, err := l.StringAt(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("index %d of (%s ...): bad integer %q", i, l.Name(), s)
	}
	return v, nil
}

// GetString returns element idx of the first child list named key.
func (l *List) GetString(key string, idx int) (string, bool) {
	sub, ok := l.Find(key)
	if !ok {
		return "", false
	}
	s, err := sub.StringAt(idx)
	if err != nil {
		return "", false
	}
	return s, true
}

// Append adds children to the end of the list.
func (l *List) Append(nodes ...Node) {
	l.Children = append(l.Children, nodes...)
}

// InsertAt inserts a node at index i, clamped to the valid range.
func (l *List) InsertAt(i int, n Node) {
	if i < 0 {
		i = 0
	}
	if i > len(l.Children) {
		i = len(l.Children)
	}
	l.Children = append(l.Children, nil)
	copy(l.Children[i+1:], l.Children[i:])
	l.Children[i] = n
}

// IndexOf returns the index of the exact child node, or -1.
func (l *List) IndexOf(n Node) int {
	for i, c := range l.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Remove deletes the exact child node, reporting whether it was found.
func (l *List) Remove(n Node) bool {
	i := l.IndexOf(n)
	if i < 0 {
		return false
	}
	l.Children = append(l.Children[:i], l.Children[i+1:]...)
	return true
}

// SetString replaces the atom at index i with a quoted string,
// extending the list if needed.
func (l *List) SetString(i int, s string) {
	for len(l.Children) <= i {
		l.Children = append(l.Children, Str(""))
	}
	l.Children[i] = Str(s)
}

// Clone returns a deep copy of the node.
func Clone(n Node) Node {
	switch v := n.(type) {
	case *Atom:
		c := *v
		return &c
	case *List:
		c := &List{Children: make([]Node, len(v.Children))}
		for i, child := range v.Children {
			c.Children[i] = Clone(child)
		}
		return c
	}
	return nil
}
