// Package desc implements the textual circuit description language.
// A description names components, nets, sub-circuit definitions and
// their instantiations; it carries no layout. The compiler lowers a
// parsed description into the canonical circuit model.
package desc

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// descLexer defines the lexical structure of description files.
var descLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `[0-9]+`},

	{Name: "Punct", Pattern: `[{}=.]`},
})

// File is the root of a parsed description.
type File struct {
	Name  string  `parser:"'circuit' @String"`
	Stmts []*Stmt `parser:"@@*"`
}

// Stmt is one top-level statement.
type Stmt struct {
	Component  *ComponentDecl  `parser:"  @@"`
	Net        *NetDecl        `parser:"| @@"`
	Subcircuit *SubcircuitDecl `parser:"| @@"`
	Instance   *InstanceDecl   `parser:"| @@"`
}

// ComponentDecl declares one component. The reference may be a bare
// prefix ("R"), in which case the compiler numbers it.
type ComponentDecl struct {
	Ref   string      `parser:"'component' @Ident"`
	LibID string      `parser:"@String"`
	Props []*PropDecl `parser:"('{' @@* '}')?"`
}

// PropDecl is one key/value property of a component.
type PropDecl struct {
	Key   string `parser:"@Ident '='"`
	Value string `parser:"@String"`
}

// NetDecl declares a named net over component pins.
type NetDecl struct {
	Name string    `parser:"'net' (@Ident | @String)"`
	Pins []*PinRef `parser:"'{' @@* '}'"`
}

// PinRef names one endpoint as reference.pin.
type PinRef struct {
	Ref string `parser:"@Ident '.'"`
	Pin string `parser:"(@Ident | @Number)"`
}

func (p *PinRef) String() string { return p.Ref + "." + p.Pin }

// SubcircuitDecl defines a reusable sub-circuit with a boundary
// interface of named ports.
type SubcircuitDecl struct {
	Name string     `parser:"'subcircuit' @Ident"`
	Body []*SubStmt `parser:"'{' @@* '}'"`
}

// SubStmt is one statement inside a sub-circuit definition.
type SubStmt struct {
	Port      *PortDecl      `parser:"  @@"`
	Component *ComponentDecl `parser:"| @@"`
	Net       *NetDecl       `parser:"| @@"`
	Instance  *InstanceDecl  `parser:"| @@"`
}

// PortDecl declares one boundary interface name.
type PortDecl struct {
	Name string `parser:"'port' (@Ident | @String)"`
}

// InstanceDecl instantiates a sub-circuit definition, binding its
// ports to nets of the enclosing scope.
type InstanceDecl struct {
	Name     string         `parser:"'instance' @Ident"`
	Def      string         `parser:"@Ident"`
	Bindings []*BindingDecl `parser:"('{' @@* '}')?"`
}

// BindingDecl binds one port to a net of the enclosing scope.
type BindingDecl struct {
	Port string `parser:"(@Ident | @String) '='"`
	Net  string `parser:"(@Ident | @String)"`
}

var descParser = participle.MustBuild[File](
	participle.Lexer(descLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Parse parses a description from a reader.
func Parse(r io.Reader) (*File, error) {
	file, err := descParser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return file, nil
}

// ParseString parses a description from a string.
func ParseString(input string) (*File, error) {
	file, err := descParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return file, nil
}

// ParseFile parses the description at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}
