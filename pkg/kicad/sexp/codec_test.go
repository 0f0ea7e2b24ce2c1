package sexp

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBasicTree(t *testing.T) {
	input := `(kicad_sch
		(version 20231120)
		(generator "eeschema")
		(symbol (lib_id "Device:R")
			(at 100 50 0)
			(property "Reference" "R1")
		)
	)`

	root, err := ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if root.Name() != "kicad_sch" {
		t.Errorf("Expected root 'kicad_sch', got %q", root.Name())
	}

	ver, ok := root.Find("version")
	if !ok {
		t.Fatal("Missing version node")
	}
	v, err := ver.IntAt(1)
	if err != nil || v != 20231120 {
		t.Errorf("Expected version 20231120, got %d (%v)", v, err)
	}

	gen, ok := root.GetString("generator", 1)
	if !ok || gen != "eeschema" {
		t.Errorf("Expected generator 'eeschema', got %q", gen)
	}

	sym, ok := root.Find("symbol")
	if !ok {
		t.Fatal("Missing symbol node")
	}
	at, ok := sym.Find("at")
	if !ok {
		t.Fatal("Missing at node")
	}
	x, _ := at.FloatAt(1)
	y, _ := at.FloatAt(2)
	if x != 100 || y != 50 {
		t.Errorf("Expected position (100, 50), got (%v, %v)", x, y)
	}
}

func TestParsePreservesNumericText(t *testing.T) {
	root, err := ParseString("(at 12.700000 -0.50 3.0)")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	for i, want := range []string{"12.700000", "-0.50", "3.0"} {
		got, err := root.StringAt(i + 1)
		if err != nil {
			t.Fatalf("StringAt(%d): %v", i+1, err)
		}
		if got != want {
			t.Errorf("Atom %d: expected raw text %q, got %q", i+1, want, got)
		}
	}
}

func TestParseQuotedStrings(t *testing.T) {
	root, err := ParseString(`(property "Ref with \"quotes\"" "line1\nline2")`)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	key, _ := root.StringAt(1)
	if key != `Ref with "quotes"` {
		t.Errorf("Bad escaped quote decode: %q", key)
	}
	val, _ := root.StringAt(2)
	if val != "line1\nline2" {
		t.Errorf("Bad newline escape decode: %q", val)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"unclosed", "(kicad_sch (version 1)"},
		{"stray close", ")"},
		{"trailing", "(a)(b)"},
		{"unterminated string", `(a "oops`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.input)
			if err == nil {
				t.Fatal("Expected parse error, got nil")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestParseErrorLocation(t *testing.T) {
	_, err := ParseString("(a\n  (b\n")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ParseError, got %v", err)
	}
	if perr.Line != 2 {
		t.Errorf("Expected error on line 2, got line %d", perr.Line)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	root := NewList("kicad_sch",
		NewList("version", Int(20231120)),
		NewList("generator", Str("circuitsync")),
		NewList("symbol",
			NewList("lib_id", Str("Device:R")),
			NewList("at", Num(100), Num(50), Num(0)),
			NewList("property", Str("Reference"), Str("R1"),
				NewList("at", Num(100), Num(45), Num(0)),
			),
		),
	)

	out := Serialize(root)

	reparsed, err := ParseBytes(out)
	if err != nil {
		t.Fatalf("Failed to reparse serialized output: %v", err)
	}

	again := Serialize(reparsed)
	if string(out) != string(again) {
		t.Errorf("Serialize(Parse(x)) != x:\n--- first ---\n%s\n--- second ---\n%s", out, again)
	}
}

func TestSerializeCanonicalLayout(t *testing.T) {
	root := NewList("kicad_sch",
		NewList("version", Int(1)),
		NewList("wire",
			NewList("pts", NewList("xy", Num(1), Num(2)), NewList("xy", Num(3), Num(4))),
		),
	)

	got := SerializeString(root)
	want := "(kicad_sch\n" +
		"\t(version 1)\n" +
		"\t(wire\n" +
		"\t\t(pts\n" +
		"\t\t\t(xy 1 2)\n" +
		"\t\t\t(xy 3 4)\n" +
		"\t\t)\n" +
		"\t)\n" +
		")\n"
	if got != want {
		t.Errorf("Canonical layout mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestSerializePreservesUnknownNodes(t *testing.T) {
	input := "(kicad_sch\n" +
		"\t(version 1)\n" +
		"\t(future_element \"anything\"\n" +
		"\t\t(nested 1 2 3)\n" +
		"\t)\n" +
		")\n"

	root, err := ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if got := SerializeString(root); got != input {
		t.Errorf("Unknown node not preserved byte-for-byte:\n--- got ---\n%s\n--- want ---\n%s", got, input)
	}
}

func TestNumFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{2.54, "2.54"},
		{100, "100"},
		{-0.5, "-0.5"},
		{1.0000004, "1"},
		{12.3456789, "12.345679"},
	}
	for _, tc := range cases {
		if got := Num(tc.in).Raw; got != tc.want {
			t.Errorf("Num(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestListMutators(t *testing.T) {
	l := NewList("symbol", NewList("at", Num(0), Num(0)))

	uuid := NewList("uuid", Str("abc"))
	l.Append(uuid)
	if _, ok := l.Find("uuid"); !ok {
		t.Error("Append: uuid not found")
	}

	if !l.Remove(uuid) {
		t.Error("Remove returned false for present child")
	}
	if _, ok := l.Find("uuid"); ok {
		t.Error("Remove: uuid still present")
	}

	l.InsertAt(1, NewList("lib_id", Str("Device:R")))
	if l.Name() != "symbol" {
		t.Errorf("InsertAt corrupted name: %q", l.Name())
	}
	if sub, ok := l.Find("lib_id"); !ok || l.IndexOf(sub) != 1 {
		t.Error("InsertAt: lib_id not at index 1")
	}
}

func TestParseFileStreams(t *testing.T) {
	// Large flat input exercises the buffered lexer path.
	var sb strings.Builder
	sb.WriteString("(root\n")
	for i := 0; i < 5000; i++ {
		sb.WriteString("\t(xy 1.25 -3.75)\n")
	}
	sb.WriteString(")\n")

	root, err := ParseString(sb.String())
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if got := len(root.FindAll("xy")); got != 5000 {
		t.Errorf("Expected 5000 xy nodes, got %d", got)
	}
}
