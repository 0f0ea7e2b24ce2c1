package desc

import (
	"fmt"
	"strings"

	"github.com/circuitforge/circuitsync/pkg/circuit"
)

// Compile lowers a parsed description into the canonical circuit
// model. References given as bare prefixes are numbered
// deterministically in declaration order; identical sub-circuit
// definitions instantiated more than once produce independent
// circuits.
func Compile(file *File) (*circuit.Circuit, error) {
	if err := Validate(file); err != nil {
		return nil, err
	}

	defs := make(map[string]*SubcircuitDecl)
	for _, st := range file.Stmts {
		if st.Subcircuit != nil {
			if _, dup := defs[st.Subcircuit.Name]; dup {
				return nil, fmt.Errorf("duplicate subcircuit definition %q", st.Subcircuit.Name)
			}
			defs[st.Subcircuit.Name] = st.Subcircuit
		}
	}

	var body []*SubStmt
	for _, st := range file.Stmts {
		body = append(body, &SubStmt{
			Component: st.Component,
			Net:       st.Net,
			Instance:  st.Instance,
		})
	}

	return compileScope(file.Name, body, nil, defs, make(map[string]bool))
}

// Load parses and compiles the description at path.
func Load(path string) (*circuit.Circuit, error) {
	file, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(file)
}

// compileScope builds one circuit namespace: the root body or one
// sub-circuit definition body. ports is nil for the root.
func compileScope(name string, body []*SubStmt, ports []string, defs map[string]*SubcircuitDecl, active map[string]bool) (*circuit.Circuit, error) {
	c := circuit.New(name)

	// First pass: components, with reference numbering.
	taken := make(map[string]bool)
	for _, st := range body {
		if st.Component != nil && hasDigit(st.Component.Ref) {
			taken[st.Component.Ref] = true
		}
	}

	for _, st := range body {
		decl := st.Component
		if decl == nil {
			continue
		}

		ref := decl.Ref
		if !hasDigit(ref) {
			ref = nextRef(ref, taken)
		} else if _, dup := c.ComponentByRef(ref); dup {
			return nil, fmt.Errorf("duplicate component reference %q", ref)
		}
		taken[ref] = true

		comp := &circuit.Component{
			Ref:   ref,
			LibID: decl.LibID,
			Props: make(map[string]string),
		}
		for _, p := range decl.Props {
			key := canonicalPropKey(p.Key)
			if key == "uuid" {
				comp.ID = circuit.ID(p.Value)
				continue
			}
			comp.Props[key] = p.Value
		}
		if comp.ID == "" {
			comp.ID = circuit.ProvisionalID(ref)
		}
		if err := c.AddComponent(comp); err != nil {
			return nil, err
		}
	}

	// Second pass: nets.
	for _, st := range body {
		decl := st.Net
		if decl == nil {
			continue
		}

		for _, pin := range decl.Pins {
			comp, ok := c.ComponentByRef(pin.Ref)
			if !ok {
				return nil, fmt.Errorf("net %q references unknown component %q", decl.Name, pin.Ref)
			}
			if _, err := c.Connect(decl.Name, true, circuit.Endpoint{Component: comp.ID, Pin: pin.Pin}); err != nil {
				return nil, fmt.Errorf("net %q: %w", decl.Name, err)
			}
		}
	}

	// Ports appear in the scope as nets even when no internal pin
	// uses them yet; an empty instance is valid.
	for _, port := range ports {
		if _, ok := c.NetByName(port); !ok {
			c.Nets = append(c.Nets, &circuit.Net{Name: port, Explicit: true})
		}
	}

	// Third pass: instances, each compiled into its own namespace.
	for _, st := range body {
		decl := st.Instance
		if decl == nil {
			continue
		}

		def, ok := defs[decl.Def]
		if !ok {
			return nil, fmt.Errorf("instance %q references unknown subcircuit %q", decl.Name, decl.Def)
		}
		if active[decl.Def] {
			return nil, fmt.Errorf("recursive instantiation of subcircuit %q", decl.Def)
		}

		portNames := portsOf(def)
		bindings := make(map[string]string)
		for _, b := range decl.Bindings {
			if !contains(portNames, b.Port) {
				return nil, fmt.Errorf("instance %q binds unknown port %q of %q", decl.Name, b.Port, decl.Def)
			}
			if _, ok := c.NetByName(b.Net); !ok {
				return nil, fmt.Errorf("instance %q binds port %q to unknown net %q", decl.Name, b.Port, b.Net)
			}
			bindings[b.Port] = b.Net
		}

		active[decl.Def] = true
		sub, err := compileScope(decl.Def, def.Body, portNames, defs, active)
		active[decl.Def] = false
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", decl.Name, err)
		}

		inst := &circuit.Instance{
			ID:         circuit.ProvisionalID("inst:" + decl.Name),
			Name:       decl.Name,
			Definition: decl.Def,
			Ports:      portNames,
			Bindings:   bindings,
			Circuit:    sub,
		}
		if err := c.AddInstance(inst); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// canonicalPropKey maps description property keys onto the document
// property names KiCad uses.
func canonicalPropKey(key string) string {
	switch strings.ToLower(key) {
	case "value":
		return "Value"
	case "footprint":
		return "Footprint"
	case "datasheet":
		return "Datasheet"
	case "uuid":
		return "uuid"
	}
	return key
}

func portsOf(def *SubcircuitDecl) []string {
	var out []string
	for _, st := range def.Body {
		if st.Port != nil {
			out = append(out, st.Port.Name)
		}
	}
	return out
}

func hasDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

// nextRef picks the lowest free number for a bare reference prefix.
func nextRef(prefix string, taken map[string]bool) string {
	for n := 1; ; n++ {
		ref := fmt.Sprintf("%s%d", prefix, n)
		if !taken[ref] {
			return ref
		}
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
