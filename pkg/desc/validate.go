package desc

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	refPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	libIDPattern = regexp.MustCompile(`^[^:\s]+:[^:\s]+$`)
)

// Validate checks a parsed description for structural problems before
// compilation: well-formed references, library identifiers and net
// names. Semantic checks (unknown components, double-connected pins,
// unknown ports) happen during compilation where scope is known.
func Validate(file *File) error {
	if err := validation.ValidateStruct(file,
		validation.Field(&file.Name, validation.Required, validation.Length(1, 128)),
	); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}

	for _, st := range file.Stmts {
		if err := validateStmt(st.Component, st.Net, st.Instance); err != nil {
			return err
		}
		if st.Subcircuit != nil {
			if err := validateSubcircuit(st.Subcircuit); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSubcircuit(def *SubcircuitDecl) error {
	if err := validation.Validate(def.Name,
		validation.Required, validation.Match(refPattern),
	); err != nil {
		return fmt.Errorf("subcircuit %q: %w", def.Name, err)
	}

	seen := make(map[string]bool)
	for _, st := range def.Body {
		if st.Port != nil {
			if err := validation.Validate(st.Port.Name, validation.Required, validation.Length(1, 64)); err != nil {
				return fmt.Errorf("subcircuit %q port: %w", def.Name, err)
			}
			if seen[st.Port.Name] {
				return fmt.Errorf("subcircuit %q: duplicate port %q", def.Name, st.Port.Name)
			}
			seen[st.Port.Name] = true
		}
		if err := validateStmt(st.Component, st.Net, st.Instance); err != nil {
			return fmt.Errorf("subcircuit %q: %w", def.Name, err)
		}
	}
	return nil
}

func validateStmt(comp *ComponentDecl, net *NetDecl, inst *InstanceDecl) error {
	if comp != nil {
		if err := validation.ValidateStruct(comp,
			validation.Field(&comp.Ref, validation.Required, validation.Match(refPattern)),
			validation.Field(&comp.LibID, validation.Required, validation.Match(libIDPattern)),
		); err != nil {
			return fmt.Errorf("component %q: %w", comp.Ref, err)
		}
		for _, p := range comp.Props {
			if err := validation.Validate(p.Key, validation.Required, validation.Match(refPattern)); err != nil {
				return fmt.Errorf("component %q property: %w", comp.Ref, err)
			}
		}
	}

	if net != nil {
		if err := validation.ValidateStruct(net,
			validation.Field(&net.Name, validation.Required, validation.Length(1, 64)),
		); err != nil {
			return fmt.Errorf("net %q: %w", net.Name, err)
		}
		for _, pin := range net.Pins {
			if err := validation.Validate(pin.Pin, validation.Required); err != nil {
				return fmt.Errorf("net %q pin %s: %w", net.Name, pin, err)
			}
		}
	}

	if inst != nil {
		if err := validation.ValidateStruct(inst,
			validation.Field(&inst.Name, validation.Required, validation.Match(refPattern)),
			validation.Field(&inst.Def, validation.Required, validation.Match(refPattern)),
		); err != nil {
			return fmt.Errorf("instance %q: %w", inst.Name, err)
		}
	}

	return nil
}
