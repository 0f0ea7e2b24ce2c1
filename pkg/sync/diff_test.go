package sync

import (
	"errors"
	"testing"

	"github.com/circuitforge/circuitsync/pkg/circuit"
)

func comp(id, ref, libID string, pins ...string) *circuit.Component {
	c := &circuit.Component{ID: circuit.ID(id), Ref: ref, LibID: libID, Props: map[string]string{}}
	for _, p := range pins {
		c.Pins = append(c.Pins, circuit.Pin{Number: p, Type: "passive"})
	}
	return c
}

func findEdit(t *testing.T, plan *Plan, ref string) ComponentEdit {
	t.Helper()
	for _, e := range plan.Components {
		if (e.Desired != nil && e.Desired.Ref == ref) || (e.Desired == nil && e.Current.Ref == ref) {
			return e
		}
	}
	t.Fatalf("No edit for %q", ref)
	return ComponentEdit{}
}

func TestDiffMatchByIdentity(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))

	desired := circuit.New("des")
	// Renumbered and revalued, same persisted identity.
	d := comp("uuid-1", "R7", "Device:R", "1", "2")
	d.Props["Value"] = "47k"
	desired.AddComponent(d)

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}

	e := findEdit(t, plan, "R7")
	if e.Op != OpUpdate {
		t.Fatalf("Expected Update, got %v", e.Op)
	}
	if e.NewRef != "R7" {
		t.Errorf("Expected rename to R7, got %q", e.NewRef)
	}
	if e.PropPatch["Value"] != "47k" {
		t.Errorf("Expected Value patch, got %v", e.PropPatch)
	}
	if got := plan.IDMap["uuid-1"]; got != "uuid-1" {
		t.Errorf("Identity not preserved: %q", got)
	}
}

func TestDiffRenumberIsUpdateNotAddRemove(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))

	desired := circuit.New("des")
	desired.AddComponent(comp("uuid-1", "R2", "Device:R", "1", "2"))

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(plan.Components) != 1 || plan.Components[0].Op != OpUpdate {
		t.Fatalf("Expected a single Update, got %+v", plan.Components)
	}
}

func TestDiffFirstGenerationMatchByReference(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))
	current.AddComponent(comp("uuid-2", "R2", "Device:R", "1", "2"))

	desired := circuit.New("des")
	desired.AddComponent(comp("new:R1", "R1", "Device:R", "1", "2"))
	desired.AddComponent(comp("new:R2", "R2", "Device:R", "1", "2"))

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}

	if plan.IDMap["new:R1"] != "uuid-1" || plan.IDMap["new:R2"] != "uuid-2" {
		t.Errorf("Bad identity resolution: %v", plan.IDMap)
	}
	for _, e := range plan.Components {
		if e.Op != OpKeep {
			t.Errorf("Expected Keep for %s, got %v", e.Desired.Ref, e.Op)
		}
	}
}

func TestDiffPinSignatureLastResort(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "Rsense", "Device:R", "1", "2"))

	desired := circuit.New("des")
	// Reference changed with no persisted identity: only the pin
	// signature still matches.
	desired.AddComponent(comp("new:R1", "R1", "Device:R", "1", "2"))

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	e := findEdit(t, plan, "R1")
	if e.Op != OpUpdate {
		t.Fatalf("Expected Update via pin signature, got %v", e.Op)
	}
	if plan.IDMap["new:R1"] != "uuid-1" {
		t.Errorf("Identity not matched: %v", plan.IDMap)
	}
}

func TestDiffTieBreakDeterministic(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-b", "R10", "Device:R", "1", "2"))
	current.AddComponent(comp("uuid-a", "R2", "Device:R", "1", "2"))

	desired := circuit.New("des")
	desired.AddComponent(comp("new:R1", "R1", "Device:R", "1", "2"))

	for range 10 {
		plan, err := Diff(current, desired)
		if err != nil {
			t.Fatalf("Failed to diff: %v", err)
		}
		// Natural reference order: R2 before R10.
		if plan.IDMap["new:R1"] != "uuid-a" {
			t.Fatalf("Tie-break not deterministic: %v", plan.IDMap)
		}
	}
}

func TestDiffIdentityConflict(t *testing.T) {
	desired := circuit.New("des")
	desired.Components = append(desired.Components,
		comp("uuid-1", "R1", "Device:R", "1", "2"),
		comp("uuid-1", "R2", "Device:R", "1", "2"),
	)

	_, err := Diff(circuit.New("cur"), desired)
	var conflict *IdentityConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected IdentityConflictError, got %v", err)
	}
	if conflict.ID != "uuid-1" {
		t.Errorf("Bad conflict id: %q", conflict.ID)
	}
}

func TestDiffGrownNetExplicitKeepsIdentity(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))
	current.AddComponent(comp("uuid-2", "R2", "Device:R", "1", "2"))
	current.AddComponent(comp("uuid-3", "R3", "Device:R", "1", "2"))
	current.Nets = append(current.Nets, &circuit.Net{
		Name: "Net-(R1-Pad2)",
		Endpoints: []circuit.Endpoint{
			{Component: "uuid-1", Pin: "2"}, {Component: "uuid-2", Pin: "1"},
		},
	})

	desired := circuit.New("des")
	desired.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))
	desired.AddComponent(comp("uuid-2", "R2", "Device:R", "1", "2"))
	desired.AddComponent(comp("uuid-3", "R3", "Device:R", "1", "2"))
	desired.Nets = append(desired.Nets, &circuit.Net{
		Name: "VOUT", Explicit: true,
		Endpoints: []circuit.Endpoint{
			{Component: "uuid-1", Pin: "2"}, {Component: "uuid-2", Pin: "1"}, {Component: "uuid-3", Pin: "1"},
		},
	})

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(plan.Nets) != 1 {
		t.Fatalf("Expected one net edit, got %+v", plan.Nets)
	}
	e := plan.Nets[0]
	if e.Op != OpUpdate || e.Current.Name != "Net-(R1-Pad2)" || e.Desired.Name != "VOUT" {
		t.Errorf("Expected rename Update under old identity, got %+v", e)
	}
}

func TestDiffGrownNetImplicitIsRemoveAdd(t *testing.T) {
	current := circuit.New("cur")
	current.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))
	current.AddComponent(comp("uuid-2", "R2", "Device:R", "1", "2"))
	current.Nets = append(current.Nets, &circuit.Net{
		Name: "Net-(R2-Pad1)",
		Endpoints: []circuit.Endpoint{
			{Component: "uuid-2", Pin: "1"}, {Component: "uuid-2", Pin: "2"},
		},
	})

	desired := circuit.New("des")
	desired.AddComponent(comp("uuid-1", "R1", "Device:R", "1", "2"))
	desired.AddComponent(comp("uuid-2", "R2", "Device:R", "1", "2"))
	// Grown and renamed because the smallest endpoint changed.
	desired.Nets = append(desired.Nets, &circuit.Net{
		Name: "Net-(R1-Pad1)",
		Endpoints: []circuit.Endpoint{
			{Component: "uuid-1", Pin: "1"}, {Component: "uuid-2", Pin: "1"}, {Component: "uuid-2", Pin: "2"},
		},
	})

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}

	ops := map[Op]int{}
	for _, e := range plan.Nets {
		ops[e.Op]++
	}
	if ops[OpAdd] != 1 || ops[OpRemove] != 1 {
		t.Errorf("Expected Remove+Add for implicit grown net, got %+v", plan.Nets)
	}
}

func TestDiffInstanceRenameMatchesLoneUnmatched(t *testing.T) {
	current := circuit.New("cur")
	current.Instances = append(current.Instances, &circuit.Instance{
		ID: "sheet-1", Name: "psu", Bindings: map[string]string{"IN": "VIN"},
	})

	desired := circuit.New("des")
	desired.Instances = append(desired.Instances, &circuit.Instance{
		ID: "new:inst:regulator", Name: "regulator", Bindings: map[string]string{"IN": "VIN"},
	})

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	if len(plan.Instances) != 1 {
		t.Fatalf("Expected one instance edit, got %+v", plan.Instances)
	}
	e := plan.Instances[0]
	if e.Op != OpUpdate || e.NewName != "regulator" || e.Current.ID != "sheet-1" {
		t.Errorf("Expected rename Update keeping identity, got %+v", e)
	}
}

func TestDiffKeepHasNoPatch(t *testing.T) {
	current := circuit.New("cur")
	cur := comp("uuid-1", "R1", "Device:R", "1", "2")
	cur.Props["Value"] = "10k"
	cur.Props["UserField"] = "hand-edited"
	current.AddComponent(cur)

	desired := circuit.New("des")
	d := comp("new:R1", "R1", "Device:R", "1", "2")
	d.Props["Value"] = "10k"
	desired.AddComponent(d)

	plan, err := Diff(current, desired)
	if err != nil {
		t.Fatalf("Failed to diff: %v", err)
	}
	e := findEdit(t, plan, "R1")
	// The description is silent about UserField, so it survives and
	// the component stays a Keep.
	if e.Op != OpKeep {
		t.Errorf("Expected Keep, got %v with patch %v", e.Op, e.PropPatch)
	}
}
