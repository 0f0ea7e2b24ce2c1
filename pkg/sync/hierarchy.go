package sync

import (
	"sort"

	"github.com/circuitforge/circuitsync/pkg/circuit"
	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
)

// The hierarchy manager keeps sub-circuit instances and their sheet
// references consistent. A fragment's file name is derived from the
// instance UUID when the sheet is first created and never changes
// afterwards, so renames touch the sheet name only and repeated runs
// address the same file.

// childWork is one sub-circuit fragment to synchronize after the
// parent's sheets have been reconciled.
type childWork struct {
	inst *circuit.Instance // desired instance
	uuid string            // final sheet identity
	file string            // fragment file name relative to the project dir
}

// hierarchyResult is the outcome of reconciling one fragment's sheets.
type hierarchyResult struct {
	children []childWork
	bindings []bindingPoint

	// removedFiles are fragment files whose instances were removed.
	removedFiles []string
}

const (
	sheetWidth     = 25.4
	sheetPinPitch  = 2.54
	sheetMinHeight = 10.16
)

// applyInstances reconciles the fragment's sheet references with the
// plan's instance edits.
func (r *runner) applyInstances(sch *schematic.Schematic, plan *Plan, placer *Placer) hierarchyResult {
	var res hierarchyResult

	for i := range plan.Instances {
		e := &plan.Instances[i]
		switch e.Op {
		case OpRemove:
			if sheet, ok := sch.SheetByUUID(string(e.Current.ID)); ok {
				if f := sheet.FileName(); f != "" {
					res.removedFiles = append(res.removedFiles, f)
				}
				sch.RemoveSheet(sheet)
			}

		case OpAdd:
			if e.Desired.ID != "" && !circuit.IsProvisional(e.Desired.ID) {
				e.AssignedID = e.Desired.ID
			} else {
				e.AssignedID = circuit.ID(r.newID())
			}
			plan.IDMap[e.Desired.ID] = e.AssignedID
			r.addSheet(sch, e, placer)

		case OpKeep, OpUpdate:
			e.AssignedID = e.Current.ID
			plan.IDMap[e.Desired.ID] = e.AssignedID
			sheet, ok := sch.SheetByUUID(string(e.Current.ID))
			if !ok {
				break
			}
			if e.NewName != "" {
				sheet.SetName(e.NewName)
			}
			r.syncSheetPins(sheet, e.Desired.Ports)
		}
	}

	for i := range plan.Instances {
		e := &plan.Instances[i]
		if e.Desired == nil {
			continue
		}
		sheet, ok := sch.SheetByUUID(string(e.AssignedID))
		if !ok {
			continue
		}
		res.children = append(res.children, childWork{
			inst: e.Desired,
			uuid: string(e.AssignedID),
			file: sheet.FileName(),
		})
		for _, port := range sortedPorts(e.Desired.Bindings) {
			if x, y, ok := sheet.PinPosition(port); ok {
				res.bindings = append(res.bindings, bindingPoint{x: x, y: y, net: e.Desired.Bindings[port]})
			}
		}
	}

	return res
}

func (r *runner) addSheet(sch *schematic.Schematic, e *InstanceEdit, placer *Placer) {
	h := sheetMinHeight + sheetPinPitch*float64(len(e.Desired.Ports))
	x, y, ok := placer.PlaceSheet(sheetWidth, h)
	if !ok {
		r.report.Warn(KindPlacementExhausted, e.Desired.Name,
			"no free slot within the search area; placed at fallback position")
	}

	file := string(e.AssignedID) + ".kicad_sch"
	sheet := sch.AddSheet(e.Desired.Name, file, string(e.AssignedID), x, y, sheetWidth, h)
	for _, port := range e.Desired.Ports {
		sheet.AddPin(port, "passive", r.newID())
	}
}

// syncSheetPins adds pins for new boundary ports and drops pins whose
// port no longer exists. Existing pins keep their manual positions.
func (r *runner) syncSheetPins(sheet *schematic.Sheet, ports []string) {
	want := make(map[string]bool, len(ports))
	for _, p := range ports {
		want[p] = true
	}
	for _, p := range sheet.Pins() {
		if !want[p] {
			sheet.RemovePin(p)
		}
	}
	have := make(map[string]bool)
	for _, p := range sheet.Pins() {
		have[p] = true
	}
	for _, p := range ports {
		if !have[p] {
			sheet.AddPin(p, "passive", r.newID())
		}
	}
}

func sortedPorts(bindings map[string]string) []string {
	ports := make([]string, 0, len(bindings))
	for p := range bindings {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}
