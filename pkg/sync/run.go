package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/circuitforge/circuitsync/pkg/circuit"
	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
	"github.com/circuitforge/circuitsync/pkg/library"
	"github.com/circuitforge/circuitsync/pkg/project"
)

// ErrFatal is returned when a run recorded fatal issues and wrote
// nothing. The report carries the details.
var ErrFatal = errors.New("synchronization aborted")

// Options configures a synchronization run.
type Options struct {
	// Resolver looks up library symbols. Nil disables resolution;
	// every component then gets a placeholder signature.
	Resolver library.Resolver

	// Logger receives progress events. Nil uses slog.Default().
	Logger *slog.Logger

	// NewID mints stable identities. Nil uses random UUIDs; tests
	// inject a sequential generator for reproducible documents.
	NewID func() string

	// Paper is the page size for newly created fragments.
	Paper string
}

// runner holds the mutable state of one run.
type runner struct {
	opts   Options
	log    *slog.Logger
	report *Report

	dir       string
	fragments []*fragment
	deletions []string
}

// fragment is one document file held in memory for the duration of
// the run. orig is nil for fragments that do not exist on disk yet.
type fragment struct {
	path string
	sch  *schematic.Schematic
	orig []byte
}

// Run synchronizes the project rooted at rootPath with the desired
// circuit. All mutation happens in memory; nothing is written unless
// the whole run succeeds, and every write goes through a temp file
// and rename. The returned report is non-nil even on error.
func Run(ctx context.Context, desired *circuit.Circuit, rootPath string, opts Options) (*Report, error) {
	r := &runner{
		opts:   opts,
		log:    opts.Logger,
		report: &Report{},
		dir:    filepath.Dir(rootPath),
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	r.prepareDesired(desired, make(map[string]bool))

	root, err := r.loadFragment(rootPath)
	if err != nil {
		r.report.Fail(KindFormatError, filepath.Base(rootPath), "%v", err)
		return r.report, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	if err := r.syncFragment(ctx, root, desired, nil); err != nil {
		return r.report, err
	}
	if r.report.Fatal() {
		return r.report, ErrFatal
	}

	for _, frag := range r.fragments {
		out := frag.sch.Serialize()
		if frag.orig != nil && bytes.Equal(out, frag.orig) {
			continue
		}
		if err := project.WriteAtomic(frag.path, out); err != nil {
			return r.report, err
		}
		r.report.Written = append(r.report.Written, filepath.Base(frag.path))
		r.log.Info("wrote fragment", "path", frag.path)
	}
	for _, path := range r.deletions {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return r.report, fmt.Errorf("remove %s: %w", path, err)
		}
		r.log.Info("removed fragment", "path", path)
	}

	return r.report, nil
}

func (r *runner) newID() string {
	if r.opts.NewID != nil {
		return r.opts.NewID()
	}
	return uuid.NewString()
}

// prepareDesired brings the description-side model into diffable
// form: pin signatures resolved from the library, implicit net names
// regenerated, implicit nets with fewer than two endpoints dropped.
// Explicit single-endpoint nets are kept; a deliberately named
// dangling net is intent, not noise.
func (r *runner) prepareDesired(c *circuit.Circuit, warned map[string]bool) {
	for _, comp := range c.Components {
		if len(comp.Pins) > 0 || r.opts.Resolver == nil {
			continue
		}
		sym, err := r.opts.Resolver.Resolve(comp.LibID)
		if err != nil {
			if !warned[comp.LibID] {
				r.report.Warn(KindUnresolvedReference, comp.Ref,
					"no library symbol for %q, component created without pins", comp.LibID)
				warned[comp.LibID] = true
			}
			continue
		}
		for _, p := range sym.Pins {
			comp.Pins = append(comp.Pins, circuit.Pin{Number: p.Number, Name: p.Name, Type: p.Type})
		}
	}

	kept := c.Nets[:0]
	for _, n := range c.Nets {
		if !n.Explicit {
			n.Name = c.ImplicitNetName(n)
			if len(n.Endpoints) < 2 {
				continue
			}
		}
		sort.Slice(n.Endpoints, func(i, j int) bool {
			a, b := n.Endpoints[i], n.Endpoints[j]
			if a.Component != b.Component {
				return a.Component < b.Component
			}
			return a.Pin < b.Pin
		})
		kept = append(kept, n)
	}
	c.Nets = kept

	sort.Slice(c.Components, func(i, j int) bool { return circuit.RefLess(c.Components[i].Ref, c.Components[j].Ref) })
	sort.Slice(c.Nets, func(i, j int) bool { return c.Nets[i].Name < c.Nets[j].Name })
	sort.Slice(c.Instances, func(i, j int) bool { return c.Instances[i].Name < c.Instances[j].Name })

	for _, inst := range c.Instances {
		if inst.Circuit != nil {
			r.prepareDesired(inst.Circuit, warned)
		}
	}
}

// loadFragment reads and parses a document file, or creates an empty
// in-memory fragment when the file does not exist yet.
func (r *runner) loadFragment(path string) (*fragment, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		sch := schematic.New(r.newID())
		if r.opts.Paper != "" {
			sch.SetPaper(r.opts.Paper)
		}
		return &fragment{path: path, sch: sch}, nil
	}
	if err != nil {
		return nil, err
	}

	sch, err := schematic.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &fragment{path: path, sch: sch, orig: data}, nil
}

// loadChildFragment is loadFragment with a fixed identity for newly
// created fragments: a child document's UUID is the instance UUID.
func (r *runner) loadChildFragment(path, uuid string) (*fragment, error) {
	frag, err := r.loadFragment(path)
	if err != nil {
		return nil, err
	}
	if frag.orig == nil {
		sch := schematic.New(uuid)
		if r.opts.Paper != "" {
			sch.SetPaper(r.opts.Paper)
		}
		frag.sch = sch
	}
	return frag, nil
}

// syncFragment reconciles one document fragment with its desired
// circuit, then recurses into sub-circuit fragments. ports is the
// fragment's boundary interface, nil for the root.
func (r *runner) syncFragment(ctx context.Context, frag *fragment, desired *circuit.Circuit, ports []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current := circuit.FromSchematic(frag.sch)

	plan, err := Diff(current, desired)
	if err != nil {
		r.report.Fail(KindIdentityConflict, filepath.Base(frag.path), "%v", err)
		return nil
	}
	r.report.Summary.absorb(plan)
	r.fragments = append(r.fragments, frag)

	ann := newAnnotator(frag.sch, r.opts.Resolver, r.newID)
	ann.captureAnchors()

	r.applyComponentEdits(frag.sch, plan)

	placer := r.seedPlacer(frag.sch)
	r.placeAdded(frag.sch, plan, desired, ann, placer)

	hier := r.applyInstances(frag.sch, plan, placer)
	for _, file := range hier.removedFiles {
		r.removeFragmentTree(r.dir, file)
	}

	boundary := make(map[string]bool, len(ports))
	for _, p := range ports {
		boundary[p] = true
	}
	var nets []netState
	for _, e := range plan.Nets {
		if e.Desired == nil {
			continue
		}
		nets = append(nets, netState{
			name:      e.Desired.Name,
			endpoints: plan.endpointSet(e.Desired),
			boundary:  boundary[e.Desired.Name],
		})
	}
	ann.reconcile(plan, nets, hier.bindings)

	if ports == nil {
		frag.sch.EnsureSheetInstances()
	}

	return r.syncChildren(ctx, plan, hier.children)
}

// syncChildren parses child fragments in parallel, then reconciles
// them sequentially. A child that fails to parse is reported and left
// untouched.
func (r *runner) syncChildren(ctx context.Context, plan *Plan, children []childWork) error {
	if len(children) == 0 {
		return nil
	}

	frags := make([]*fragment, len(children))
	errs := make([]error, len(children))

	g, ctx := errgroup.WithContext(ctx)
	for i, ch := range children {
		g.Go(func() error {
			frags[i], errs[i] = r.loadChildFragment(filepath.Join(r.dir, ch.file), ch.uuid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, ch := range children {
		if errs[i] != nil {
			r.report.Fail(KindFormatError, ch.file, "%v", errs[i])
			continue
		}
		desired := ch.inst.Circuit
		if desired == nil {
			desired = circuit.New(ch.inst.Name)
		}
		if err := r.syncFragment(ctx, frags[i], desired, ch.inst.Ports); err != nil {
			return err
		}
	}
	return nil
}

// applyComponentEdits performs removals and in-place updates. Added
// components are placed separately once the freed space is known.
func (r *runner) applyComponentEdits(sch *schematic.Schematic, plan *Plan) {
	for _, e := range plan.Components {
		switch e.Op {
		case OpRemove:
			if sym, ok := sch.SymbolByUUID(string(e.Current.ID)); ok {
				sch.RemoveSymbol(sym)
			}

		case OpUpdate:
			sym, ok := sch.SymbolByUUID(string(e.Current.ID))
			if !ok {
				break
			}
			if e.NewRef != "" {
				sym.SetReference(e.NewRef)
			}
			for _, key := range sortedKeys(e.PropPatch) {
				sym.SetProperty(key, e.PropPatch[key])
			}
		}
	}
}

// seedPlacer builds the occupancy grid from what remains in the
// fragment after removals: kept symbols and sheets.
func (r *runner) seedPlacer(sch *schematic.Schematic) *Placer {
	placer := NewPlacer(sch.PaperSize())
	for _, sym := range sch.Symbols() {
		x, y, _ := sym.Position()
		placer.OccupyPoint(x, y)
	}
	for _, sheet := range sch.Sheets() {
		x, y := sheet.Position()
		w, h := sheet.Size()
		placer.OccupyRect(x, y, w, h)
	}
	return placer
}

// placeAdded mints identities for added components, resolves their
// symbols and places them, preferring slots next to a connected part
// that already has a position.
func (r *runner) placeAdded(sch *schematic.Schematic, plan *Plan, desired *circuit.Circuit, ann *annotator, placer *Placer) {
	for i := range plan.Components {
		e := &plan.Components[i]
		if e.Op != OpAdd {
			continue
		}
		d := e.Desired
		if d.ID != "" && !circuit.IsProvisional(d.ID) {
			// The description pinned the identity; honor it.
			e.AssignedID = d.ID
		} else {
			e.AssignedID = circuit.ID(r.newID())
		}
		plan.IDMap[d.ID] = e.AssignedID

		var pinNumbers []string
		var defaultValue string
		if r.opts.Resolver != nil {
			if libSym, err := r.opts.Resolver.Resolve(d.LibID); err == nil {
				sch.EnsureLibSymbol(d.LibID, libSym.Def)
				for _, p := range libSym.Pins {
					pinNumbers = append(pinNumbers, p.Number)
				}
				defaultValue = libSym.Props["Value"]
			}
		}

		var x, y float64
		var ok bool
		if ax, ay, found := r.anchorFor(sch, plan, desired, d); found {
			x, y, ok = placer.PlaceNear(ax, ay)
		} else {
			x, y, ok = placer.Place()
		}
		if !ok {
			r.report.Warn(KindPlacementExhausted, d.Ref,
				"no free slot within the search area; placed at fallback position")
		}

		sym := sch.AddSymbol(d.LibID, string(e.AssignedID), d.Ref, x, y, 0, pinNumbers)
		if _, has := d.Props["Value"]; !has {
			if defaultValue == "" {
				defaultValue = d.LibID
			}
			sym.SetProperty("Value", defaultValue)
		}
		for _, key := range sortedKeys(d.Props) {
			sym.SetProperty(key, d.Props[key])
		}

		for _, pos := range sch.PinPositions(sym) {
			ann.addAnchor(pos[0], pos[1])
		}
	}
}

// anchorFor finds the position of a part electrically connected to d
// that is already in the document.
func (r *runner) anchorFor(sch *schematic.Schematic, plan *Plan, desired *circuit.Circuit, d *circuit.Component) (float64, float64, bool) {
	for _, n := range desired.Nets {
		touches := false
		for _, ep := range n.Endpoints {
			if ep.Component == d.ID {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		for _, ep := range n.Endpoints {
			if ep.Component == d.ID {
				continue
			}
			mapped := plan.MapEndpoint(ep)
			if sym, ok := sch.SymbolByUUID(string(mapped.Component)); ok {
				x, y, _ := sym.Position()
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// removeFragmentTree schedules a fragment file and, recursively, the
// fragments of its own sub-sheets for deletion.
func (r *runner) removeFragmentTree(dir, file string) {
	path := filepath.Join(dir, file)
	r.deletions = append(r.deletions, path)

	sch, err := schematic.ParseFile(path)
	if err != nil {
		return
	}
	for _, sheet := range sch.Sheets() {
		if f := sheet.FileName(); f != "" {
			r.removeFragmentTree(dir, f)
		}
	}
}
