// Package sync implements the synchronization engine: given a desired
// circuit and an existing, possibly hand-edited, schematic project, it
// computes the minimal edit set and applies it so that untouched
// document regions stay byte-identical while every structural change
// in the description is reflected.
package sync

import "fmt"

// Issue kinds. Format errors and identity conflicts are fatal and
// abort the run before anything is written; the other kinds are
// accumulated and reported after a successful run.
const (
	KindFormatError         = "format_error"
	KindIdentityConflict    = "identity_conflict"
	KindUnresolvedReference = "unresolved_reference"
	KindPlacementExhausted  = "placement_exhausted"
)

// Issue is one structured problem found during a run.
type Issue struct {
	Kind    string `json:"kind"`
	Entity  string `json:"entity"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Entity, i.Message)
}

// EntityCounts tallies the diff classifications for one entity kind.
type EntityCounts struct {
	Kept    int `json:"kept"`
	Updated int `json:"updated"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Summary is the machine-readable outcome of a run.
type Summary struct {
	Components EntityCounts `json:"components"`
	Nets       EntityCounts `json:"nets"`
	Instances  EntityCounts `json:"instances"`
}

// Report collects the summary, every issue, and the set of fragment
// files the run rewrote.
type Report struct {
	Summary Summary  `json:"summary"`
	Issues  []Issue  `json:"issues"`
	Written []string `json:"written"`
}

// Warn records a non-fatal issue.
func (r *Report) Warn(kind, entity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Kind:    kind,
		Entity:  entity,
		Message: fmt.Sprintf(format, args...),
	})
}

// Fail records a fatal issue.
func (r *Report) Fail(kind, entity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Kind:    kind,
		Entity:  entity,
		Message: fmt.Sprintf(format, args...),
		Fatal:   true,
	})
}

// Fatal reports whether any recorded issue forbids writing.
func (r *Report) Fatal() bool {
	for _, i := range r.Issues {
		if i.Fatal {
			return true
		}
	}
	return false
}

func (c *EntityCounts) count(op Op) {
	switch op {
	case OpKeep:
		c.Kept++
	case OpUpdate:
		c.Updated++
	case OpAdd:
		c.Added++
	case OpRemove:
		c.Removed++
	}
}

// absorb adds a plan's classifications to the running summary.
func (s *Summary) absorb(plan *Plan) {
	for _, e := range plan.Components {
		s.Components.count(e.Op)
	}
	for _, e := range plan.Nets {
		s.Nets.count(e.Op)
	}
	for _, e := range plan.Instances {
		s.Instances.count(e.Op)
	}
}
