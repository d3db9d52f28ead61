package exec

import (
	"io"
	"os"
	"sort"
	"sync"
)

// childResource is one flattened descendant of a requested resource, with
// the weight and release-on-termination flag propagated down from the
// hierarchy, grounded on the original arbiter's ChildResourceNode.
type childResource struct {
	name    string
	weight  float64
	release bool
}

// resourceNode is one entry of the parsed hierarchy: its direct children
// and its maximum consumable value.
type resourceNode struct {
	children []childResource
	max      float64
}

// CommandRequest is one command competing for resources in a single
// ArbitrateCommands call.
type CommandRequest struct {
	ID        string
	Resources []ResourceValue
}

// estimate tracks, for a single resource name, how much renewable and
// consumable capacity the commands processed so far in priority order
// would claim.
type estimate struct {
	renewable  float64
	consumable float64
}

// Arbiter is the hierarchical resource arbiter described by the component
// design: commands declare resource requests against a loaded hierarchy,
// and ArbitrateCommands accepts or rejects each in ascending-priority
// order so that no resource's running total ever exceeds its maximum.
type Arbiter struct {
	mu        sync.Mutex
	hierarchy map[string]resourceNode
	allocated map[string]float64
	claims    map[string][]childResource // by command ID
}

func NewArbiter() *Arbiter {
	return &Arbiter{
		hierarchy: make(map[string]resourceNode),
		allocated: make(map[string]float64),
		claims:    make(map[string][]childResource),
	}
}

// LoadHierarchyFile parses and installs a resource hierarchy from disk. A
// malformed file leaves the arbiter's previous hierarchy untouched.
func (a *Arbiter) LoadHierarchyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return NewConfigError("opening resource hierarchy file %q", path).WithCause(err)
	}
	defer f.Close()
	return a.LoadHierarchy(f)
}

// LoadHierarchy parses a resource hierarchy from r and, only if the whole
// document parses cleanly and is acyclic, replaces the arbiter's
// hierarchy. The replacement is atomic: a caller that fails this call
// keeps whatever hierarchy was loaded before rather than being left with
// none.
func (a *Arbiter) LoadHierarchy(r io.Reader) error {
	lines, err := parseHierarchy(r)
	if err != nil {
		return err
	}
	if cycle := detectCycle(lines); cycle != nil {
		return cycleError(cycle)
	}
	hierarchy := make(map[string]resourceNode, len(lines))
	for _, l := range lines {
		children := make([]childResource, len(l.children))
		for i, c := range l.children {
			children[i] = childResource{name: c.name, weight: c.weight, release: c.weight < 0}
		}
		hierarchy[l.parent] = resourceNode{children: children, max: l.max}
	}
	a.mu.Lock()
	a.hierarchy = hierarchy
	a.mu.Unlock()
	return nil
}

// maxConsumable returns the configured maximum for a resource, defaulting
// to 1.0 for any resource not named as a parent in the hierarchy (the
// original arbiter's maxConsumableResourceValue default).
func (a *Arbiter) maxConsumable(name string) float64 {
	if n, ok := a.hierarchy[name]; ok {
		return n.max
	}
	return 1.0
}

// determineChildResources recursively flattens name's descendants,
// scaling each descendant's weight by the accumulated parent weight and
// propagating the release-on-termination flag, mirroring the original's
// determineChildResources.
func (a *Arbiter) determineChildResources(name string, weight float64, release bool, out map[string]childResource) {
	node, ok := a.hierarchy[name]
	if !ok {
		return
	}
	for _, c := range node.children {
		scaled := childResource{name: c.name, weight: c.weight * weight, release: release || c.release}
		// First occurrence wins unless this is the directly requested
		// resource (weight == the top-level request's own scale),
		// matching determineAllChildResources's overwrite rule.
		if _, exists := out[c.name]; !exists {
			out[c.name] = scaled
		}
		a.determineChildResources(c.name, scaled.weight, scaled.release, out)
	}
}

// determineAllChildResources expands one top-level resource request into
// its full flattened set of resources (itself plus every descendant),
// applying the "first occurrence wins unless directly requested" rule
// when the same child resource is reachable from more than one requested
// top-level resource.
func (a *Arbiter) determineAllChildResources(req ResourceValue, out map[string]childResource) {
	weight := req.UpperBound
	if weight == 0 {
		weight = 1
	}
	out[req.Name] = childResource{name: req.Name, weight: weight, release: req.ReleaseOnTermination}
	a.determineChildResources(req.Name, weight, req.ReleaseOnTermination, out)
}

// ArbitrateCommands partitions cmds into accepted and rejected command
// IDs. Commands with no resource requests are always accepted outright;
// the rest are sorted ascending by the priority of their first resource
// request and granted in that order against a running estimate, exactly
// as the original optimalResourceArbitration does, until a resource's
// estimate would fall below zero or exceed its configured maximum.
func (a *Arbiter) ArbitrateCommands(cmds []CommandRequest) (accepted, rejected []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sorted []CommandRequest
	for _, c := range cmds {
		if len(c.Resources) == 0 {
			accepted = append(accepted, c.ID)
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Resources[0].Priority < sorted[j].Resources[0].Priority
	})

	estimates := make(map[string]*estimate)
	flattenedByCmd := make(map[string]map[string]childResource, len(sorted))
	for _, c := range sorted {
		flat := make(map[string]childResource)
		for _, r := range c.Resources {
			a.determineAllChildResources(r, flat)
		}
		flattenedByCmd[c.ID] = flat
		for name := range flat {
			if _, ok := estimates[name]; !ok {
				estimates[name] = &estimate{}
				if v, ok := a.allocated[name]; ok {
					estimates[name].consumable = v
				}
			}
		}
	}

	for _, c := range sorted {
		flat := flattenedByCmd[c.ID]
		snapshot := make(map[string]estimate, len(flat))
		for name := range flat {
			snapshot[name] = *estimates[name]
		}
		ok := true
		for name, cr := range flat {
			est := estimates[name]
			max := a.maxConsumable(name)
			if cr.weight < 0 {
				est.renewable += cr.weight
				if est.renewable < 0 {
					ok = false
				}
			} else {
				est.consumable += cr.weight
				if est.consumable < 0 || est.consumable > max {
					ok = false
				}
			}
			if !ok {
				break
			}
		}
		if !ok {
			for name, snap := range snapshot {
				*estimates[name] = snap
			}
			rejected = append(rejected, c.ID)
			continue
		}
		accepted = append(accepted, c.ID)
		var claims []childResource
		for name, cr := range flat {
			a.allocated[name] += cr.weight
			claims = append(claims, cr)
		}
		a.claims[c.ID] = claims
	}
	return accepted, rejected
}

// ReleaseResourcesForCommand returns a finished command's reserved
// capacity to the pool. Entries whose allocation reaches exactly zero are
// removed from the ledger rather than left as a zero entry, matching the
// original releaseResourcesForCommand.
func (a *Arbiter) ReleaseResourcesForCommand(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	claims, ok := a.claims[id]
	if !ok {
		return
	}
	for _, c := range claims {
		if !c.release {
			continue
		}
		a.allocated[c.name] -= c.weight
		if a.allocated[c.name] == 0 {
			delete(a.allocated, c.name)
		}
	}
	delete(a.claims, id)
}
