package association

import (
	"cmp"
	"maps"
	"slices"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// Group is one connected component of ambiguous pairs. All of its catalog
// entries collapse into Head and all of its detections are merged there.
type Group struct {
	RuncatIDs []uint // ascending
	SourceIDs []uint // ascending
	Pairs     []entities.Association
}

// Head returns the catalog entry the group collapses into: the lowest id,
// which is the oldest entry.
func (g Group) Head() uint {
	return g.RuncatIDs[0]
}

// Members returns the entries merged away into Head.
func (g Group) Members() []uint {
	return g.RuncatIDs[1:]
}

type pairKey struct {
	source, runcat uint
}

// Grouper partitions ambiguous pairs into connected components over the
// bipartite detection/catalog adjacency. The partition does not depend on
// which pair seeds each group.
type Grouper struct {
	pending  map[pairKey]entities.Association
	bySource map[uint][]pairKey
	byRuncat map[uint][]pairKey
}

// NewGrouper creates a Grouper over pairs. Duplicate pairs are collapsed.
func NewGrouper(pairs []entities.Association) *Grouper {
	g := &Grouper{
		pending:  make(map[pairKey]entities.Association, len(pairs)),
		bySource: make(map[uint][]pairKey),
		byRuncat: make(map[uint][]pairKey),
	}
	for _, p := range pairs {
		k := pairKey{p.SourceID, p.RuncatID}
		if _, dup := g.pending[k]; dup {
			continue
		}
		g.pending[k] = p
		g.bySource[k.source] = append(g.bySource[k.source], k)
		g.byRuncat[k.runcat] = append(g.byRuncat[k.runcat], k)
	}
	return g
}

// HasPendingGroups reports whether ungrouped pairs remain.
func (g *Grouper) HasPendingGroups() bool {
	return len(g.pending) > 0
}

// TakeOneGroup returns the component containing an arbitrary pending pair.
// The pairs stay pending until RemoveGroup is called.
func (g *Grouper) TakeOneGroup() Group {
	var seed pairKey
	for k := range g.pending {
		seed = k
		break
	}

	sources := map[uint]struct{}{seed.source: {}}
	runcats := map[uint]struct{}{seed.runcat: {}}
	inGroup := map[pairKey]struct{}{}

	// Worklist of pairs whose endpoints have not been expanded yet.
	queue := []pairKey{seed}
	inGroup[seed] = struct{}{}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		for _, next := range slices.Concat(g.bySource[k.source], g.byRuncat[k.runcat]) {
			if _, seen := inGroup[next]; seen {
				continue
			}
			if _, ok := g.pending[next]; !ok {
				continue
			}
			inGroup[next] = struct{}{}
			sources[next.source] = struct{}{}
			runcats[next.runcat] = struct{}{}
			queue = append(queue, next)
		}
	}

	group := Group{
		RuncatIDs: slices.Sorted(maps.Keys(runcats)),
		SourceIDs: slices.Sorted(maps.Keys(sources)),
		Pairs:     make([]entities.Association, 0, len(inGroup)),
	}
	for k := range inGroup {
		group.Pairs = append(group.Pairs, g.pending[k])
	}
	slices.SortFunc(group.Pairs, comparePairs)
	return group
}

// RemoveGroup drops the group's pairs from the pending set.
func (g *Grouper) RemoveGroup(group Group) {
	for _, p := range group.Pairs {
		delete(g.pending, pairKey{p.SourceID, p.RuncatID})
	}
}

// Partition returns every group of pairs ordered by head id.
func Partition(pairs []entities.Association) []Group {
	g := NewGrouper(pairs)
	var groups []Group
	for g.HasPendingGroups() {
		group := g.TakeOneGroup()
		g.RemoveGroup(group)
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		return cmp.Compare(a.Head(), b.Head())
	})
	return groups
}

func comparePairs(a, b entities.Association) int {
	if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
		return c
	}
	return cmp.Compare(a.RuncatID, b.RuncatID)
}
