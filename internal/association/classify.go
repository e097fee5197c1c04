package association

import (
	"github.com/tphakala/runcat/internal/datastore/entities"
)

// Classification is the result of Classify.
type Classification struct {
	// Direct maps each directly updated catalog entry to the detections
	// merged into it (one-to-one and many-to-one).
	Direct map[uint][]entities.Association

	// Ambiguous holds the one-to-many and many-to-many pairs for the Grouper.
	Ambiguous []entities.Association

	// Relations maps association row id to its relation.
	Relations map[uint]entities.Relation
}

// Classify buckets the candidate pairs of one image by multiplicity.
//
// A pair (s, c) is one-to-one when s matches only c and c is matched only by
// s, and many-to-one when every detection matching c matches only c. If s
// matches several entries the pair is one-to-many when each of those entries
// is matched by s alone, and many-to-many otherwise. Distances are never
// consulted.
func Classify(rows []entities.Association) Classification {
	bySource := make(map[uint]map[uint]struct{})
	byRuncat := make(map[uint]map[uint]struct{})
	for _, a := range rows {
		addEdge(bySource, a.SourceID, a.RuncatID)
		addEdge(byRuncat, a.RuncatID, a.SourceID)
	}

	// exclusive[c] is true when every detection matching c matches only c.
	exclusive := make(map[uint]bool, len(byRuncat))
	for c, srcs := range byRuncat {
		ok := true
		for s := range srcs {
			if len(bySource[s]) > 1 {
				ok = false
				break
			}
		}
		exclusive[c] = ok
	}

	out := Classification{
		Direct:    make(map[uint][]entities.Association),
		Relations: make(map[uint]entities.Relation, len(rows)),
	}
	for _, a := range rows {
		var rel entities.Relation
		switch {
		case exclusive[a.RuncatID] && len(byRuncat[a.RuncatID]) == 1:
			rel = entities.RelationOneToOne
		case exclusive[a.RuncatID]:
			rel = entities.RelationManyToOne
		case oneToMany(bySource[a.SourceID], byRuncat):
			rel = entities.RelationOneToMany
		default:
			rel = entities.RelationManyToMany
		}

		a.Relation = rel
		out.Relations[a.ID] = rel
		if rel == entities.RelationOneToOne || rel == entities.RelationManyToOne {
			out.Direct[a.RuncatID] = append(out.Direct[a.RuncatID], a)
		} else {
			out.Ambiguous = append(out.Ambiguous, a)
		}
	}
	return out
}

func addEdge(m map[uint]map[uint]struct{}, from, to uint) {
	set, ok := m[from]
	if !ok {
		set = make(map[uint]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

// oneToMany reports whether every entry in entries is matched by one detection.
func oneToMany(entries map[uint]struct{}, byRuncat map[uint]map[uint]struct{}) bool {
	if len(entries) < 2 {
		return false
	}
	for c := range entries {
		if len(byRuncat[c]) != 1 {
			return false
		}
	}
	return true
}
