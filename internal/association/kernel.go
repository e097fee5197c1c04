package association

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/geometry"
)

// Coordinate slots of a row passed to Kernel.Load.
const (
	CoordRA = iota
	CoordDecl
	CoordRAErr
	CoordDeclErr
	CoordX
	CoordY
	CoordZ
	CoordZone

	// CoordSlots is the row width.
	CoordSlots
)

// KindCatalog marks a catalog row in the kinds passed to Kernel.Load.
// Detection rows carry their entities.SourceKind.
const KindCatalog int8 = -1

// KernelParams configures one Kernel.Match call.
type KernelParams struct {
	Thresholds Thresholds
	HalfWindow float64 // degrees
}

// KernelResult is the output of Kernel.Match. Pairs, Distances and Kinds are
// parallel and sorted by (source id, catalog id).
type KernelResult struct {
	Pairs     [][2]uint    // (source id, catalog id)
	Distances [][2]float64 // (separation arcsec, de Ruiter r)
	Kinds     []int8       // source kind of each pair
	Counts    []int        // candidates per loaded detection, in load order
}

// Kernel is an in-process candidate matcher over flat arrays.
//
// Load replaces the kernel contents with one image's detections and the
// catalog rows of its window and returns the number of rows accepted. Match
// is synchronous and may be called repeatedly on loaded data.
type Kernel interface {
	Load(imageID uint, ids []uint, coords [][CoordSlots]float64, kinds []int8) int
	Match(params KernelParams) KernelResult
}

// KernelFactory creates a fresh kernel for one match.
type KernelFactory func() Kernel

// GoKernel is the pure Go Kernel: catalog rows sorted by declination, a
// binary search per detection for the window, then the exact de Ruiter test.
type GoKernel struct {
	imageID uint

	detIDs  []uint
	det     [][CoordSlots]float64
	detKind []int8

	catIDs []uint
	cat    [][CoordSlots]float64
}

// NewGoKernel returns an empty GoKernel.
func NewGoKernel() Kernel {
	return &GoKernel{}
}

// Load implements Kernel.
func (k *GoKernel) Load(imageID uint, ids []uint, coords [][CoordSlots]float64, kinds []int8) int {
	*k = GoKernel{imageID: imageID}

	n := min(len(ids), len(coords), len(kinds))
	for i := range n {
		if kinds[i] == KindCatalog {
			k.catIDs = append(k.catIDs, ids[i])
			k.cat = append(k.cat, coords[i])
			continue
		}
		k.detIDs = append(k.detIDs, ids[i])
		k.det = append(k.det, coords[i])
		k.detKind = append(k.detKind, kinds[i])
	}

	order := make([]int, len(k.catIDs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return k.cat[order[a]][CoordDecl] < k.cat[order[b]][CoordDecl]
	})
	ids2 := make([]uint, len(order))
	cat2 := make([][CoordSlots]float64, len(order))
	for i, j := range order {
		ids2[i], cat2[i] = k.catIDs[j], k.cat[j]
	}
	k.catIDs, k.cat = ids2, cat2

	return n
}

type kernelPair struct {
	src, cat uint
	sep, r   float64
	kind     int8
}

// Match implements Kernel.
func (k *GoKernel) Match(params KernelParams) KernelResult {
	res := KernelResult{Counts: make([]int, len(k.detIDs))}
	var pairs []kernelPair

	for i, d := range k.det {
		lo := sort.Search(len(k.cat), func(j int) bool {
			return k.cat[j][CoordDecl] >= d[CoordDecl]-params.HalfWindow
		})
		kind := entities.SourceKind(k.detKind[i])
		detPos := position(d)
		detVec := geometry.Vector{X: d[CoordX], Y: d[CoordY], Z: d[CoordZ]}

		for j := lo; j < len(k.cat) && k.cat[j][CoordDecl] <= d[CoordDecl]+params.HalfWindow; j++ {
			c := k.cat[j]
			r2 := geometry.DeRuiterSquared(detPos, position(c))
			if !params.Thresholds.Accepts(kind, r2) {
				continue
			}
			catVec := geometry.Vector{X: c[CoordX], Y: c[CoordY], Z: c[CoordZ]}
			pairs = append(pairs, kernelPair{
				src:  k.detIDs[i],
				cat:  k.catIDs[j],
				sep:  geometry.SeparationFromChord(detVec.ChordSquared(catVec)),
				r:    math.Sqrt(r2),
				kind: k.detKind[i],
			})
			res.Counts[i]++
		}
	}

	slices.SortFunc(pairs, func(a, b kernelPair) int {
		if c := cmp.Compare(a.src, b.src); c != 0 {
			return c
		}
		return cmp.Compare(a.cat, b.cat)
	})

	res.Pairs = make([][2]uint, len(pairs))
	res.Distances = make([][2]float64, len(pairs))
	res.Kinds = make([]int8, len(pairs))
	for i, p := range pairs {
		res.Pairs[i] = [2]uint{p.src, p.cat}
		res.Distances[i] = [2]float64{p.sep, p.r}
		res.Kinds[i] = p.kind
	}
	return res
}

func position(c [CoordSlots]float64) geometry.Position {
	return geometry.Position{
		RA:      c[CoordRA],
		Decl:    c[CoordDecl],
		RAErr:   c[CoordRAErr],
		DeclErr: c[CoordDeclErr],
	}
}
