package association

import (
	"context"
	"time"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// VectorizedMatcher loads an image's detections and the catalog rows of its
// window into flat arrays, runs a Kernel and writes the pairs back in batches.
type VectorizedMatcher struct {
	cfg       Config
	newKernel KernelFactory
	log       logger.Logger
}

// NewVectorizedMatcher creates a VectorizedMatcher. A nil factory uses NewGoKernel.
func NewVectorizedMatcher(cfg Config, newKernel KernelFactory, log logger.Logger) *VectorizedMatcher {
	if newKernel == nil {
		newKernel = NewGoKernel
	}
	return &VectorizedMatcher{cfg: cfg, newKernel: newKernel, log: log.Module("matcher")}
}

// Name returns "vectorized".
func (m *VectorizedMatcher) Name() string { return "vectorized" }

// Match implements Matcher.
func (m *VectorizedMatcher) Match(ctx context.Context, tx *repository.Tx, imageID uint) (int, error) {
	start := time.Now()

	w, err := ComputeWindow(ctx, tx, imageID, m.cfg)
	if err != nil {
		return 0, errors.StoreError(err, "compute_window")
	}
	if w.Empty {
		return 0, nil
	}

	sources, err := tx.Sources.ListByImage(ctx, imageID)
	if err != nil {
		return 0, errors.StoreError(err, "load_sources")
	}
	catalog, err := tx.Catalog.ListWindow(ctx, w.Region, true)
	if err != nil {
		return 0, errors.StoreError(err, "load_window")
	}

	n := len(sources) + len(catalog)
	ids := make([]uint, 0, n)
	coords := make([][CoordSlots]float64, 0, n)
	kinds := make([]int8, 0, n)
	for i := range sources {
		s := &sources[i]
		ids = append(ids, s.ID)
		coords = append(coords, [CoordSlots]float64{s.RA, s.Decl, s.RAErr, s.DeclErr, s.X, s.Y, s.Z, float64(s.Zone)})
		kinds = append(kinds, int8(s.Kind))
	}
	for i := range catalog {
		c := &catalog[i]
		ids = append(ids, c.ID)
		coords = append(coords, [CoordSlots]float64{c.WmRA, c.WmDecl, c.WmRAErr, c.WmDeclErr, c.X, c.Y, c.Z, float64(c.Zone)})
		kinds = append(kinds, KindCatalog)
	}

	kernel := m.newKernel()
	if loaded := kernel.Load(imageID, ids, coords, kinds); loaded != n {
		return 0, errors.Newf("kernel loaded %d of %d rows", loaded, n).
			Component("association").
			Category(errors.CategoryProcessing).
			ImageContext(imageID).
			Build()
	}
	res := kernel.Match(KernelParams{Thresholds: m.cfg.Thresholds, HalfWindow: w.HalfWidth})

	rows := make([]entities.Association, len(res.Pairs))
	for i, p := range res.Pairs {
		rows[i] = entities.Association{
			ImageID:        imageID,
			SourceID:       p[0],
			RuncatID:       p[1],
			SourceKind:     entities.SourceKind(res.Kinds[i]),
			DistanceArcsec: res.Distances[i][0],
			R:              res.Distances[i][1],
		}
	}
	if err := tx.Associations.InsertBatch(ctx, rows, m.cfg.BatchSize); err != nil {
		return 0, errors.StoreError(err, "insert_candidates")
	}

	m.log.Debug("candidates inserted",
		logger.Uint64("image_id", uint64(imageID)),
		logger.Int("sources", len(sources)),
		logger.Int("window_entries", len(catalog)),
		logger.Int("candidates", len(rows)),
		logger.Float64("half_window_deg", w.HalfWidth),
		logger.Duration("elapsed", time.Since(start)))

	return len(rows), nil
}
