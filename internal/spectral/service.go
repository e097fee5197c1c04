package spectral

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
	"github.com/tphakala/runcat/internal/observability/metrics"
)

// Spectrum is the fitted model of a catalog entry.
type Spectrum struct {
	RuncatID uint // requested id
	HeadID   uint // live entry the model belongs to
	Model
	Bands    int
	FittedAt time.Time
	Cached   bool // served from the stored fit

	// Position of the head entry, degrees.
	RA, Decl   float64
	Datapoints int
}

// Service serves spectra, refitting entries whose stored fit is stale.
type Service struct {
	store   *repository.Store
	fitter  *Fitter
	metrics *metrics.CatalogMetrics
	now     func() time.Time
	log     logger.Logger

	flight singleflight.Group
}

// NewService creates a Service. metrics may be nil.
func NewService(store *repository.Store, fitter *Fitter, m *metrics.CatalogMetrics, log logger.Logger) *Service {
	return &Service{
		store:   store,
		fitter:  fitter,
		metrics: m,
		now:     time.Now,
		log:     log.Module("spectral"),
	}
}

// Spectrum returns the model of runcatID, following merges to the live
// entry. Concurrent calls for the same entry share one refit.
func (s *Service) Spectrum(ctx context.Context, runcatID uint) (*Spectrum, error) {
	headID, err := s.store.Catalog.ResolveHead(ctx, runcatID)
	if err != nil {
		return nil, s.lookupError(err, runcatID)
	}

	v, err, _ := s.flight.Do(strconv.FormatUint(uint64(headID), 10), func() (any, error) {
		return s.spectrum(ctx, headID)
	})
	if err != nil {
		return nil, err
	}

	out := *v.(*Spectrum)
	out.RuncatID = runcatID
	return &out, nil
}

func (s *Service) lookupError(err error, runcatID uint) error {
	if errors.Is(err, repository.ErrCatalogEntryNotFound) {
		return errors.New(err).
			Component("spectral").
			Category(errors.CategoryNotFound).
			Context("runcat_id", runcatID).
			Build()
	}
	return errors.StoreError(err, "resolve_head")
}

func (s *Service) spectrum(ctx context.Context, headID uint) (*Spectrum, error) {
	entry, err := s.store.Catalog.Get(ctx, headID)
	if err != nil {
		return nil, s.lookupError(err, headID)
	}

	if !entry.Dirty() && entry.SpectralOrder != nil {
		var coeffs []float64
		if err := json.Unmarshal(entry.SpectralCoeffs, &coeffs); err == nil {
			s.metrics.RecordSpectralFit(metrics.FitCached)
			out := newSpectrum(entry, Model{Order: *entry.SpectralOrder, Coeffs: coeffs, ChiSquare: entry.SpectralChiSquare},
				entry.SpectralBands, *entry.LastFit)
			out.Cached = true
			return out, nil
		}
		s.log.Warn("stored spectral coefficients unreadable, refitting",
			logger.Uint64("runcat_id", uint64(headID)))
	}

	points, err := s.points(ctx, headID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	model, err := s.fitter.Fit(points)
	if err != nil {
		s.metrics.RecordSpectralFit(metrics.FitError)
		return nil, errors.New(err).
			Component("spectral").
			Category(errors.CategoryProcessing).
			Context("runcat_id", headID).
			Build()
	}

	fittedAt := s.now().UTC().Truncate(time.Microsecond)
	if entry.LastUpdate.After(fittedAt) {
		fittedAt = entry.LastUpdate
	}

	coeffs, err := json.Marshal(model.Coeffs)
	if err != nil {
		return nil, errors.New(err).Component("spectral").Category(errors.CategoryProcessing).Build()
	}

	result := newSpectrum(entry, model, len(points), fittedAt)
	err = s.store.Catalog.SaveSpectrum(ctx, headID, entry.Revision, repository.SpectrumFit{
		Order:     model.Order,
		Coeffs:    coeffs,
		ChiSquare: model.ChiSquare,
		Bands:     len(points),
		FittedAt:  fittedAt,
	})
	switch {
	case errors.Is(err, repository.ErrStaleRevision):
		// The entry changed while fitting; the next call refits.
		s.metrics.RecordSpectralFit(metrics.FitStale)
		s.log.Debug("spectral fit not cached, entry changed",
			logger.Uint64("runcat_id", uint64(headID)),
			logger.Int64("revision", entry.Revision))
	case err != nil:
		return nil, errors.StoreError(err, "save_spectrum")
	default:
		s.metrics.RecordSpectralFit(metrics.FitFitted)
	}
	s.metrics.ObserveSpectralFitDuration(time.Since(start).Seconds())

	s.log.Debug("spectrum fitted",
		logger.Uint64("runcat_id", uint64(headID)),
		logger.Int("order", model.Order),
		logger.Int("bands", len(points)),
		logger.Float64("chi_square", model.ChiSquare))

	return result, nil
}

// points builds one fit point per band with a usable flux.
func (s *Service) points(ctx context.Context, headID uint) ([]Point, error) {
	fluxes, err := s.store.Catalog.Fluxes(ctx, []uint{headID})
	if err != nil {
		return nil, errors.StoreError(err, "load_fluxes")
	}
	rows := fluxes[headID]

	bandIDs := make(map[uint]struct{}, len(rows))
	for _, r := range rows {
		bandIDs[r.BandID] = struct{}{}
	}
	bands, err := s.store.Images.GetBands(ctx, slices.Sorted(maps.Keys(bandIDs)))
	if err != nil {
		return nil, errors.StoreError(err, "load_bands")
	}

	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		band, ok := bands[r.BandID]
		if !ok {
			return nil, errors.ConfigError(
				errors.Newf("frequency band %d of catalog entry %d is not registered", r.BandID, headID).Build(),
				"band")
		}
		if p, ok := PointFromFlux(band.CenterFrequency, r.WmFlux, r.WmFluxErr); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func newSpectrum(entry *entities.RunningCatalog, model Model, bands int, fittedAt time.Time) *Spectrum {
	return &Spectrum{
		HeadID:     entry.ID,
		Model:      model,
		Bands:      bands,
		FittedAt:   fittedAt,
		RA:         entry.WmRA,
		Decl:       entry.WmDecl,
		Datapoints: entry.Datapoints,
	}
}
